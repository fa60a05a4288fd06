// Package security hashes account passwords before they ever reach the
// replicated log. See SPEC_FULL.md §4.5/§9 O2: the log must carry a
// deterministic value so every node's state machine converges on byte-
// identical state (I5); a per-call random salt would make the two
// appliers disagree.
package security

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt hash of password at the default cost. The
// caller (the RPC-handling collaborator, not the state machine) must call
// this before the CREATE_ACCOUNT entry is appended — the applier only ever
// stores the value it is handed.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
