package statemachine

import "errors"

// Sentinel errors for the client-facing validation the ingress layer runs
// before an entry is ever constructed (§7). These map onto the spec's
// behavioural error taxonomy, not Go type names.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrEmailInUse       = errors.New("email already in use")
	ErrPasswordTooShort = errors.New("password too short")
	ErrAlreadyLiked     = errors.New("post already liked")
	ErrNotLiked         = errors.New("post not liked")
	ErrNotAuthor        = errors.New("not the post author")
)

const minPasswordLength = 8

// ValidateCreateAccount runs the BadRequest/Conflict checks §7 requires
// before a CREATE_ACCOUNT entry is constructed.
func (s *Store) ValidateCreateAccount(name, email, password string) error {
	if err := s.validateEmail(email); err != nil {
		return err
	}
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if _, exists := s.GetWriter(email); exists {
		return ErrEmailInUse
	}
	return nil
}

// ValidateLikePost mirrors the source's duplicate-like rejection (S5).
func (s *Store) ValidateLikePost(postID, email string) error {
	if _, ok := s.GetPost(postID); !ok {
		return ErrNotFound
	}
	if !s.HasSubscriber(email) {
		return ErrNotFound
	}
	if s.PostLiked(postID, email) {
		return ErrAlreadyLiked
	}
	return nil
}

// ValidateUnlikePost mirrors the inverse of ValidateLikePost.
func (s *Store) ValidateUnlikePost(postID, email string) error {
	if _, ok := s.GetPost(postID); !ok {
		return ErrNotFound
	}
	if !s.PostLiked(postID, email) {
		return ErrNotLiked
	}
	return nil
}

// ValidateDeletePost checks the author matches before a DELETE_POST entry
// is constructed (an author mismatch is rejected client-side rather than
// silently skipped at apply time, which is reserved for malformed entries
// from a tolerant leader).
func (s *Store) ValidateDeletePost(postID, author string) error {
	post, ok := s.GetPost(postID)
	if !ok {
		return ErrNotFound
	}
	if post.Author != author {
		return ErrNotAuthor
	}
	return nil
}

// ValidateCommentPost checks the post exists.
func (s *Store) ValidateCommentPost(postID string) error {
	if _, ok := s.GetPost(postID); !ok {
		return ErrNotFound
	}
	return nil
}
