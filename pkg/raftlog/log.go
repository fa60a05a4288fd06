// Package raftlog implements the in-memory replicated log: an ordered,
// 1-indexed sequence of entries mirrored to the durable state store.
package raftlog

// Operation names the closed set of state-machine operations an entry may
// carry. An entry with an unknown value is skipped when applied, never a
// crash.
type Operation string

const (
	OpSubscribe      Operation = "SUBSCRIBE"
	OpCreateAccount   Operation = "CREATE_ACCOUNT"
	OpCreatePost      Operation = "CREATE_POST"
	OpCommentPost     Operation = "COMMENT_POST"
	OpLikePost        Operation = "LIKE_POST"
	OpUnlikePost      Operation = "UNLIKE_POST"
	OpDeletePost      Operation = "DELETE_POST"
	OpDeleteAccount   Operation = "DELETE_ACCOUNT"
	OpAddReplica      Operation = "ADD_REPLICA"
	OpRemoveReplica   Operation = "REMOVE_REPLICA"
)

// Entry is a single replicated log entry: a term, an operation tag, and
// positional opaque string parameters.
type Entry struct {
	Term      uint64
	Operation Operation
	Params    []string
}

// Log is the append-only, 1-indexed sequence of Entry values for one node.
// It is not safe for concurrent use without external synchronisation; Node
// holds it behind its own mutex exactly like every other piece of decision
// state (the consensus core has one logical lock per node, not one per
// component).
type Log struct {
	entries []Entry // entries[0] is index 1
}

// New returns an empty log, optionally seeded from a persisted slice (used
// when restoring from the durable state store).
func New(seed []Entry) *Log {
	l := &Log{entries: make([]Entry, len(seed))}
	copy(l.entries, seed)
	return l
}

// Append adds one entry and returns its new 1-based index.
func (l *Log) Append(e Entry) uint64 {
	l.entries = append(l.entries, e)
	return uint64(len(l.entries))
}

// LastIndex returns 0 for an empty log.
func (l *Log) LastIndex() uint64 {
	return uint64(len(l.entries))
}

// LastTerm returns 0 for an empty log.
func (l *Log) LastTerm() uint64 {
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].Term
}

// At returns the entry at 1-based index idx, or false if out of range.
func (l *Log) At(idx uint64) (Entry, bool) {
	if idx == 0 || idx > uint64(len(l.entries)) {
		return Entry{}, false
	}
	return l.entries[idx-1], true
}

// TermAt returns the term of the entry at idx, or 0 if idx is 0 or out of
// range.
func (l *Log) TermAt(idx uint64) uint64 {
	e, ok := l.At(idx)
	if !ok {
		return 0
	}
	return e.Term
}

// Match reports whether prevIdx/prevTerm identify a point the local log
// agrees with: true iff prevIdx == 0, or the local entry at prevIdx carries
// prevTerm.
func (l *Log) Match(prevIdx, prevTerm uint64) bool {
	if prevIdx == 0 {
		return true
	}
	e, ok := l.At(prevIdx)
	if !ok {
		return false
	}
	return e.Term == prevTerm
}

// Slice returns a copy of entries in [from, to] (1-based, inclusive). An
// empty or out-of-range request yields nil.
func (l *Log) Slice(from, to uint64) []Entry {
	if from == 0 {
		from = 1
	}
	if to > uint64(len(l.entries)) {
		to = uint64(len(l.entries))
	}
	if from > to {
		return nil
	}
	out := make([]Entry, to-from+1)
	copy(out, l.entries[from-1:to])
	return out
}

// All returns a copy of the full entry slice, suitable for persistence.
func (l *Log) All() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Reconcile applies a follower's view of an AppendEntries RPC: it either
// rejects (returns false, making no changes), or splices newEntries in
// starting at prevIdx+1 following the rule in §4.2 of the design — entries
// past the end of the supplied range are left untouched, matching entries
// are left alone (no truncation on agreement), and the first real conflict
// truncates from that point on.
func (l *Log) Reconcile(prevIdx, prevTerm uint64, newEntries []Entry) bool {
	if prevIdx > l.LastIndex() {
		return false
	}
	if prevIdx > 0 && l.TermAt(prevIdx) != prevTerm {
		return false
	}

	// Edge case (§4.2): prevIdx == 0 with a non-empty incoming batch whose
	// first entry's term disagrees with our own first entry's term means
	// our whole log is foreign; wipe it before splicing.
	if prevIdx == 0 && len(newEntries) > 0 && len(l.entries) > 0 {
		if l.entries[0].Term != newEntries[0].Term {
			l.entries = l.entries[:0]
		}
	}

	for i, ne := range newEntries {
		idx := prevIdx + 1 + uint64(i)
		if existing, ok := l.At(idx); ok {
			if existing.Term != ne.Term {
				l.entries = l.entries[:idx-1]
				l.entries = append(l.entries, ne)
			}
			// terms match: leave the existing entry untouched.
			continue
		}
		l.entries = append(l.entries, ne)
	}
	return true
}

// TruncateAfter drops every entry with index > idx. Reconcile does its own
// truncation and does not call it; production code should prefer Reconcile.
func (l *Log) TruncateAfter(idx uint64) {
	if idx >= uint64(len(l.entries)) {
		return
	}
	l.entries = l.entries[:idx]
}
