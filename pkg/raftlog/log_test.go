package raftlog

import "testing"

func TestAppendAndLastIndex(t *testing.T) {
	l := New(nil)
	if l.LastIndex() != 0 {
		t.Fatalf("expected empty log to have LastIndex 0, got %d", l.LastIndex())
	}
	idx := l.Append(Entry{Term: 1, Operation: OpSubscribe, Params: []string{"a@example.com"}})
	if idx != 1 {
		t.Fatalf("expected first append to return index 1, got %d", idx)
	}
	if l.LastIndex() != 1 || l.LastTerm() != 1 {
		t.Fatalf("unexpected LastIndex/LastTerm: %d/%d", l.LastIndex(), l.LastTerm())
	}
}

func TestMatch(t *testing.T) {
	l := New([]Entry{{Term: 1, Operation: OpSubscribe}, {Term: 2, Operation: OpSubscribe}})
	if !l.Match(0, 0) {
		t.Fatal("prevIdx 0 must always match")
	}
	if !l.Match(2, 2) {
		t.Fatal("expected match at (2,2)")
	}
	if l.Match(2, 1) {
		t.Fatal("expected mismatch at (2,1)")
	}
	if l.Match(3, 1) {
		t.Fatal("expected mismatch past the end of the log")
	}
}

func TestReconcileAppendsNewEntries(t *testing.T) {
	l := New([]Entry{{Term: 1, Operation: OpSubscribe}})
	ok := l.Reconcile(1, 1, []Entry{{Term: 1, Operation: OpCreateAccount}, {Term: 1, Operation: OpCreatePost}})
	if !ok {
		t.Fatal("expected Reconcile to succeed")
	}
	if l.LastIndex() != 3 {
		t.Fatalf("expected 3 entries after reconcile, got %d", l.LastIndex())
	}
}

func TestReconcileRejectsOnPrevMismatch(t *testing.T) {
	l := New([]Entry{{Term: 1, Operation: OpSubscribe}})
	ok := l.Reconcile(1, 2, []Entry{{Term: 2, Operation: OpCreateAccount}})
	if ok {
		t.Fatal("expected Reconcile to reject a term mismatch at prevIdx")
	}
	if l.LastIndex() != 1 {
		t.Fatal("a rejected Reconcile must not mutate the log")
	}
}

func TestReconcileTruncatesOnConflict(t *testing.T) {
	l := New([]Entry{
		{Term: 1, Operation: OpSubscribe},
		{Term: 1, Operation: OpCreateAccount},
		{Term: 1, Operation: OpCreatePost},
	})
	// Leader's view disagrees starting at index 2: its entry there is term 2.
	ok := l.Reconcile(1, 1, []Entry{{Term: 2, Operation: OpDeletePost}})
	if !ok {
		t.Fatal("expected Reconcile to succeed")
	}
	if l.LastIndex() != 2 {
		t.Fatalf("expected truncation down to 2 entries, got %d", l.LastIndex())
	}
	e, _ := l.At(2)
	if e.Term != 2 || e.Operation != OpDeletePost {
		t.Fatalf("expected the conflicting entry to be overwritten, got %+v", e)
	}
}

func TestReconcileLeavesAgreeingEntriesAlone(t *testing.T) {
	l := New([]Entry{{Term: 1, Operation: OpSubscribe}, {Term: 1, Operation: OpCreateAccount}})
	// Same term at index 2: must not be truncated even though it's in range.
	ok := l.Reconcile(1, 1, []Entry{{Term: 1, Operation: OpCreateAccount}})
	if !ok {
		t.Fatal("expected Reconcile to succeed")
	}
	if l.LastIndex() != 2 {
		t.Fatalf("agreeing entries must not be truncated, got LastIndex %d", l.LastIndex())
	}
}

func TestReconcileForeignLogAtZero(t *testing.T) {
	l := New([]Entry{{Term: 5, Operation: OpSubscribe}})
	ok := l.Reconcile(0, 0, []Entry{{Term: 1, Operation: OpCreateAccount}})
	if !ok {
		t.Fatal("expected Reconcile to succeed")
	}
	if l.LastIndex() != 1 {
		t.Fatalf("expected the foreign term-5 entry to be wiped, got LastIndex %d", l.LastIndex())
	}
	e, _ := l.At(1)
	if e.Term != 1 {
		t.Fatalf("expected the new leader's entry to win, got term %d", e.Term)
	}
}

func TestSliceAndAll(t *testing.T) {
	l := New([]Entry{{Term: 1}, {Term: 2}, {Term: 3}})
	got := l.Slice(2, 3)
	if len(got) != 2 || got[0].Term != 2 || got[1].Term != 3 {
		t.Fatalf("unexpected slice: %+v", got)
	}
	if len(l.All()) != 3 {
		t.Fatal("All() should return every entry")
	}
}
