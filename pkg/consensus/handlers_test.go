package consensus

import (
	"log"
	"testing"

	"blograft/pkg/dss"
	"blograft/pkg/membership"
	"blograft/pkg/raftlog"
)

type fakeStore struct {
	state dss.ConsensusState
}

func (f *fakeStore) SaveConsensus(s dss.ConsensusState) error {
	f.state = s
	return nil
}

func (f *fakeStore) LoadConsensus() dss.ConsensusState {
	return f.state
}

type fakeSM struct {
	applied []raftlog.Entry
	last    uint64
}

func (f *fakeSM) Apply(index uint64, entry raftlog.Entry) {
	f.applied = append(f.applied, entry)
	f.last = index
}

func (f *fakeSM) LastApplied() uint64 {
	return f.last
}

func newTestNode(id string, others []string) *Node {
	self := membership.Peer{ID: id}
	var peers []membership.Peer
	for _, o := range others {
		peers = append(peers, membership.Peer{ID: o})
	}
	cluster := membership.NewConfig(self, peers)
	cfg := DefaultConfig(id)
	return New(cfg, cluster, nil, &fakeSM{}, &fakeStore{}, log.Default())
}

func TestHandleRequestVoteGrantsWhenUpToDate(t *testing.T) {
	n := newTestNode("node-0", []string{"node-1"})
	reply := n.HandleRequestVote(RequestVoteArgs{
		Term:         1,
		CandidateID:  "node-1",
		LastLogIndex: 0,
		LastLogTerm:  0,
	})
	if !reply.VoteGranted {
		t.Fatalf("expected vote granted, got %+v", reply)
	}
}

func TestHandleRequestVoteRejectsStaleTerm(t *testing.T) {
	n := newTestNode("node-0", []string{"node-1"})
	n.HandleRequestVote(RequestVoteArgs{Term: 5, CandidateID: "node-1"})
	reply := n.HandleRequestVote(RequestVoteArgs{Term: 3, CandidateID: "node-2"})
	if reply.VoteGranted {
		t.Fatal("expected a stale-term RequestVote to be rejected")
	}
	if reply.Term != 5 {
		t.Fatalf("expected reply to carry the current term 5, got %d", reply.Term)
	}
}

func TestHandleRequestVoteRejectsSecondVoteInSameTerm(t *testing.T) {
	n := newTestNode("node-0", []string{"node-1", "node-2"})
	first := n.HandleRequestVote(RequestVoteArgs{Term: 1, CandidateID: "node-1"})
	if !first.VoteGranted {
		t.Fatal("expected the first vote request to be granted")
	}
	second := n.HandleRequestVote(RequestVoteArgs{Term: 1, CandidateID: "node-2"})
	if second.VoteGranted {
		t.Fatal("expected a second candidate in the same term to be refused")
	}
}

func TestHandleRequestVoteRejectsStaleLog(t *testing.T) {
	n := newTestNode("node-0", []string{"node-1"})
	n.mu.Lock()
	n.log.Append(raftlog.Entry{Term: 3, Operation: raftlog.OpSubscribe})
	n.mu.Unlock()

	reply := n.HandleRequestVote(RequestVoteArgs{
		Term:         4,
		CandidateID:  "node-1",
		LastLogIndex: 0,
		LastLogTerm:  0,
	})
	if reply.VoteGranted {
		t.Fatal("expected a candidate with an older log to be refused")
	}
}

func TestHandleAppendEntriesRejectsStaleTerm(t *testing.T) {
	n := newTestNode("node-0", []string{"node-1"})
	n.mu.Lock()
	n.currentTerm = 5
	n.mu.Unlock()

	reply := n.HandleAppendEntries(AppendEntriesArgs{Term: 3, LeaderID: "node-1"})
	if reply.Success {
		t.Fatal("expected AppendEntries from a stale term to fail")
	}
}

func TestHandleAppendEntriesAppendsAndCommits(t *testing.T) {
	n := newTestNode("node-0", []string{"node-1"})

	reply := n.HandleAppendEntries(AppendEntriesArgs{
		Term:         1,
		LeaderID:     "node-1",
		PrevLogIndex: 0,
		PrevLogTerm:  0,
		Entries: []raftlog.Entry{
			{Term: 1, Operation: raftlog.OpSubscribe, Params: []string{"a@example.com"}},
		},
		LeaderCommit: 1,
	})
	if !reply.Success {
		t.Fatalf("expected AppendEntries to succeed, got %+v", reply)
	}
	if n.GetCommitIndex() != 1 {
		t.Fatalf("expected commitIndex to advance to 1, got %d", n.GetCommitIndex())
	}
	if n.GetLeaderID() != "node-1" {
		t.Fatalf("expected leaderID to be recorded as node-1, got %q", n.GetLeaderID())
	}
}

func TestHandlePingReturnsCurrentTerm(t *testing.T) {
	n := newTestNode("node-0", []string{"node-1"})
	n.mu.Lock()
	n.currentTerm = 7
	n.mu.Unlock()

	reply := n.HandlePing(PingArgs{Term: 7, LeaderID: "node-1"})
	if reply.Term != 7 {
		t.Fatalf("expected Ping reply to echo current term 7, got %d", reply.Term)
	}
}

func TestHandleGetLeaderInfo(t *testing.T) {
	n := newTestNode("node-0", []string{"node-1"})
	n.mu.Lock()
	n.leaderID = "node-1"
	n.mu.Unlock()

	info := n.HandleGetLeaderInfo()
	if info.LeaderID != "node-1" || info.IsLeader {
		t.Fatalf("unexpected leader info: %+v", info)
	}
}
