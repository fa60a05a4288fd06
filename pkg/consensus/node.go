package consensus

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"blograft/pkg/dss"
	"blograft/pkg/membership"
	"blograft/pkg/raftlog"
)

// Node is the per-peer consensus actor. All decision state is protected
// by a single logical mutex (§5); outbound RPCs are always issued with
// the lock released, and handlers re-acquire it before touching state.
type Node struct {
	mu sync.Mutex

	id      string
	cfg     Config
	cluster *membership.Config

	currentTerm uint64
	votedFor    string
	log         *raftlog.Log

	role     Role
	leaderID string

	commitIndex uint64
	lastApplied uint64

	nextIndex  map[string]uint64
	matchIndex map[string]uint64

	electionDeadline time.Time
	generation       uint64 // bumped on every role transition; guards stale async results

	transport Transport
	sm        StateMachine
	store     ConsensusStore

	logger *log.Logger
	rng    *rand.Rand

	waiters map[uint64][]chan submitResult

	stopCh  chan struct{}
	started bool
	stopped bool
}

type submitResult struct {
	err error
}

// New constructs a Node. It does not start any timers; call Start for
// that. The persisted consensus state (if any) is restored immediately.
func New(cfg Config, cluster *membership.Config, transport Transport, sm StateMachine, store ConsensusStore, logger *log.Logger) *Node {
	if logger == nil {
		logger = log.Default()
	}
	n := &Node{
		id:         cfg.ID,
		cfg:        cfg,
		cluster:    cluster,
		role:       Follower,
		nextIndex:  make(map[string]uint64),
		matchIndex: make(map[string]uint64),
		transport:  transport,
		sm:         sm,
		store:      store,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(hashString(cfg.ID)))),
		waiters:    make(map[uint64][]chan submitResult),
		stopCh:     make(chan struct{}),
	}

	state := store.LoadConsensus()
	n.currentTerm = state.CurrentTerm
	n.votedFor = state.VotedFor
	n.log = raftlog.New(state.Log)
	return n
}

func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Start launches the node's run loop in a new goroutine.
func (n *Node) Start() error {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return nil
	}
	n.started = true
	n.resetElectionDeadlineLocked()
	n.mu.Unlock()

	go n.run()
	return nil
}

// Stop terminates the run loop and wakes any blocked Submit callers.
func (n *Node) Stop() {
	n.mu.Lock()
	n.stopLocked(ErrNodeStopped)
	n.mu.Unlock()
}

// stopLocked halts the run loop and wakes every blocked Submit caller
// with err. Idempotent. Must be called with n.mu held.
func (n *Node) stopLocked(err error) {
	if n.stopped {
		return
	}
	n.stopped = true
	close(n.stopCh)
	for idx, chans := range n.waiters {
		for _, ch := range chans {
			ch <- submitResult{err: err}
		}
		delete(n.waiters, idx)
	}
}

func (n *Node) run() {
	for {
		select {
		case <-n.stopCh:
			return
		default:
		}

		n.mu.Lock()
		role := n.role
		n.mu.Unlock()

		switch role {
		case Follower:
			n.runFollower()
		case Candidate:
			n.runCandidate()
		case Leader:
			n.runLeader()
		}
	}
}

func (n *Node) randomElectionTimeout() time.Duration {
	span := n.cfg.ElectionTimeoutMax - n.cfg.ElectionTimeoutMin
	if span <= 0 {
		return n.cfg.ElectionTimeoutMin
	}
	return n.cfg.ElectionTimeoutMin + time.Duration(n.rng.Int63n(int64(span)))
}

// resetElectionDeadlineLocked must be called with n.mu held.
func (n *Node) resetElectionDeadlineLocked() {
	n.electionDeadline = time.Now().Add(n.randomElectionTimeout())
}

func (n *Node) runFollower() {
	for {
		n.mu.Lock()
		if n.role != Follower {
			n.mu.Unlock()
			return
		}
		deadline := n.electionDeadline
		n.mu.Unlock()

		wait := time.Until(deadline)
		if wait <= 0 {
			n.mu.Lock()
			if n.role == Follower {
				n.becomeCandidateLocked()
			}
			n.mu.Unlock()
			return
		}

		select {
		case <-n.stopCh:
			return
		case <-time.After(wait):
			// Deadline may have been pushed out by an intervening RPC;
			// loop back and recheck rather than assuming expiry.
		}
	}
}

// GetID returns the node's own peer id.
func (n *Node) GetID() string { return n.id }

// GetState returns the current term and whether this node is leader.
func (n *Node) GetState() (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentTerm, n.role == Leader
}

// IsLeader reports whether this node currently believes itself leader.
func (n *Node) IsLeader() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role == Leader
}

// GetLeaderID returns the last-known leader id (may be stale/empty).
func (n *Node) GetLeaderID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.leaderID
}

// GetCommitIndex returns the current commit index.
func (n *Node) GetCommitIndex() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.commitIndex
}

// GetLog returns a copy of the full log, for diagnostics and tests.
func (n *Node) GetLog() []raftlog.Entry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.log.All()
}

// GetClusterSize returns the total membership count, including self.
func (n *Node) GetClusterSize() int {
	return n.cluster.Size()
}

// persistLocked must be called with n.mu held. A persistence failure is
// Fatal (§7): the caller should stop serving mutations. We surface it by
// logging and returning the error to callers that can propagate it.
func (n *Node) persistLocked() error {
	state := dss.ConsensusState{
		CurrentTerm: n.currentTerm,
		VotedFor:    n.votedFor,
		Log:         n.log.All(),
	}
	if err := n.store.SaveConsensus(state); err != nil {
		n.logger.Printf("[%s] FATAL: consensus persistence failed: %v", n.id, err)
		return fmt.Errorf("%w: %v", ErrReplicationFailed, err)
	}
	return nil
}

// haltOnPersistFailureLocked stops the node if err is non-nil: once a
// term/votedFor/log write can't be confirmed durable, this node can no
// longer tell its in-memory state apart from state nobody else will ever
// see again after a restart (I6), so it must stop serving RPCs and
// mutations rather than keep participating on an unconfirmed basis. It
// returns err unchanged so callers can fold it straight into a reply.
// Must be called with n.mu held.
func (n *Node) haltOnPersistFailureLocked(err error) error {
	if err != nil {
		n.stopLocked(err)
	}
	return err
}

// becomeFollowerLocked adopts a newly observed higher term and steps down.
// Must be called with n.mu held.
func (n *Node) becomeFollowerLocked(term uint64) {
	if term > n.currentTerm {
		n.currentTerm = term
		n.votedFor = ""
	}
	n.role = Follower
	n.generation++
	n.resetElectionDeadlineLocked()
	n.haltOnPersistFailureLocked(n.persistLocked())
}

func (n *Node) becomeCandidateLocked() {
	n.role = Candidate
	n.generation++
}

func (n *Node) becomeLeaderLocked() {
	n.role = Leader
	n.leaderID = n.id
	n.generation++
	last := n.log.LastIndex()
	for _, peerID := range n.cluster.OtherIDs() {
		n.nextIndex[peerID] = last + 1
		n.matchIndex[peerID] = 0
	}
	n.logger.Printf("[%s] became leader for term %d", n.id, n.currentTerm)
}

func ctxWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

func timeAfter(deadline time.Time) <-chan time.Time {
	return time.After(time.Until(deadline))
}
