package consensus

import (
	"sync"
	"time"

	"blograft/pkg/raftlog"
)

func (n *Node) runLeader() {
	n.mu.Lock()
	gen := n.generation
	n.mu.Unlock()

	n.sendHeartbeats(gen)

	ticker := time.NewTicker(n.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.mu.Lock()
			stillLeader := n.role == Leader && n.generation == gen
			n.mu.Unlock()
			if !stillLeader {
				return
			}
			if !n.checkLivenessAndMaybeStepDown(gen) {
				return
			}
			n.sendHeartbeats(gen)
		}
	}
}

// checkLivenessAndMaybeStepDown implements the leader liveness check
// (§4.3): before each heartbeat fan-out, ping every peer and step down if
// fewer than a majority (including self) respond at the current term.
func (n *Node) checkLivenessAndMaybeStepDown(gen uint64) bool {
	n.mu.Lock()
	term := n.currentTerm
	peers := n.cluster.OtherIDs()
	majority := n.cluster.QuorumSize()
	n.mu.Unlock()

	var respondents int64 = 1 // self
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, peerID := range peers {
		peerID := peerID
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := ctxWithTimeout(n.cfg.LivenessPingTimeout)
			defer cancel()
			reply, err := n.transport.Ping(ctx, n.id, peerID, PingArgs{Term: term, LeaderID: n.id})
			if err != nil {
				return
			}
			if reply.Term > term {
				n.mu.Lock()
				if n.generation == gen {
					n.becomeFollowerLocked(reply.Term)
				}
				n.mu.Unlock()
				return
			}
			if reply.Term == term {
				mu.Lock()
				respondents++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.role != Leader || n.generation != gen {
		return false
	}
	if int(respondents) < majority {
		n.logger.Printf("[%s] liveness check saw only %d/%d peers at term %d, stepping down", n.id, respondents, n.cluster.Size(), term)
		n.role = Follower
		n.generation++
		n.resetElectionDeadlineLocked()
		return false
	}
	return true
}

func (n *Node) sendHeartbeats(gen uint64) {
	n.mu.Lock()
	peers := n.cluster.OtherIDs()
	n.mu.Unlock()

	for _, peerID := range peers {
		peerID := peerID
		go n.replicateToFollower(peerID, gen)
	}
}

func (n *Node) replicateToFollower(peerID string, gen uint64) {
	n.mu.Lock()
	if n.role != Leader || n.generation != gen {
		n.mu.Unlock()
		return
	}
	term := n.currentTerm
	next := n.nextIndex[peerID]
	if next == 0 {
		next = 1
	}
	prevIdx := next - 1
	prevTerm := n.log.TermAt(prevIdx)
	entries := n.log.Slice(next, n.log.LastIndex())
	leaderCommit := n.commitIndex
	n.mu.Unlock()

	ctx, cancel := ctxWithTimeout(n.cfg.RPCTimeout)
	defer cancel()
	reply, err := n.transport.AppendEntries(ctx, n.id, peerID, AppendEntriesArgs{
		Term:         term,
		LeaderID:     n.id,
		PrevLogIndex: prevIdx,
		PrevLogTerm:  prevTerm,
		Entries:      entries,
		LeaderCommit: leaderCommit,
	})
	if err != nil {
		return // Transport error: absorbed, retried on next heartbeat tick.
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.generation != gen || n.role != Leader || n.currentTerm != term {
		return
	}
	if reply.Term > n.currentTerm {
		n.becomeFollowerLocked(reply.Term)
		return
	}
	if reply.Success {
		n.matchIndex[peerID] = prevIdx + uint64(len(entries))
		n.nextIndex[peerID] = n.matchIndex[peerID] + 1
		n.advanceCommitIndexLocked()
		return
	}
	// Failure: back off nextIndex by one, floor at 1, retry next tick.
	if n.nextIndex[peerID] > 1 {
		n.nextIndex[peerID]--
	}
}

// advanceCommitIndexLocked implements the majority-matchIndex commit rule
// (§4.4), including the commit-from-current-term safety requirement.
// Must be called with n.mu held.
func (n *Node) advanceCommitIndexLocked() {
	last := n.log.LastIndex()
	majority := n.cluster.QuorumSize()

	for N := last; N > n.commitIndex; N-- {
		if n.log.TermAt(N) != n.currentTerm {
			continue
		}
		count := 1 // self
		for _, peerID := range n.cluster.OtherIDs() {
			if n.matchIndex[peerID] >= N {
				count++
			}
		}
		if count >= majority {
			n.commitIndex = N
			n.applyCommittedLocked()
			return
		}
	}
}

// applyCommittedLocked feeds every entry in (lastApplied, commitIndex]
// into the state machine, in order, and wakes any Submit callers waiting
// on those indices (§4.6 O3: commit is deferred until majority match).
// Must be called with n.mu held.
func (n *Node) applyCommittedLocked() {
	for n.lastApplied < n.commitIndex {
		idx := n.lastApplied + 1
		entry, ok := n.log.At(idx)
		if !ok {
			break
		}

		switch entry.Operation {
		case raftlog.OpAddReplica:
			n.applyAddReplicaLocked(entry.Params)
		case raftlog.OpRemoveReplica:
			n.applyRemoveReplicaLocked(entry.Params)
		default:
			n.sm.Apply(idx, entry)
		}

		n.lastApplied = idx
		n.notifyWaitersLocked(idx, nil)
	}
}

// HandleAppendEntries implements the AppendEntries receiver rules (§4.4).
func (n *Node) HandleAppendEntries(args AppendEntriesArgs) AppendEntriesReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	if args.Term < n.currentTerm {
		return AppendEntriesReply{Term: n.currentTerm, Success: false}
	}
	if args.Term > n.currentTerm {
		n.becomeFollowerLocked(args.Term)
	} else if n.role == Candidate {
		n.role = Follower
		n.generation++
	}
	n.leaderID = args.LeaderID
	n.resetElectionDeadlineLocked()

	if !n.log.Reconcile(args.PrevLogIndex, args.PrevLogTerm, args.Entries) {
		return AppendEntriesReply{Term: n.currentTerm, Success: false}
	}

	if args.LeaderCommit > n.commitIndex {
		newCommit := args.LeaderCommit
		if last := n.log.LastIndex(); newCommit > last {
			newCommit = last
		}
		n.commitIndex = newCommit
		n.applyCommittedLocked()
	}

	// The append is not externally observable until it is durable (I6): a
	// failed persist must not be acknowledged as a successful append.
	if err := n.haltOnPersistFailureLocked(n.persistLocked()); err != nil {
		return AppendEntriesReply{Term: n.currentTerm, Success: false}
	}
	return AppendEntriesReply{Term: n.currentTerm, Success: true}
}

// HandlePing implements the liveness probe receiver side: it only ever
// reports/term-adopts, exactly like any other RPC with a term (§4.3's
// "Any -> Follower" rule), without touching the log or election timer.
func (n *Node) HandlePing(args PingArgs) PingReply {
	n.mu.Lock()
	defer n.mu.Unlock()
	if args.Term > n.currentTerm {
		n.becomeFollowerLocked(args.Term)
	}
	return PingReply{Term: n.currentTerm}
}

// HandleGetLeaderInfo answers the leader-discovery query (§6).
func (n *Node) HandleGetLeaderInfo() GetLeaderInfoReply {
	n.mu.Lock()
	defer n.mu.Unlock()
	return GetLeaderInfoReply{LeaderID: n.leaderID, IsLeader: n.role == Leader}
}
