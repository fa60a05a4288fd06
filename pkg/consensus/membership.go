package consensus

import (
	"context"
	"encoding/json"

	"blograft/pkg/membership"
	"blograft/pkg/raftlog"
)

// applyAddReplicaLocked handles a committed ADD_REPLICA entry: splice the
// peer into the working cluster config and initialise its progress
// indices exactly as on leader startup (§4.7, S6). Must be called with
// n.mu held.
func (n *Node) applyAddReplicaLocked(params []string) {
	if len(params) != 1 {
		return
	}
	var peer membership.Peer
	if err := json.Unmarshal([]byte(params[0]), &peer); err != nil {
		n.logger.Printf("[%s] skipping malformed ADD_REPLICA entry: %v", n.id, err)
		return
	}
	if peer.ID == "" || peer.ID == n.id {
		return
	}
	n.cluster.Add(peer)
	n.nextIndex[peer.ID] = n.log.LastIndex() + 1
	n.matchIndex[peer.ID] = 0
}

// applyRemoveReplicaLocked handles a committed REMOVE_REPLICA entry.
// Must be called with n.mu held.
func (n *Node) applyRemoveReplicaLocked(params []string) {
	if len(params) != 1 {
		return
	}
	peerID := params[0]
	n.cluster.Remove(peerID)
	delete(n.nextIndex, peerID)
	delete(n.matchIndex, peerID)
}

// notifyWaitersLocked wakes every Submit caller blocked on idx. Must be
// called with n.mu held.
func (n *Node) notifyWaitersLocked(idx uint64, err error) {
	chans, ok := n.waiters[idx]
	if !ok {
		return
	}
	delete(n.waiters, idx)
	for _, ch := range chans {
		ch <- submitResult{err: err}
	}
}

// Submit is the leader-only ingress path (§4.6): construct a log entry,
// append it, and block until it commits and is applied (the conformant,
// majority-before-commit alternative adopted for O3 — see SPEC_FULL.md
// §4.6). Returns ErrNotLeader immediately if this node is not leader.
func (n *Node) Submit(ctx context.Context, op raftlog.Operation, params []string) error {
	n.mu.Lock()
	if n.role != Leader {
		n.mu.Unlock()
		return ErrNotLeader
	}

	entry := raftlog.Entry{Term: n.currentTerm, Operation: op, Params: params}
	idx := n.log.Append(entry)
	if err := n.haltOnPersistFailureLocked(n.persistLocked()); err != nil {
		n.mu.Unlock()
		return err
	}

	ch := make(chan submitResult, 1)
	n.waiters[idx] = append(n.waiters[idx], ch)

	// A single-node cluster commits immediately (self is already a
	// majority); advanceCommitIndexLocked handles that uniformly.
	n.advanceCommitIndexLocked()

	gen := n.generation
	n.mu.Unlock()

	// Nudge replication immediately rather than waiting for the next
	// heartbeat tick, so a write commits as soon as a majority is fast.
	n.sendHeartbeats(gen)

	select {
	case res := <-ch:
		return res.err
	case <-ctx.Done():
		return ctx.Err()
	case <-n.stopCh:
		return ErrNodeStopped
	}
}

// AddReplica proposes a membership-change entry adding peer (§4.7).
func (n *Node) AddReplica(ctx context.Context, peer membership.Peer) error {
	data, err := json.Marshal(peer)
	if err != nil {
		return err
	}
	return n.Submit(ctx, raftlog.OpAddReplica, []string{string(data)})
}

// RemoveReplica proposes a membership-change entry removing peerID.
func (n *Node) RemoveReplica(ctx context.Context, peerID string) error {
	return n.Submit(ctx, raftlog.OpRemoveReplica, []string{peerID})
}
