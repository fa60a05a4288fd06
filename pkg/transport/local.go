// Package transport provides the Replication Transport component (§4.4):
// a gRPC-backed implementation for real deployments (grpc.go) and an
// in-memory one for deterministic tests (this file), grounded in the
// teacher's pkg/rpc/transport.go LocalTransport.
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"blograft/pkg/consensus"
)

var ErrDisconnected = errors.New("transport: peer disconnected")

// handler is the subset of *consensus.Node the local transport needs;
// declared as an interface so tests can register fakes.
type handler interface {
	HandleRequestVote(args consensus.RequestVoteArgs) consensus.RequestVoteReply
	HandleAppendEntries(args consensus.AppendEntriesArgs) consensus.AppendEntriesReply
	HandlePing(args consensus.PingArgs) consensus.PingReply
	HandleGetLeaderInfo() consensus.GetLeaderInfoReply
}

// LocalTransport routes RPCs directly to in-process node handlers,
// without serialisation, for tests and simulation. Partition/Heal/
// SetLatency let scenario tests (§8 S1/S3/S4/S6) inject network faults.
type LocalTransport struct {
	mu           sync.RWMutex
	nodes        map[string]handler
	disconnected map[string]bool
	latency      time.Duration
}

// NewLocalTransport returns an empty transport; register nodes with
// Register before starting them.
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{
		nodes:        make(map[string]handler),
		disconnected: make(map[string]bool),
	}
}

// Register makes a node reachable by id.
func (t *LocalTransport) Register(id string, n handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[id] = n
}

// SetLatency adds an artificial delay before every call resolves.
func (t *LocalTransport) SetLatency(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latency = d
}

// Disconnect makes id unreachable in both directions.
func (t *LocalTransport) Disconnect(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnected[id] = true
}

// Connect restores reachability for id.
func (t *LocalTransport) Connect(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.disconnected, id)
}

// Partition is an alias for Disconnect, read more naturally at call sites
// simulating a network partition (§8 S1/S3).
func (t *LocalTransport) Partition(id string) { t.Disconnect(id) }

// Heal is an alias for Connect.
func (t *LocalTransport) Heal(id string) { t.Connect(id) }

// HealAll reconnects every previously disconnected node.
func (t *LocalTransport) HealAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnected = make(map[string]bool)
}

// reachable resolves peerID's handler, but only if neither fromID nor
// peerID is currently disconnected: a partition severs the link in both
// directions, so a partitioned node's own outbound calls must fail
// exactly like inbound calls addressed to it (§8 S3).
func (t *LocalTransport) reachable(fromID, peerID string) (handler, time.Duration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.disconnected[fromID] || t.disconnected[peerID] {
		return nil, 0, false
	}
	n, ok := t.nodes[peerID]
	return n, t.latency, ok
}

func (t *LocalTransport) delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *LocalTransport) RequestVote(ctx context.Context, fromID, peerID string, args consensus.RequestVoteArgs) (consensus.RequestVoteReply, error) {
	n, d, ok := t.reachable(fromID, peerID)
	if !ok {
		return consensus.RequestVoteReply{}, ErrDisconnected
	}
	if err := t.delay(ctx, d); err != nil {
		return consensus.RequestVoteReply{}, err
	}
	return n.HandleRequestVote(args), nil
}

func (t *LocalTransport) AppendEntries(ctx context.Context, fromID, peerID string, args consensus.AppendEntriesArgs) (consensus.AppendEntriesReply, error) {
	n, d, ok := t.reachable(fromID, peerID)
	if !ok {
		return consensus.AppendEntriesReply{}, ErrDisconnected
	}
	if err := t.delay(ctx, d); err != nil {
		return consensus.AppendEntriesReply{}, err
	}
	return n.HandleAppendEntries(args), nil
}

func (t *LocalTransport) Ping(ctx context.Context, fromID, peerID string, args consensus.PingArgs) (consensus.PingReply, error) {
	n, d, ok := t.reachable(fromID, peerID)
	if !ok {
		return consensus.PingReply{}, ErrDisconnected
	}
	if err := t.delay(ctx, d); err != nil {
		return consensus.PingReply{}, err
	}
	return n.HandlePing(args), nil
}

func (t *LocalTransport) GetLeaderInfo(ctx context.Context, fromID, peerID string) (consensus.GetLeaderInfoReply, error) {
	n, d, ok := t.reachable(fromID, peerID)
	if !ok {
		return consensus.GetLeaderInfoReply{}, ErrDisconnected
	}
	if err := t.delay(ctx, d); err != nil {
		return consensus.GetLeaderInfoReply{}, err
	}
	return n.HandleGetLeaderInfo(), nil
}
