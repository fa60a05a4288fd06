// Package testharness is an in-memory multi-node test rig, grounded in
// the teacher's pkg/testing/cluster.go TestCluster: it wires N consensus
// nodes over a shared LocalTransport with real election timers, so
// scenario tests exercise the actual election/replication goroutines
// rather than a mocked-out stand-in.
package testharness

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"blograft/pkg/consensus"
	"blograft/pkg/dss"
	"blograft/pkg/membership"
	"blograft/pkg/notify"
	"blograft/pkg/raftlog"
	"blograft/pkg/statemachine"
	"blograft/pkg/transport"
)

// memConsensusStore is an in-memory stand-in for *dss.Store's consensus
// persistence, used so tests don't touch the filesystem. It satisfies
// consensus.ConsensusStore structurally.
type memConsensusStore struct {
	state dss.ConsensusState
}

func (m *memConsensusStore) SaveConsensus(s dss.ConsensusState) error {
	m.state = s
	return nil
}

func (m *memConsensusStore) LoadConsensus() dss.ConsensusState {
	return m.state
}

// Cluster is a set of blograft nodes sharing an in-memory transport.
type Cluster struct {
	Nodes     []*consensus.Node
	Stores    []*statemachine.Store
	Transport *transport.LocalTransport
}

// New builds a Cluster of the given size with aggressive-but-stable test
// timeouts (election 300-600ms, heartbeat 50ms), mirroring the teacher's
// "much longer timeouts for test stability... heartbeat << election
// timeout" comment in NewTestCluster.
func New(size int) *Cluster {
	lt := transport.NewLocalTransport()

	ids := make([]string, size)
	for i := 0; i < size; i++ {
		ids[i] = fmt.Sprintf("node-%d", i)
	}

	peersByID := make(map[string]membership.Peer, size)
	for i, id := range ids {
		peersByID[id] = membership.Peer{ID: id, Host: "local", Port: i}
	}

	c := &Cluster{Transport: lt}

	for i, id := range ids {
		var others []membership.Peer
		for _, other := range ids {
			if other != id {
				others = append(others, peersByID[other])
			}
		}
		cluster := membership.NewConfig(peersByID[id], others)

		logger := log.New(os.Stderr, fmt.Sprintf("[test %s] ", id), 0)
		sm := statemachine.New(logger, notify.NewLogSink(logger), nil)

		cfg := consensus.Config{
			ID:                  id,
			ElectionTimeoutMin:  300 * time.Millisecond,
			ElectionTimeoutMax:  600 * time.Millisecond,
			HeartbeatInterval:   50 * time.Millisecond,
			RPCTimeout:          200 * time.Millisecond,
			LivenessPingTimeout: 100 * time.Millisecond,
			LeaderQueryTimeout:  200 * time.Millisecond,
		}

		node := consensus.New(cfg, cluster, lt, sm, &memConsensusStore{}, logger)
		lt.Register(id, node)

		c.Nodes = append(c.Nodes, node)
		c.Stores = append(c.Stores, sm)
	}

	return c
}

// Start starts every node.
func (c *Cluster) Start() error {
	for _, n := range c.Nodes {
		if err := n.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops every node.
func (c *Cluster) Stop() {
	for _, n := range c.Nodes {
		n.Stop()
	}
}

// Leader returns the current leader, or nil if none.
func (c *Cluster) Leader() *consensus.Node {
	for _, n := range c.Nodes {
		if n.IsLeader() {
			return n
		}
	}
	return nil
}

// WaitForLeader polls until some node believes it is leader.
func (c *Cluster) WaitForLeader(timeout time.Duration) (*consensus.Node, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if l := c.Leader(); l != nil {
			return l, nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil, fmt.Errorf("testharness: no leader elected within %s", timeout)
}

// WaitForNewLeader waits for a leader other than excludeID.
func (c *Cluster) WaitForNewLeader(excludeID string, timeout time.Duration) (*consensus.Node, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, n := range c.Nodes {
			if n.GetID() != excludeID && n.IsLeader() {
				return n, nil
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil, fmt.Errorf("testharness: no new leader elected within %s", timeout)
}

// PartitionLeader disconnects whichever node is currently leader and
// returns it, for scenario tests exercising a leader failure (§8 S1/S3).
func (c *Cluster) PartitionLeader() *consensus.Node {
	l := c.Leader()
	if l != nil {
		c.Transport.Partition(l.GetID())
	}
	return l
}

// HealPartition reconnects every disconnected node.
func (c *Cluster) HealPartition() {
	c.Transport.HealAll()
}

// Submit retries Submit against whichever node is currently leader until
// it succeeds or timeout elapses, mirroring the teacher's
// TestCluster.SubmitCommand retry loop.
func (c *Cluster) Submit(op raftlog.Operation, params []string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		leader := c.Leader()
		if leader == nil {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		remaining := time.Until(deadline)
		if remaining < 200*time.Millisecond {
			remaining = 200 * time.Millisecond
		}
		ctx, cancel := context.WithTimeout(context.Background(), remaining)
		err := leader.Submit(ctx, op, params)
		cancel()

		if err == nil {
			return nil
		}
		if err == consensus.ErrNotLeader || err == context.DeadlineExceeded {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		return err
	}
	return fmt.Errorf("testharness: timeout submitting %s", op)
}
