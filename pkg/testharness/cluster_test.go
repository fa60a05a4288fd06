package testharness

import (
	"testing"
	"time"

	"blograft/pkg/raftlog"
)

func TestElectsASingleLeader(t *testing.T) {
	c := New(3)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	leader, err := c.WaitForLeader(3 * time.Second)
	if err != nil {
		t.Fatalf("WaitForLeader: %v", err)
	}

	leaderCount := 0
	for _, n := range c.Nodes {
		if n.IsLeader() {
			leaderCount++
		}
	}
	if leaderCount != 1 {
		t.Fatalf("expected exactly one leader, found %d", leaderCount)
	}
	if leader.GetID() == "" {
		t.Fatal("expected the elected leader to have a non-empty id")
	}
}

func TestSubmitReplicatesToFollowers(t *testing.T) {
	c := New(3)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	if _, err := c.WaitForLeader(3 * time.Second); err != nil {
		t.Fatalf("WaitForLeader: %v", err)
	}

	if err := c.Submit(raftlog.OpSubscribe, []string{"a@example.com"}, 3*time.Second); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		allCaughtUp := true
		for _, s := range c.Stores {
			if !s.HasSubscriber("a@example.com") {
				allCaughtUp = false
				break
			}
		}
		if allCaughtUp {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected every node's state machine to converge on the subscribed email")
}

func TestLeaderFailoverElectsNewLeader(t *testing.T) {
	c := New(3)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	first, err := c.WaitForLeader(3 * time.Second)
	if err != nil {
		t.Fatalf("WaitForLeader: %v", err)
	}

	c.Transport.Partition(first.GetID())
	defer c.HealPartition()

	second, err := c.WaitForNewLeader(first.GetID(), 5*time.Second)
	if err != nil {
		t.Fatalf("WaitForNewLeader: %v", err)
	}
	if second.GetID() == first.GetID() {
		t.Fatal("expected a different node to become the new leader")
	}
}

func TestCommittedEntriesSurviveFailover(t *testing.T) {
	c := New(3)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	first, err := c.WaitForLeader(3 * time.Second)
	if err != nil {
		t.Fatalf("WaitForLeader: %v", err)
	}
	if err := c.Submit(raftlog.OpSubscribe, []string{"durable@example.com"}, 3*time.Second); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	c.Transport.Partition(first.GetID())
	defer c.HealPartition()

	if _, err := c.WaitForNewLeader(first.GetID(), 5*time.Second); err != nil {
		t.Fatalf("WaitForNewLeader: %v", err)
	}

	for i, n := range c.Nodes {
		if n.GetID() == first.GetID() {
			continue
		}
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) && !c.Stores[i].HasSubscriber("durable@example.com") {
			time.Sleep(20 * time.Millisecond)
		}
		if !c.Stores[i].HasSubscriber("durable@example.com") {
			t.Fatalf("expected node %s to retain the committed subscription after failover", n.GetID())
		}
	}
}
