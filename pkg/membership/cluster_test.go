package membership

import "testing"

func TestQuorumSize(t *testing.T) {
	cases := []struct {
		size  int
		quorum int
	}{
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 3},
		{5, 3},
	}
	for _, c := range cases {
		self := Peer{ID: "node-0"}
		var others []Peer
		for i := 1; i < c.size; i++ {
			others = append(others, Peer{ID: "node-" + string(rune('0'+i))})
		}
		cfg := NewConfig(self, others)
		if cfg.Size() != c.size {
			t.Fatalf("size %d: expected Size()=%d, got %d", c.size, c.size, cfg.Size())
		}
		if cfg.QuorumSize() != c.quorum {
			t.Fatalf("size %d: expected quorum %d, got %d", c.size, c.quorum, cfg.QuorumSize())
		}
	}
}

func TestAddRemoveExcludesSelfFromOtherIDs(t *testing.T) {
	cfg := NewConfig(Peer{ID: "self"}, []Peer{{ID: "peer-a"}, {ID: "peer-b"}})
	others := cfg.OtherIDs()
	if len(others) != 2 {
		t.Fatalf("expected 2 other ids, got %v", others)
	}
	for _, id := range others {
		if id == "self" {
			t.Fatal("OtherIDs must never include self")
		}
	}

	cfg.Remove("peer-a")
	if cfg.Size() != 2 {
		t.Fatalf("expected size 2 after removing peer-a, got %d", cfg.Size())
	}
	if _, ok := cfg.Get("peer-a"); ok {
		t.Fatal("expected peer-a to be gone after Remove")
	}

	cfg.Add(Peer{ID: "peer-c"})
	if cfg.Size() != 3 {
		t.Fatalf("expected size 3 after adding peer-c, got %d", cfg.Size())
	}
}

func TestPeerAddress(t *testing.T) {
	p := Peer{Host: "10.0.0.1", Port: 9001}
	if p.Address() != "10.0.0.1:9001" {
		t.Fatalf("unexpected address: %q", p.Address())
	}
	p2 := Peer{Host: "unix:///tmp/sock"}
	if p2.Address() != "unix:///tmp/sock" {
		t.Fatalf("expected a zero port to fall back to bare host, got %q", p2.Address())
	}
}
