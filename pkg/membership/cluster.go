// Package membership tracks the cluster's peer set: the `replicas.json`
// shape (§6) and the quorum arithmetic the consensus core needs. Changes
// only ever land here via a committed ADD_REPLICA/REMOVE_REPLICA log
// entry (§4.7) — there is no direct mutation path from the RPC surface.
package membership

import (
	"strconv"
	"sync"
)

// Peer describes one cluster member and the on-disk paths it owns.
type Peer struct {
	ID            string `json:"id"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	RaftStore     string `json:"raft_store"`
	PostsStore    string `json:"posts_store"`
	UsersStore    string `json:"users_store"`
	WritersStore  string `json:"writers_store"`
	CommentsStore string `json:"comments_store"`
}

// Address returns the host:port a transport should dial.
func (p Peer) Address() string {
	if p.Port == 0 {
		return p.Host
	}
	return p.Host + ":" + strconv.Itoa(p.Port)
}

// Config is the mutable, thread-safe view of cluster membership held by a
// Node. Joint consensus is explicitly not implemented (§4.7): callers add
// or remove exactly one peer at a time, driven by applied log entries.
type Config struct {
	mu    sync.RWMutex
	self  string
	peers map[string]Peer
	order []string // insertion order, for deterministic iteration
}

// NewConfig builds a Config seeded with self plus the given peers.
func NewConfig(self Peer, peers []Peer) *Config {
	c := &Config{self: self.ID, peers: make(map[string]Peer)}
	c.addLocked(self)
	for _, p := range peers {
		c.addLocked(p)
	}
	return c
}

func (c *Config) addLocked(p Peer) {
	if _, exists := c.peers[p.ID]; !exists {
		c.order = append(c.order, p.ID)
	}
	c.peers[p.ID] = p
}

// Add splices a peer into the working set, or updates it if already
// present.
func (c *Config) Add(p Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(p)
}

// Remove drops a peer from the working set.
func (c *Config) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.peers, id)
	for i, pid := range c.order {
		if pid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Get returns the peer record for id.
func (c *Config) Get(id string) (Peer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.peers[id]
	return p, ok
}

// Self returns this node's own peer id.
func (c *Config) Self() string {
	return c.self
}

// OtherIDs returns every member id except self, in stable order.
func (c *Config) OtherIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.order))
	for _, id := range c.order {
		if id != c.self {
			out = append(out, id)
		}
	}
	return out
}

// Peers returns a snapshot of every member, including self.
func (c *Config) Peers() []Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Peer, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.peers[id])
	}
	return out
}

// Size is the total membership count, including self.
func (c *Config) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.peers)
}

// QuorumSize is floor(N/2)+1 over the current membership, including self.
func (c *Config) QuorumSize() int {
	return c.Size()/2 + 1
}
