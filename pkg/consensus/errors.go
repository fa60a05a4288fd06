package consensus

import "errors"

// Sentinel errors for the consensus core's own behavioural error
// taxonomy (§7).
var (
	ErrNotLeader         = errors.New("not leader")
	ErrTimeout           = errors.New("timeout waiting for commit")
	ErrNodeStopped       = errors.New("node stopped")
	ErrReplicationFailed = errors.New("replication failed")
	ErrUnknownPeer       = errors.New("unknown peer")
)
