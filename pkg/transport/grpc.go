package transport

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"blograft/pkg/consensus"
	"blograft/pkg/membership"
	"blograft/pkg/transport/wire"
)

// nodeServer adapts *consensus.Node to wire.RaftServiceServer.
type nodeServer struct {
	node *consensus.Node
}

func (a nodeServer) RequestVote(ctx context.Context, args *consensus.RequestVoteArgs) (*consensus.RequestVoteReply, error) {
	reply := a.node.HandleRequestVote(*args)
	return &reply, nil
}

func (a nodeServer) AppendEntries(ctx context.Context, args *consensus.AppendEntriesArgs) (*consensus.AppendEntriesReply, error) {
	reply := a.node.HandleAppendEntries(*args)
	return &reply, nil
}

func (a nodeServer) Ping(ctx context.Context, args *consensus.PingArgs) (*consensus.PingReply, error) {
	reply := a.node.HandlePing(*args)
	return &reply, nil
}

func (a nodeServer) GetLeaderInfo(ctx context.Context, _ *consensus.GetLeaderInfoArgs) (*consensus.GetLeaderInfoReply, error) {
	reply := a.node.HandleGetLeaderInfo()
	return &reply, nil
}

// GRPCTransport is the real, over-the-wire Replication Transport (§4.4):
// a grpc.Server fronting the local node, plus a cache of lazily-dialled
// client connections to peers (§9's "cached peer channels with liveness
// probes" design note), grounded in the teacher's pkg/grpc/transport.go.
type GRPCTransport struct {
	mu      sync.Mutex
	conns   map[string]*grpc.ClientConn
	cluster *membership.Config
	server  *grpc.Server
	logger  *log.Logger
}

// NewGRPCTransport returns a transport that resolves peer addresses from
// cluster. Call Serve once the local *consensus.Node exists.
func NewGRPCTransport(cluster *membership.Config, logger *log.Logger) *GRPCTransport {
	if logger == nil {
		logger = log.Default()
	}
	return &GRPCTransport{
		conns:   make(map[string]*grpc.ClientConn),
		cluster: cluster,
		logger:  logger,
	}
}

// Serve starts a gRPC server on listenAddr dispatching to node, and
// blocks until the listener is closed. Run it in its own goroutine.
func (t *GRPCTransport) Serve(listenAddr string, node *consensus.Node) error {
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", listenAddr, err)
	}
	t.server = grpc.NewServer()
	wire.RegisterRaftServiceServer(t.server, nodeServer{node: node})
	return t.server.Serve(lis)
}

// Stop gracefully stops the server and closes every cached client conn.
func (t *GRPCTransport) Stop() {
	if t.server != nil {
		t.server.GracefulStop()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, cc := range t.conns {
		cc.Close()
	}
	t.conns = make(map[string]*grpc.ClientConn)
}

// getClient returns a cached connection to peerID, dialling lazily and
// discarding+redialling if the cached one is shut down or in transient
// failure.
func (t *GRPCTransport) getClient(ctx context.Context, peerID string) (wire.RaftServiceClient, error) {
	peer, ok := t.cluster.Get(peerID)
	if !ok {
		return wire.RaftServiceClient{}, consensus.ErrUnknownPeer
	}

	t.mu.Lock()
	cc, exists := t.conns[peerID]
	if exists {
		state := cc.GetState()
		if state.String() == "SHUTDOWN" || state.String() == "TRANSIENT_FAILURE" {
			cc.Close()
			delete(t.conns, peerID)
			exists = false
		}
	}
	t.mu.Unlock()

	if exists {
		return wire.NewRaftServiceClient(cc), nil
	}

	newCC, err := grpc.DialContext(ctx, peer.Address(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return wire.RaftServiceClient{}, fmt.Errorf("transport: dial %s: %w", peerID, err)
	}

	t.mu.Lock()
	t.conns[peerID] = newCC
	t.mu.Unlock()
	return wire.NewRaftServiceClient(newCC), nil
}

// fromID is part of the Transport interface for LocalTransport's benefit
// (simulated partitions); a real dial either reaches peerID or it
// doesn't, so GRPCTransport ignores it.
func (t *GRPCTransport) RequestVote(ctx context.Context, fromID, peerID string, args consensus.RequestVoteArgs) (consensus.RequestVoteReply, error) {
	client, err := t.getClient(ctx, peerID)
	if err != nil {
		return consensus.RequestVoteReply{}, err
	}
	reply, err := client.RequestVote(ctx, &args)
	if err != nil {
		return consensus.RequestVoteReply{}, err
	}
	return *reply, nil
}

func (t *GRPCTransport) AppendEntries(ctx context.Context, fromID, peerID string, args consensus.AppendEntriesArgs) (consensus.AppendEntriesReply, error) {
	client, err := t.getClient(ctx, peerID)
	if err != nil {
		return consensus.AppendEntriesReply{}, err
	}
	reply, err := client.AppendEntries(ctx, &args)
	if err != nil {
		return consensus.AppendEntriesReply{}, err
	}
	return *reply, nil
}

func (t *GRPCTransport) Ping(ctx context.Context, fromID, peerID string, args consensus.PingArgs) (consensus.PingReply, error) {
	client, err := t.getClient(ctx, peerID)
	if err != nil {
		return consensus.PingReply{}, err
	}
	reply, err := client.Ping(ctx, &args)
	if err != nil {
		return consensus.PingReply{}, err
	}
	return *reply, nil
}

func (t *GRPCTransport) GetLeaderInfo(ctx context.Context, fromID, peerID string) (consensus.GetLeaderInfoReply, error) {
	client, err := t.getClient(ctx, peerID)
	if err != nil {
		return consensus.GetLeaderInfoReply{}, err
	}
	reply, err := client.GetLeaderInfo(ctx, &consensus.GetLeaderInfoArgs{})
	if err != nil {
		return consensus.GetLeaderInfoReply{}, err
	}
	return *reply, nil
}
