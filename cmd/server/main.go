// Command server is the process launcher (§6): a single binary taking
// --id <peer_id>, reading cluster topology from replicas.json, and
// binding to its configured host:port. The launcher itself is an
// out-of-scope external collaborator (§1) — it only wires the core
// components together.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blograft/pkg/apiserver"
	"blograft/pkg/blogservice"
	"blograft/pkg/consensus"
	"blograft/pkg/dss"
	"blograft/pkg/membership"
	"blograft/pkg/notify"
	"blograft/pkg/statemachine"
	"blograft/pkg/transport"
)

func main() {
	nodeID := flag.String("id", "", "this node's peer id (must appear in replicas.json)")
	replicasPath := flag.String("replicas", "replicas.json", "path to the cluster config file")
	httpAddr := flag.String("http", "", "status/health HTTP listen address (e.g. localhost:8000)")
	notifyRedisURL := flag.String("notify-redis", "", "optional redis URL for the new-post notification queue")
	flag.Parse()

	if *nodeID == "" {
		flag.Usage()
		os.Exit(1)
	}

	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", *nodeID), log.LstdFlags)

	peers, err := loadReplicas(*replicasPath)
	if err != nil {
		logger.Fatalf("loading %s: %v", *replicasPath, err)
	}

	self, others, err := splitSelf(*nodeID, peers)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	store := dss.New(self.RaftStore, self.PostsStore, self.UsersStore, self.WritersStore, self.CommentsStore, *replicasPath)

	var sink statemachine.NotifySink
	if *notifyRedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisSink, err := notify.NewRedisQueueSink(ctx, *notifyRedisURL, "")
		cancel()
		if err != nil {
			logger.Fatalf("connecting notify redis: %v", err)
		}
		sink = redisSink
	} else {
		sink = notify.NewLogSink(logger)
	}

	sm := statemachine.New(logger, sink, store)

	cluster := membership.NewConfig(self, others)
	cfg := consensus.DefaultConfig(self.ID)

	grpcTransport := transport.NewGRPCTransport(cluster, logger)
	node := consensus.New(cfg, cluster, grpcTransport, sm, store, logger)

	go func() {
		logger.Printf("raft listening on %s", self.Address())
		if err := grpcTransport.Serve(fmt.Sprintf("%s:%d", self.Host, self.Port), node); err != nil {
			logger.Printf("grpc server stopped: %v", err)
		}
	}()

	if err := node.Start(); err != nil {
		logger.Fatalf("starting node: %v", err)
	}

	svc := blogservice.New(node, sm)

	var httpServer *http.Server
	if *httpAddr != "" {
		httpServer = &http.Server{Addr: *httpAddr, Handler: apiserver.NewHandler(svc)}
		go func() {
			logger.Printf("status API listening on %s", *httpAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("http server error: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if httpServer != nil {
		httpServer.Shutdown(ctx)
	}
	node.Stop()
	grpcTransport.Stop()

	logger.Println("shutdown complete")
}

func loadReplicas(path string) ([]membership.Peer, error) {
	s := dss.New("", "", "", "", "", path)
	return s.LoadReplicas()
}

func splitSelf(id string, peers []membership.Peer) (membership.Peer, []membership.Peer, error) {
	var self membership.Peer
	var others []membership.Peer
	found := false
	for _, p := range peers {
		if p.ID == id {
			self = p
			found = true
			continue
		}
		others = append(others, p)
	}
	if !found {
		return membership.Peer{}, nil, fmt.Errorf("node id %q not found in replicas file", id)
	}
	return self, others, nil
}
