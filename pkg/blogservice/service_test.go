package blogservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"blograft/pkg/consensus"
	"blograft/pkg/dss"
	"blograft/pkg/membership"
	"blograft/pkg/notify"
	"blograft/pkg/statemachine"
	"blograft/pkg/transport"
)

type memStore struct{ state dss.ConsensusState }

func (m *memStore) SaveConsensus(s dss.ConsensusState) error { m.state = s; return nil }
func (m *memStore) LoadConsensus() dss.ConsensusState        { return m.state }

// newSingleNodeService returns a Service backed by a one-node cluster,
// which commits its own proposals without waiting on any peer (self alone
// is a quorum of one) — enough to exercise the validation/ingress seam
// without a multi-node transport.
func newSingleNodeService(t *testing.T) *Service {
	t.Helper()
	cluster := membership.NewConfig(membership.Peer{ID: "solo"}, nil)
	cfg := consensus.DefaultConfig("solo")
	cfg.ElectionTimeoutMin = 50 * time.Millisecond
	cfg.ElectionTimeoutMax = 100 * time.Millisecond
	cfg.HeartbeatInterval = 20 * time.Millisecond

	sm := statemachine.New(nil, notify.NewLogSink(nil), nil)
	lt := transport.NewLocalTransport()
	node := consensus.New(cfg, cluster, lt, sm, &memStore{}, nil)
	lt.Register("solo", node)
	require.NoError(t, node.Start())
	t.Cleanup(node.Stop)

	require.Eventually(t, node.IsLeader, 2*time.Second, 10*time.Millisecond,
		"expected the solo node to become leader")

	return New(node, sm)
}

func TestCreateAccountHashesPasswordBeforeLogging(t *testing.T) {
	svc := newSingleNodeService(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, svc.CreateAccount(ctx, "Ada", "ada@example.com", "supersecret"))

	w, ok := svc.Store().GetWriter("ada@example.com")
	require.True(t, ok, "expected writer to exist after CreateAccount")
	require.NotEqual(t, "supersecret", w.PasswordHash, "stored value must be a hash, not the plaintext password")

	ok2, err := svc.Login("ada@example.com", "supersecret")
	require.NoError(t, err)
	require.True(t, ok2, "expected Login to succeed with the original password")
}

func TestCreateAccountRejectsShortPassword(t *testing.T) {
	svc := newSingleNodeService(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := svc.CreateAccount(ctx, "Ada", "ada@example.com", "short")
	require.ErrorIs(t, err, statemachine.ErrPasswordTooShort)
}

func TestCreatePostRequiresExistingAuthor(t *testing.T) {
	svc := newSingleNodeService(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := svc.CreatePost(ctx, "title", "content", "ghost@example.com", "2026-01-01T00:00:00Z")
	require.ErrorIs(t, err, statemachine.ErrNotFound)
}

func TestLikePostRejectsDuplicateLike(t *testing.T) {
	svc := newSingleNodeService(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, svc.CreateAccount(ctx, "Ada", "ada@example.com", "supersecret"))
	require.NoError(t, svc.Subscribe(ctx, "bob@example.com"))
	postID, err := svc.CreatePost(ctx, "title", "content", "ada@example.com", "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	require.NoError(t, svc.LikePost(ctx, postID, "bob@example.com"))
	err = svc.LikePost(ctx, postID, "bob@example.com")
	require.ErrorIs(t, err, statemachine.ErrAlreadyLiked)
}

func TestDeletePostRejectsNonAuthor(t *testing.T) {
	svc := newSingleNodeService(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, svc.CreateAccount(ctx, "Ada", "ada@example.com", "supersecret"))
	postID, err := svc.CreatePost(ctx, "title", "content", "ada@example.com", "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	err = svc.DeletePost(ctx, postID, "mallory@example.com")
	require.ErrorIs(t, err, statemachine.ErrNotAuthor)
}
