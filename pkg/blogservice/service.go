// Package blogservice is the thin client-facing layer that sits in front
// of the consensus core: it runs the BadRequest/Conflict/NotFound
// pre-checks (§7) against the state machine's read-only views, then
// turns an accepted request into a log entry via consensus.Node.Submit.
// It is the seam the (out-of-scope) HTTP/REST translation layer is built
// on — pkg/apiserver is one thin caller of it.
package blogservice

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"blograft/pkg/consensus"
	"blograft/pkg/raftlog"
	"blograft/pkg/security"
	"blograft/pkg/statemachine"
)

// Service wires one Node to one state machine.
type Service struct {
	node  *consensus.Node
	store *statemachine.Store
}

// New returns a Service for the given node and store.
func New(node *consensus.Node, store *statemachine.Store) *Service {
	return &Service{node: node, store: store}
}

// Subscribe proposes SUBSCRIBE(email).
func (s *Service) Subscribe(ctx context.Context, email string) error {
	if email == "" {
		return statemachine.ErrBadRequest
	}
	return s.node.Submit(ctx, raftlog.OpSubscribe, []string{email})
}

// CreateAccount validates then proposes CREATE_ACCOUNT(name, email, hash).
// The password is hashed here, before the entry is ever constructed, so
// every node's applier replicates the same bytes (§9 O2).
func (s *Service) CreateAccount(ctx context.Context, name, email, password string) error {
	if err := s.store.ValidateCreateAccount(name, email, password); err != nil {
		return err
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.node.Submit(ctx, raftlog.OpCreateAccount, []string{name, email, hash})
}

// Login checks credentials against the current (locally applied) state.
// It is a pure read and never touches the log.
func (s *Service) Login(email, password string) (bool, error) {
	writer, ok := s.store.GetWriter(email)
	if !ok {
		return false, statemachine.ErrNotFound
	}
	return security.CheckPassword(writer.PasswordHash, password), nil
}

// CreatePost validates then proposes CREATE_POST(post_id, title, content,
// author, iso_ts). The post id is assigned here, before the entry is
// constructed, so that it is identical across the replicated log; the
// timestamp is the caller-supplied isoTimestamp, logged as given.
func (s *Service) CreatePost(ctx context.Context, title, content, author, isoTimestamp string) (string, error) {
	if _, ok := s.store.GetWriter(author); !ok {
		return "", statemachine.ErrNotFound
	}
	postID := uuid.NewString()
	err := s.node.Submit(ctx, raftlog.OpCreatePost, []string{postID, title, content, author, isoTimestamp})
	if err != nil {
		return "", err
	}
	return postID, nil
}

// CommentPost validates then proposes COMMENT_POST(post_id, email, text).
func (s *Service) CommentPost(ctx context.Context, postID, email, text string) error {
	if err := s.store.ValidateCommentPost(postID); err != nil {
		return err
	}
	return s.node.Submit(ctx, raftlog.OpCommentPost, []string{postID, email, text})
}

// LikePost validates (rejecting a duplicate like, S5) then proposes
// LIKE_POST(post_id, email).
func (s *Service) LikePost(ctx context.Context, postID, email string) error {
	if err := s.store.ValidateLikePost(postID, email); err != nil {
		return err
	}
	return s.node.Submit(ctx, raftlog.OpLikePost, []string{postID, email})
}

// UnlikePost validates then proposes UNLIKE_POST(post_id, email).
func (s *Service) UnlikePost(ctx context.Context, postID, email string) error {
	if err := s.store.ValidateUnlikePost(postID, email); err != nil {
		return err
	}
	return s.node.Submit(ctx, raftlog.OpUnlikePost, []string{postID, email})
}

// DeletePost validates the author matches then proposes DELETE_POST.
func (s *Service) DeletePost(ctx context.Context, postID, author string) error {
	if err := s.store.ValidateDeletePost(postID, author); err != nil {
		return err
	}
	return s.node.Submit(ctx, raftlog.OpDeletePost, []string{postID, author})
}

// DeleteAccount proposes DELETE_ACCOUNT(email), cascading to the
// subscriber's authored posts at apply time.
func (s *Service) DeleteAccount(ctx context.Context, email string) error {
	if _, ok := s.store.GetWriter(email); !ok {
		return statemachine.ErrNotFound
	}
	return s.node.Submit(ctx, raftlog.OpDeleteAccount, []string{email})
}

// Node exposes the underlying consensus node for status/leader queries.
func (s *Service) Node() *consensus.Node { return s.node }

// Store exposes the underlying state machine for read-only queries.
func (s *Service) Store() *statemachine.Store { return s.store }
