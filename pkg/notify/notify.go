// Package notify represents the out-of-scope SMTP notification worker
// (§1/§6): the state machine only needs something implementing
// statemachine.NotifySink after a CREATE_POST apply. This package
// supplies a no-op default and a redis-backed job queue adapter; the
// actual SMTP send is a genuinely out-of-scope external collaborator and
// is never implemented here.
package notify

import (
	"log"

	"blograft/pkg/statemachine"
)

// LogSink is the zero-configuration default: it logs instead of
// enqueueing anything, so a node runs without a redis dependency unless
// one is configured.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink returns a sink that logs each new post.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) NotifyNewPost(post statemachine.Post) error {
	s.logger.Printf("notify: new post %s by %s (no notification queue configured)", post.ID, post.Author)
	return nil
}
