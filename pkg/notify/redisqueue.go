package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"blograft/pkg/statemachine"
)

// job is the payload enqueued for the (out-of-scope) SMTP worker to pick
// up and deliver; the worker itself lives outside this module.
type job struct {
	ID        string `json:"id"`
	PostID    string `json:"post_id"`
	Author    string `json:"author"`
	Title     string `json:"title"`
	EnqueuedAt int64  `json:"enqueued_at"`
}

// RedisQueueSink enqueues a notification job onto a redis sorted set,
// the same delayed-queue shape as a webhook retry queue: score is the
// ready-at unix time, ZRangeByScore with max=now is how a worker would
// claim due jobs. Grounded in the retrieved pack's webhook-delivery-
// system internal/queue/queue.go.
type RedisQueueSink struct {
	client *redis.Client
	key    string
}

// NewRedisQueueSink connects to redisURL (e.g. "redis://localhost:6379/0")
// and returns a sink that enqueues onto queueKey.
func NewRedisQueueSink(ctx context.Context, redisURL, queueKey string) (*RedisQueueSink, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("notify: parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("notify: ping redis: %w", err)
	}
	if queueKey == "" {
		queueKey = "blograft:notify:new-posts"
	}
	return &RedisQueueSink{client: client, key: queueKey}, nil
}

func (s *RedisQueueSink) NotifyNewPost(post statemachine.Post) error {
	j := job{
		ID:         uuid.NewString(),
		PostID:     post.ID,
		Author:     post.Author,
		Title:      post.Title,
		EnqueuedAt: time.Now().Unix(),
	}
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("notify: marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(j.EnqueuedAt),
		Member: data,
	}).Err()
}

// Close releases the underlying redis connection pool.
func (s *RedisQueueSink) Close() error {
	return s.client.Close()
}
