// Package queue delivers onboarding notifications to the shard workers and
// alerts to operators. Queues are Redis lists: senders LPUSH, consumers BRPOP,
// so each message is delivered to exactly one consumer in FIFO order.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Receive when no message arrived before the timeout.
var ErrEmpty = errors.New("queue empty")

// Sender sends a message body to a named queue.
type Sender interface {
	Send(ctx context.Context, queue string, body []byte) error
}

// RedisQueue implements Sender on Redis lists.
type RedisQueue struct {
	rdb       *redis.Client
	namespace string
}

var _ Sender = (*RedisQueue)(nil)

// NewRedisQueue creates a queue client on an existing Redis client.
func NewRedisQueue(rdb *redis.Client, namespace string) (*RedisQueue, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	return &RedisQueue{
		rdb:       rdb,
		namespace: namespace,
	}, nil
}

// Key returns the Redis list backing a queue.
// Pattern: onboarding:{namespace}:queue:{name}
func Key(namespace, name string) string {
	return fmt.Sprintf("onboarding:%s:queue:%s", namespace, name)
}

// Send appends a message to the queue.
func (q *RedisQueue) Send(ctx context.Context, queue string, body []byte) error {
	if queue == "" {
		return fmt.Errorf("queue name cannot be empty")
	}

	if err := q.rdb.LPush(ctx, Key(q.namespace, queue), body).Err(); err != nil {
		return fmt.Errorf("failed to send message to queue %q: %w", queue, err)
	}
	return nil
}

// Receive blocks up to timeout for the oldest message on the queue.
// Returns ErrEmpty if nothing arrived in time.
func (q *RedisQueue) Receive(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	result, err := q.rdb.BRPop(ctx, timeout, Key(q.namespace, queue)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to receive from queue %q: %w", queue, err)
	}

	// BRPOP replies [key, value]
	return []byte(result[1]), nil
}

// Len returns the number of messages waiting on a queue.
func (q *RedisQueue) Len(ctx context.Context, queue string) (int64, error) {
	n, err := q.rdb.LLen(ctx, Key(q.namespace, queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read length of queue %q: %w", queue, err)
	}
	return n, nil
}

// SendJSON marshals v and sends it to queue.
func SendJSON(ctx context.Context, s Sender, queue string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for queue %q: %w", queue, err)
	}
	return s.Send(ctx, queue, body)
}
