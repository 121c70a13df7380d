package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoJob is returned by Pop when the poll window elapsed without a job.
var ErrNoJob = errors.New("no job available")

// Queue is the main work list plus its dead-letter side channel.
type Queue interface {
	// Pop blocks until a payload is available or the poll window elapses.
	Pop(ctx context.Context) ([]byte, error)
	// Enqueue adds a fresh job.
	Enqueue(ctx context.Context, payload []byte) error
	// Requeue pushes a retried job back onto the main list.
	Requeue(ctx context.Context, payload []byte) error
	// DeadLetter pushes an exhausted job onto the dead-letter list.
	DeadLetter(ctx context.Context, payload []byte) error
}

// RedisQueue keeps both lists in Redis. Producers and retries LPUSH onto the
// head; the consumer BRPOPs from the tail.
type RedisQueue struct {
	client     redis.UniversalClient
	main       string
	deadLetter string
	pollEvery  time.Duration
}

func NewRedisQueue(client redis.UniversalClient, main, deadLetter string, pollEvery time.Duration) *RedisQueue {
	if pollEvery <= 0 {
		pollEvery = 5 * time.Second
	}
	return &RedisQueue{client: client, main: main, deadLetter: deadLetter, pollEvery: pollEvery}
}

func (q *RedisQueue) Pop(ctx context.Context) ([]byte, error) {
	res, err := q.client.BRPop(ctx, q.pollEvery, q.main).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("brpop %s: %w", q.main, err)
	}
	// res is [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("brpop %s: unexpected reply of %d elements", q.main, len(res))
	}
	return []byte(res[1]), nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte) error {
	return q.push(ctx, q.main, payload)
}

func (q *RedisQueue) Requeue(ctx context.Context, payload []byte) error {
	return q.push(ctx, q.main, payload)
}

func (q *RedisQueue) DeadLetter(ctx context.Context, payload []byte) error {
	return q.push(ctx, q.deadLetter, payload)
}

func (q *RedisQueue) push(ctx context.Context, key string, payload []byte) error {
	if err := q.client.LPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", key, err)
	}
	return nil
}

// Connect parses a redis:// URL and applies connection-level timeouts.
func Connect(ctx context.Context, url string, dialTimeout, ioTimeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if dialTimeout > 0 {
		opts.DialTimeout = dialTimeout
	}
	if ioTimeout > 0 {
		opts.ReadTimeout = ioTimeout
		opts.WriteTimeout = ioTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
