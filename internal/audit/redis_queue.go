package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisList = "actionkit:audit"

// RedisQueue is a Redis list: LPUSH to publish, BRPOP to consume.
type RedisQueue struct {
	client *redis.Client
	list   string
	wait   time.Duration
}

// RedisQueueConfig names the list and the BRPOP timeout.
type RedisQueueConfig struct {
	List      string        `yaml:"list"`
	BlockWait time.Duration `yaml:"block_wait"`
}

// NewRedisQueue shares client with other packages; Close leaves it open.
func NewRedisQueue(client *redis.Client, cfg RedisQueueConfig) (*RedisQueue, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	list := cfg.List
	if list == "" {
		list = defaultRedisList
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisQueue{client: client, list: list, wait: wait}, nil
}

func (q *RedisQueue) Publish(ctx context.Context, payload []byte) error {
	if err := q.client.LPush(ctx, q.list, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Consume pops payloads until ctx is done or Redis fails. A payload whose
// handler fails is pushed back to the consuming end.
func (q *RedisQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	errCh := make(chan error, workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			for {
				if ctx.Err() != nil {
					errCh <- ctx.Err()
					return
				}
				values, err := q.client.BRPop(ctx, q.wait, q.list).Result()
				if err != nil {
					if errors.Is(err, redis.Nil) {
						continue
					}
					if ctx.Err() != nil {
						errCh <- ctx.Err()
						return
					}
					errCh <- fmt.Errorf("redis consume: %w", err)
					return
				}
				if len(values) != 2 {
					continue
				}
				payload := []byte(values[1])
				if err := handler(ctx, payload); err != nil {
					_ = q.client.RPush(context.WithoutCancel(ctx), q.list, payload).Err()
				}
			}
		}()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Close is a no-op; the shared client is closed by its owner.
func (q *RedisQueue) Close() error {
	return nil
}
