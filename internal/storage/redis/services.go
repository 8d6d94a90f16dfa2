package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ServiceStore keeps x402 services registered at runtime in a set so every
// replica sees the same list.
type ServiceStore struct {
	client *Client
	key    string
}

// NewServiceStore returns a store under the "x402:services" key.
func NewServiceStore(c *Client) *ServiceStore {
	return &ServiceStore{client: c, key: c.key("x402", "services")}
}

// Add records serviceURL.
func (s *ServiceStore) Add(ctx context.Context, serviceURL string) error {
	if err := s.client.rdb.SAdd(ctx, s.key, serviceURL).Err(); err != nil {
		return fmt.Errorf("redis add service: %w", err)
	}
	return nil
}

// List returns the registered services sorted.
func (s *ServiceStore) List(ctx context.Context) ([]string, error) {
	members, err := s.client.rdb.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list services: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

// DiscoveryCache stores discovery listings with a TTL.
type DiscoveryCache struct {
	client *Client
}

// NewDiscoveryCache returns a cache under the "x402:discovery" namespace.
func NewDiscoveryCache(c *Client) *DiscoveryCache {
	return &DiscoveryCache{client: c}
}

// Get returns the cached value, reporting false on a miss.
func (d *DiscoveryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := d.client.rdb.Get(ctx, d.client.key("x402", "discovery", key)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get discovery: %w", err)
	}
	return val, true, nil
}

// Set stores value for ttl. A non positive ttl keeps it until overwritten.
func (d *DiscoveryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := d.client.rdb.Set(ctx, d.client.key("x402", "discovery", key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set discovery: %w", err)
	}
	return nil
}
