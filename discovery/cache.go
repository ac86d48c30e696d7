package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DescriptorCache stores fetched agent descriptors keyed by URL so
// repeated discovery runs avoid refetching unchanged documents.
type DescriptorCache interface {
	// Get returns the cached descriptor, or (nil, nil) on a miss.
	Get(ctx context.Context, url string) (*AgentDescriptor, error)
	// Put stores a descriptor.
	Put(ctx context.Context, url string, desc *AgentDescriptor) error
}

const descriptorKeyPrefix = "conductor:descriptor:"

// RedisCache is a DescriptorCache backed by redis with per-entry TTL.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache wraps an existing redis client. A non-positive ttl
// defaults to 5 minutes.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

var _ DescriptorCache = (*RedisCache)(nil)

func (c *RedisCache) Get(ctx context.Context, url string) (*AgentDescriptor, error) {
	raw, err := c.client.Get(ctx, descriptorKeyPrefix+url).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("descriptor cache get: %w", err)
	}
	var desc AgentDescriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("descriptor cache decode: %w", err)
	}
	return &desc, nil
}

func (c *RedisCache) Put(ctx context.Context, url string, desc *AgentDescriptor) error {
	raw, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("descriptor cache encode: %w", err)
	}
	if err := c.client.Set(ctx, descriptorKeyPrefix+url, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("descriptor cache set: %w", err)
	}
	return nil
}
