package content

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RecentCache is an optional Redis-backed fast path for exact-duplicate
// checks: identities seen within the TTL window are skipped before the
// pipeline runs at all. Useful when several instances share one Redis.
type RecentCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRecentCache(addr, password string, db int, ttl time.Duration) (*RecentCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RecentCache{
		client: client,
		ttl:    ttl,
		prefix: "content:seen:",
	}, nil
}

// Seen reports whether the identity was added within the TTL window.
func (c *RecentCache) Seen(ctx context.Context, identity string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+identity).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check recent identity: %w", err)
	}
	return n > 0, nil
}

// Add marks the identity as recently seen.
func (c *RecentCache) Add(ctx context.Context, identity string) error {
	if err := c.client.Set(ctx, c.prefix+identity, 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record recent identity: %w", err)
	}
	return nil
}

func (c *RecentCache) Close() error {
	return c.client.Close()
}
