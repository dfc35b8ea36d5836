package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rsilvagit/deptos/internal/model"
)

// Cache provides Redis-backed caching of one source's scrape results, so
// on-demand searches shortly after a run do not hit the sites again.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at the given URL and returns a Cache.
// URL format: redis://localhost:6379/0
func New(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}

	return &Cache{client: client, ttl: ttl}, nil
}

// Get returns the cached listings of src scraped with maxPages pages.
// The bool is false on a miss; err is set only when Redis failed.
func (c *Cache) Get(ctx context.Context, src model.Source, maxPages int) ([]model.Listing, bool, error) {
	data, err := c.client.Get(ctx, Key(src, maxPages)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", src, err)
	}

	var listings []model.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, false, fmt.Errorf("cache: decoding %s: %w", src, err)
	}
	return listings, true, nil
}

// Set stores listings with the configured TTL.
func (c *Cache) Set(ctx context.Context, src model.Source, maxPages int, listings []model.Listing) error {
	data, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("cache: marshal error: %w", err)
	}

	if err := c.client.Set(ctx, Key(src, maxPages), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", src, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Key is the Redis key of one source and page depth.
func Key(src model.Source, maxPages int) string {
	return fmt.Sprintf("deptos:%s:%d", src, maxPages)
}
