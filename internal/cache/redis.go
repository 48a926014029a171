package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache fronts the nearby-discovery results so we don't hammer the Places
// and NREL quotas for every fix a driver posts from the same parking lot.
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

func New(redisAddr string, db int) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   db,
	})

	return &Cache{
		client: client,
		ctx:    context.Background(),
	}
}

// Set stores a key-value pair with an expiration time
func (c *Cache) Set(key string, value string, expiration time.Duration) error {
	return c.client.Set(c.ctx, key, value, expiration).Err()
}

// Get retrieves a value by key. A cache miss returns ("", false, nil).
func (c *Cache) Get(key string) (string, bool, error) {
	value, err := c.client.Get(c.ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return value, true, nil
}

// Delete removes a key from the cache
func (c *Cache) Delete(key string) error {
	return c.client.Del(c.ctx, key).Err()
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// NearbyKey buckets a coordinate onto a ~110m grid so fixes from the same
// block share a cache entry.
func NearbyKey(kind string, lat, lng, radiusM float64) string {
	return fmt.Sprintf("nearby:%s:%.3f:%.3f:%.0f", kind, lat, lng, radiusM)
}
