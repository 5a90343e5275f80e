package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const dashboardVersionKey = "dashboard:version"

// DashboardCache is a versioned Redis read-through cache; a nil client disables caching
type DashboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDashboardCache creates the cache helper
func NewDashboardCache(client *redis.Client, ttl time.Duration) *DashboardCache {
	return &DashboardCache{client: client, ttl: ttl}
}

// Version returns the current cache generation, starting at 1
func (c *DashboardCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, dashboardVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, dashboardVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey joins parts and appends the current version
func (c *DashboardCache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"dashboard"}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchJSON decodes a cached value into dest or fills it from loader
func (c *DashboardCache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
	}

	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached summary
func (c *DashboardCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, dashboardVersionKey).Err()
}

var dashboardCacheInstance *DashboardCache

// InitDashboardCache sets up the shared cache; a nil client disables caching
func InitDashboardCache(client *redis.Client, ttl time.Duration) *DashboardCache {
	dashboardCacheInstance = NewDashboardCache(client, ttl)
	return dashboardCacheInstance
}

// GetDashboardCache returns the shared cache
func GetDashboardCache() *DashboardCache {
	return dashboardCacheInstance
}

// SetDashboardCache replaces the shared cache (primarily for testing)
func SetDashboardCache(cache *DashboardCache) {
	dashboardCacheInstance = cache
}

// InvalidateDashboard bumps the shared cache after a write that changes summaries
func InvalidateDashboard(ctx context.Context) {
	if err := dashboardCacheInstance.Bump(ctx); err != nil {
		log.Printf("warning: failed to invalidate dashboard cache: %v", err)
	}
}
