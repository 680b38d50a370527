// Package cache adds a Redis read-aside layer in front of the device
// registry.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
	"github.com/tinywideclouds/go-push-dispatch/pkg/notification"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or a specific error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedRegistry is a Decorator that adds read-aside caching to any
// DeviceRegistry. The registry is read-only from this service, so there is
// no invalidate-on-write path; staleness is bounded by the TTL alone.
// Registration flows elsewhere must tolerate that window or keep it short.
type CachedRegistry struct {
	realRegistry dispatch.DeviceRegistry
	cache        CacheClient
	ttl          time.Duration
}

// NewCachedRegistry creates the decorator.
func NewCachedRegistry(realRegistry dispatch.DeviceRegistry, cache CacheClient, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{
		realRegistry: realRegistry,
		cache:        cache,
		ttl:          ttl,
	}
}

// Resolve serves each user from cache where possible and batches all misses
// into one bulk lookup against the real registry, so the single-round-trip
// bound holds for any hit/miss mix.
func (r *CachedRegistry) Resolve(ctx context.Context, userIDs []string) (map[string][]notification.DeviceEndpoint, error) {
	result := make(map[string][]notification.DeviceEndpoint, len(userIDs))

	var misses []string
	for _, id := range userIDs {
		var endpoints []notification.DeviceEndpoint
		if err := r.cache.Get(ctx, r.cacheKey(id), &endpoints); err != nil {
			misses = append(misses, id)
			continue
		}
		if len(endpoints) > 0 {
			result[id] = endpoints
		}
	}

	if len(misses) == 0 {
		return result, nil
	}

	fresh, err := r.realRegistry.Resolve(ctx, misses)
	if err != nil {
		return nil, err
	}

	for _, id := range misses {
		endpoints := fresh[id]
		if len(endpoints) > 0 {
			result[id] = endpoints
		}
		// Populate cache (fire and forget). Caching is an optimization,
		// not a transaction: if Redis is down we just serve from the
		// registry. Userless entries are cached too, as empty lists, so a
		// user with no devices doesn't force a lookup every time.
		_ = r.cache.Set(ctx, r.cacheKey(id), endpoints, r.ttl)
	}

	return result, nil
}

func (r *CachedRegistry) cacheKey(userID string) string {
	return fmt.Sprintf("dispatch:endpoints:%s", userID)
}
