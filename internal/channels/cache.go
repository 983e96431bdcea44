// Package channels serves channel-profile reads through a short-lived cache.
// Profiles are read far more often than subscriber counts change, and a few
// seconds of staleness is acceptable there.
package channels

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vidtube/backend/internal/models"
)

// ProfileReader resolves aggregated channel profiles.
type ProfileReader interface {
	ChannelProfile(ctx context.Context, handle, viewerID string) (models.ChannelProfile, error)
}

type cacheEntry struct {
	profile models.ChannelProfile
	expires time.Time
}

// CachingReader wraps a ProfileReader with a TTL-based in-memory cache keyed
// by handle and viewer (isSubscribed differs per viewer).
type CachingReader struct {
	base ProfileReader
	ttl  time.Duration

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingReader returns a ProfileReader that caches lookups for the provided TTL.
func NewCachingReader(base ProfileReader, ttl time.Duration) *CachingReader {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachingReader{
		base:  base,
		ttl:   ttl,
		items: make(map[string]cacheEntry),
	}
}

// ChannelProfile returns a cached profile when fresh, otherwise it delegates
// to the underlying reader and stores the result.
func (c *CachingReader) ChannelProfile(ctx context.Context, handle, viewerID string) (models.ChannelProfile, error) {
	key := cacheKey(handle, viewerID)
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.profile, nil
	}

	profile, err := c.base.ChannelProfile(ctx, handle, viewerID)
	if err != nil {
		return models.ChannelProfile{}, err
	}

	c.mu.Lock()
	c.items[key] = cacheEntry{profile: profile, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return profile, nil
}

// Invalidate drops every cached view of the handle's profile. Called after a
// subscription toggle so the subscriber count does not lag a full TTL.
func (c *CachingReader) Invalidate(handle string) {
	prefix := handle + "\x00"

	c.mu.Lock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
	c.mu.Unlock()
}

func cacheKey(handle, viewerID string) string {
	return handle + "\x00" + viewerID
}
