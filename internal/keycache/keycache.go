// Package keycache is a small TTL cache for key material fetched during one
// batch of resolutions. Nothing here is global: each batch creates its own.
package keycache

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Clock returns the current time; tests inject a fake one
type Clock func() time.Time

// Cache stores strings for at most ttl
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
	now     Clock

	// flights deduplicates concurrent loads of the same key
	flights singleflight.Group
}

type entry struct {
	value     string
	timestamp time.Time
}

// Option customises a Cache
type Option func(*Cache)

// WithClock replaces time.Now
func WithClock(now Clock) Option {
	return func(c *Cache) { c.now = now }
}

// WithMaxSize bounds the number of entries; the oldest entry is evicted first
func WithMaxSize(n int) Option {
	return func(c *Cache) { c.maxSize = n }
}

// New creates a cache whose entries expire after ttl
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		ttl:     ttl,
		maxSize: 64,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a live entry. Expired entries are dropped on access.
func (c *Cache) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(e.timestamp) >= c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

// Set stores value under key
func (c *Cache) Set(key, value string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLocked(now)
	}
	c.entries[key] = &entry{value: value, timestamp: now}
}

// evictLocked drops expired entries, or the oldest one when none have expired
func (c *Cache) evictLocked(now time.Time) {
	var oldestKey string
	var oldestTime time.Time
	first := true
	removed := false
	for k, e := range c.entries {
		if now.Sub(e.timestamp) >= c.ttl {
			delete(c.entries, k)
			removed = true
			continue
		}
		if first || e.timestamp.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.timestamp
			first = false
		}
	}
	if !removed && !first {
		delete(c.entries, oldestKey)
	}
}

// Len reports how many entries are stored, expired or not
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetOrLoad returns the cached value for key or calls load and caches its
// result. Concurrent callers asking for the same key share a single load.
// Errors are not cached.
func (c *Cache) GetOrLoad(ctx context.Context, key string, load func(context.Context) (string, error)) (string, error) {
	if c == nil {
		return load(ctx)
	}

	for attempt := 0; ; attempt++ {
		if v, ok := c.Get(key); ok {
			return v, nil
		}

		ch := c.flights.DoChan(key, func() (interface{}, error) {
			if v, ok := c.Get(key); ok {
				return v, nil
			}
			v, err := load(ctx)
			if err != nil {
				return "", err
			}
			c.Set(key, v)
			return v, nil
		})

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(string), nil
			}
			// the shared load ran under another caller's context; retry once under ours
			if attempt == 0 && res.Shared && ctx.Err() == nil && isContextError(res.Err) {
				continue
			}
			return "", res.Err
		}
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
