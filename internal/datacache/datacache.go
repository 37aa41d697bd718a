package datacache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	errx "github.com/Wex47/Orbi/internal/core/error"
	"github.com/Wex47/Orbi/internal/metrics"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

// FetchFunc loads a fresh value for key from the upstream source.
type FetchFunc[T any] func(ctx context.Context, key string) (T, error)

type entry[T any] struct {
	value       T
	refreshedAt time.Time
}

type options struct {
	backend Backend
	now     func() time.Time
}

type Option func(*options)

// WithBackend persists entries so a stale copy survives restarts.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Cache keeps the last good value of a slow-changing dataset per key.
// A value is fresh while now-refreshedAt < ttl. Refresh failures fall back to
// the retained value; with nothing retained the failure is returned.
type Cache[T any] struct {
	name  string
	ttl   time.Duration
	fetch FetchFunc[T]
	opts  options

	mu      sync.RWMutex
	entries map[string]entry[T]
	group   singleflight.Group
}

func New[T any](name string, ttl time.Duration, fetch FetchFunc[T], opts ...Option) *Cache[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{
		name:    name,
		ttl:     ttl,
		fetch:   fetch,
		opts:    o,
		entries: make(map[string]entry[T]),
	}
}

// Name is the cache label used in logs and metrics.
func (c *Cache[T]) Name() string { return c.name }

// Get returns the value for key, refreshing it when it is not fresh.
// Concurrent callers for the same key share one refresh.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, error) {
	if e, ok := c.lookup(ctx, key); ok && c.fresh(e) {
		metrics.DataCacheEvents.WithLabelValues(c.name, metrics.EventHit).Inc()
		return e.value, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// another caller may have refreshed while we waited
		if e, ok := c.lookup(ctx, key); ok && c.fresh(e) {
			return e.value, nil
		}
		return c.refresh(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (c *Cache[T]) refresh(ctx context.Context, key string) (T, error) {
	value, err := c.fetch(ctx, key)
	if err == nil {
		e := entry[T]{value: value, refreshedAt: c.opts.now()}
		c.mu.Lock()
		c.entries[key] = e
		c.mu.Unlock()
		c.persist(ctx, key, e)
		metrics.DataCacheEvents.WithLabelValues(c.name, metrics.EventRefresh).Inc()
		return value, nil
	}

	metrics.DataCacheEvents.WithLabelValues(c.name, metrics.EventFailure).Inc()
	if e, ok := c.lookup(ctx, key); ok {
		metrics.DataCacheEvents.WithLabelValues(c.name, metrics.EventStale).Inc()
		logx.Warn().Err(err).Str("cache", c.name).Str("key", key).
			Time("refreshed_at", e.refreshedAt).Msg("refresh failed, serving stale data")
		return e.value, nil
	}

	logx.Error().Err(err).Str("cache", c.name).Str("key", key).Msg("refresh failed and nothing is cached")
	var zero T
	return zero, fmt.Errorf("%s %q: %w: %w", c.name, key, errx.ErrNoCachedData, err)
}

func (c *Cache[T]) fresh(e entry[T]) bool {
	return c.opts.now().Sub(e.refreshedAt) < c.ttl
}

// lookup reads memory first, then the backend. A backend hit is promoted to memory.
func (c *Cache[T]) lookup(ctx context.Context, key string) (entry[T], bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok || c.opts.backend == nil {
		return e, ok
	}

	rec, found, err := c.opts.backend.Get(ctx, c.name, key)
	if err != nil {
		logx.Warn().Err(err).Str("cache", c.name).Str("key", key).Msg("datacache backend read failed")
		return e, false
	}
	if !found {
		return e, false
	}
	var value T
	if err := json.Unmarshal(rec.Data, &value); err != nil {
		logx.Warn().Err(err).Str("cache", c.name).Str("key", key).Msg("datacache backend record is corrupt")
		return e, false
	}

	e = entry[T]{value: value, refreshedAt: rec.RefreshedAt}
	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && cur.refreshedAt.After(e.refreshedAt) {
		e = cur
	} else {
		c.entries[key] = e
	}
	c.mu.Unlock()
	return e, true
}

func (c *Cache[T]) persist(ctx context.Context, key string, e entry[T]) {
	if c.opts.backend == nil {
		return
	}
	data, err := json.Marshal(e.value)
	if err != nil {
		logx.Warn().Err(err).Str("cache", c.name).Msg("datacache value is not serialisable")
		return
	}
	if err := c.opts.backend.Put(ctx, c.name, key, Record{Data: data, RefreshedAt: e.refreshedAt}); err != nil {
		logx.Warn().Err(err).Str("cache", c.name).Str("key", key).Msg("datacache backend write failed")
	}
}
