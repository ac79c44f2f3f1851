// Package cache holds short-lived lookups so repeated questions about the same
// place do not hit the remote services again.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// InMemoryCache is a thread-safe TTL cache.
type InMemoryCache[V any] struct {
	store map[string]cacheItem[V]
	mutex sync.RWMutex
	ttl   time.Duration

	logger *slog.Logger
	stop   chan struct{}
	once   sync.Once
}

type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

// Option configures an InMemoryCache.
type Option[V any] func(*InMemoryCache[V])

// WithLogger sets the logger used for cache tracing.
func WithLogger[V any](logger *slog.Logger) Option[V] {
	return func(c *InMemoryCache[V]) {
		c.logger = logger
	}
}

// WithCleanupInterval starts a background sweep of expired items. Call Close to stop it.
func WithCleanupInterval[V any](interval time.Duration) Option[V] {
	return func(c *InMemoryCache[V]) {
		if interval > 0 {
			go c.cleanupLoop(interval)
		}
	}
}

// NewInMemoryCache creates a cache whose items live for ttl.
func NewInMemoryCache[V any](ttl time.Duration, options ...Option[V]) *InMemoryCache[V] {
	c := &InMemoryCache[V]{
		store:  make(map[string]cacheItem[V]),
		ttl:    ttl,
		logger: slog.Default(),
		stop:   make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Get retrieves an item from the cache.
func (c *InMemoryCache[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, errbuilder.WrapIfContextDone(ctx, err)
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, found := c.store[key]
	if !found {
		return zero, errbuilder.NotFoundErr(errbuilder.GenericErr("cache item not found", nil))
	}
	if time.Now().After(item.expiration) {
		c.logger.Debug("cache item expired", "key", key)
		return zero, errbuilder.NotFoundErr(errbuilder.GenericErr("cache item expired", nil))
	}
	return item.value, nil
}

// Set adds or updates an item in the cache.
func (c *InMemoryCache[V]) Set(ctx context.Context, key string, value V) error {
	if err := ctx.Err(); err != nil {
		return errbuilder.WrapIfContextDone(ctx, err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.store[key] = cacheItem[V]{value: value, expiration: time.Now().Add(c.ttl)}
	c.logger.Debug("cache item set", "key", key)
	return nil
}

// Len returns the number of stored items, expired ones included.
func (c *InMemoryCache[V]) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.store)
}

// Close stops the cleanup sweep, if one was started.
func (c *InMemoryCache[V]) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *InMemoryCache[V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *InMemoryCache[V]) sweep() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := time.Now()
	for key, item := range c.store {
		if now.After(item.expiration) {
			delete(c.store, key)
		}
	}
}
