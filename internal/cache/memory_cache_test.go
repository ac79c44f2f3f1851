package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCache_SetAndGet(t *testing.T) {
	cache := NewInMemoryCache[string](time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "Prague", "Prague is the capital of the Czech Republic."))

	got, err := cache.Get(ctx, "Prague")
	require.NoError(t, err)
	assert.Equal(t, "Prague is the capital of the Czech Republic.", got)
}

func TestInMemoryCache_Miss(t *testing.T) {
	cache := NewInMemoryCache[int](time.Second)

	got, err := cache.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Zero(t, got)
}

func TestInMemoryCache_Expiration(t *testing.T) {
	cache := NewInMemoryCache[string](50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "baz", "qux"))
	time.Sleep(60 * time.Millisecond)

	_, err := cache.Get(ctx, "baz")
	assert.Error(t, err, "expected error for expired item")
}

func TestInMemoryCache_CleanupSweep(t *testing.T) {
	cache := NewInMemoryCache[string](10*time.Millisecond, WithCleanupInterval[string](5*time.Millisecond))
	defer cache.Close()

	require.NoError(t, cache.Set(context.Background(), "k", "v"))
	assert.Eventually(t, func() bool { return cache.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestInMemoryCache_CancelledContext(t *testing.T) {
	cache := NewInMemoryCache[string](time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, cache.Set(ctx, "k", "v"))
	assert.Zero(t, cache.Len(), "nothing is stored under a cancelled context")

	require.NoError(t, cache.Set(context.Background(), "k", "v"))
	_, err := cache.Get(ctx, "k")
	assert.Error(t, err, "a live item is not served under a cancelled context")
}

func TestInMemoryCache_Concurrency(t *testing.T) {
	cache := NewInMemoryCache[string](time.Second)
	ctx := context.Background()
	setErr := make(chan error, 1)
	getErr := make(chan error, 1)

	go func() {
		setErr <- cache.Set(ctx, "concurrent", "val")
	}()
	go func() {
		_, err := cache.Get(ctx, "concurrent")
		getErr <- err
	}()

	assert.NoError(t, <-setErr)
	if err := <-getErr; err != nil && !strings.Contains(err.Error(), "not found") {
		t.Errorf("unexpected Get error: %v", err)
	}
}
