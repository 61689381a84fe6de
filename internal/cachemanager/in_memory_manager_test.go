package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type pathKey string

func TestNewInMemoryCacheManager(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)
	})
}

type hops struct {
	Names []string
}

func TestInMemoryCacheManager_GetExistingValue_StructType(t *testing.T) {
	cache := NewInMemoryCacheManager[pathKey, hops]("paths", DefaultExpiration, DefaultCleanupInterval)
	want := hops{Names: []string{"disk->ram", "ram->gpu"}}
	cache.Set(context.Background(), "volume|disk|gpu", want, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "volume|disk|gpu")
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestInMemoryCacheManager_GetWithNoExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("paths", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "missing")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_GetWithExistingInvalidValueType(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("paths", DefaultExpiration, DefaultCleanupInterval)

	cache.cache.Set("key", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "key")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_ZeroTTLUsesDefault(t *testing.T) {
	cache := NewInMemoryCacheManager[string, int]("paths", time.Hour, DefaultCleanupInterval)
	cache.Set(context.Background(), "k", 1, 0)

	got, ok := cache.Get(context.Background(), "k")
	require.True(t, ok)
	require.Equal(t, 1, got)
}

func TestInMemoryCacheManager_Expires(t *testing.T) {
	cache := NewInMemoryCacheManager[string, int]("paths", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "k", 1, time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := cache.Get(context.Background(), "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestInMemoryCacheManager_Delete(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("paths", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "a", "1", DefaultExpiration)
	cache.Set(context.Background(), "b", "2", DefaultExpiration)

	require.NoError(t, cache.Delete(context.Background()))
	require.Equal(t, 2, cache.Len())

	require.NoError(t, cache.Delete(context.Background(), "a"))
	_, ok := cache.Get(context.Background(), "a")
	require.False(t, ok)
	require.Equal(t, 1, cache.Len())
}

func TestInMemoryCacheManager_Flush(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("paths", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "a", "1", DefaultExpiration)
	cache.Set(context.Background(), "b", "2", DefaultExpiration)

	require.NoError(t, cache.Flush(context.Background()))
	require.Equal(t, 0, cache.Len())
}
