package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supermen-api/internal/repository"
)

type failingCacheRepo struct{}

func (failingCacheRepo) Get(context.Context, string, interface{}) error { return errors.New("redis down") }
func (failingCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("redis down")
}
func (failingCacheRepo) DeleteByPattern(context.Context, string) error { return errors.New("redis down") }

func TestCacheServiceLookupAndPurge(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "sel:verifier-1", []string{"c-1"}, time.Hour))

	cache := NewCacheService(store, "dash", time.Minute, NewMetricsService(), nil)

	var out map[string]int
	assert.False(t, cache.Lookup(ctx, "administrator:all", &out))

	cache.Store(ctx, "administrator:all", map[string]int{"pending": 3})
	require.True(t, cache.Lookup(ctx, "administrator:all", &out))
	assert.Equal(t, 3, out["pending"])

	require.NoError(t, cache.Purge(ctx))
	assert.False(t, cache.Lookup(ctx, "administrator:all", &out))

	var selection []string
	require.NoError(t, store.Get(ctx, "sel:verifier-1", &selection), "purge must stay inside its namespace")
}

func TestCacheServiceBackendFailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(failingCacheRepo{}, "dash", 0, nil, nil)

	var out map[string]int
	assert.False(t, cache.Lookup(ctx, "k", &out))
	cache.Store(ctx, "k", map[string]int{"a": 1})
	assert.Error(t, cache.Purge(ctx))
}

func TestNilCacheServiceIsInert(t *testing.T) {
	var cache *CacheService
	var out map[string]int
	assert.False(t, cache.Lookup(context.Background(), "k", &out))
	cache.Store(context.Background(), "k", out)
	assert.NoError(t, cache.Purge(context.Background()))
}
