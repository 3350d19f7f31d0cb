package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-inventory-api/internal/repository"
)

func TestCachedReadFillsOnMissAndServesHit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	metrics := NewMetricsService()
	cache := NewCacheService(repository.NewCacheRepository(client, nil), metrics, time.Minute, nil, true)
	key := repository.CacheKeyPrefix + "organizations:merged"

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, []byte(`["Chess Club"]`), time.Minute).SetVal("OK")
	mock.ExpectGet(key).SetVal(`["Chess Club"]`)

	loads := 0
	load := func() ([]string, error) {
		loads++
		return []string{"Chess Club"}, nil
	}

	first, err := cachedRead(context.Background(), cache, "organizations:merged", load)
	require.NoError(t, err)
	second, err := cachedRead(context.Background(), cache, "organizations:merged", load)
	require.NoError(t, err)

	assert.Equal(t, []string{"Chess Club"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, loads)
	require.NoError(t, mock.ExpectationsWereMet())

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.0001)
}

func TestCachedReadDisabledAlwaysLoads(t *testing.T) {
	cache := NewCacheService(nil, nil, 0, nil, true)
	assert.False(t, cache.Enabled())

	loads := 0
	for i := 0; i < 2; i++ {
		_, err := cachedRead(context.Background(), cache, "items:list", func() (int, error) {
			loads++
			return loads, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, loads)

	_, err := cachedRead(context.Background(), cache, "items:list", func() (int, error) {
		return 0, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}

func TestCacheInvalidateSurfacesRedisErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewCacheService(repository.NewCacheRepository(client, nil), nil, time.Minute, nil, true)

	mock.ExpectScan(0, repository.CacheKeyPrefix+"items:*", 100).SetErr(errors.New("redis down"))

	err := cache.Invalidate(context.Background(), "items:*")
	assert.Error(t, err)
}
