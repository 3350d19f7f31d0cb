package repository

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
)

func TestCacheRepositoryGetMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client, nil)

	mock.ExpectGet(CacheKeyPrefix + "items:list").RedisNil()

	var dest []string
	err := repo.Get(context.Background(), "items:list", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositorySetAndGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client, nil)

	mock.ExpectSet(CacheKeyPrefix+"items:list", []byte(`["A1","B2"]`), time.Minute).SetVal("OK")
	mock.ExpectGet(CacheKeyPrefix + "items:list").SetVal(`["A1","B2"]`)

	require.NoError(t, repo.Set(context.Background(), "items:list", []string{"A1", "B2"}, time.Minute))

	var dest []string
	require.NoError(t, repo.Get(context.Background(), "items:list", &dest))
	assert.Equal(t, []string{"A1", "B2"}, dest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client, nil)

	first := []string{CacheKeyPrefix + "items:a", CacheKeyPrefix + "items:b"}
	mock.ExpectScan(0, CacheKeyPrefix+"items:*", scanBatch).SetVal(first, 7)
	mock.ExpectDel(first...).SetVal(2)
	mock.ExpectScan(7, CacheKeyPrefix+"items:*", scanBatch).SetVal([]string{}, 0)

	require.NoError(t, repo.DeleteByPattern(context.Background(), "items:*"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest map[string]string
	assert.ErrorIs(t, repo.Get(context.Background(), "x", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "x", "y", time.Second))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
}
