package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-lineup/internal/optimizer"
	"github.com/stitts-dev/dfs-lineup/pkg/logger"
)

func sampleView() *optimizer.BatchView {
	return &optimizer.BatchView{
		BatchID:    "batch-1",
		PoolID:     "pool-1",
		Requested:  1,
		Produced:   1,
		StopReason: "completed",
		Solves:     1,
		Lineups: []optimizer.LineupView{{
			Rank:        1,
			TotalPoints: 140.5,
			TotalSalary: 49800,
		}},
	}
}

func TestCacheService_SetAndGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewCacheService(client, 15*time.Minute, logger.Discard())
	ctx := context.Background()
	view := sampleView()
	data, err := json.Marshal(view)
	require.NoError(t, err)

	mock.ExpectSet("optimization:pool-1:abc", data, 15*time.Minute).SetVal("OK")
	require.NoError(t, cache.SetBatch(ctx, "optimization:pool-1:abc", view))

	mock.ExpectGet("optimization:pool-1:abc").SetVal(string(data))
	got, err := cache.GetBatch(ctx, "optimization:pool-1:abc")
	require.NoError(t, err)
	assert.Equal(t, view, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheService_Miss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewCacheService(client, time.Minute, logger.Discard())

	mock.ExpectGet("missing").RedisNil()
	_, err := cache.GetBatch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// misses never trip the breaker
	assert.Equal(t, gobreaker.StateClosed.String(), cache.State())
}

func TestCacheService_BreakerOpensOnFailures(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewCacheService(client, time.Minute, logger.Discard())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mock.ExpectGet("k").SetErr(errors.New("connection refused"))
		_, err := cache.GetBatch(ctx, "k")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCacheMiss)
	}
	assert.Equal(t, gobreaker.StateOpen.String(), cache.State())

	_, err := cache.GetBatch(ctx, "k")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheService_NilIsDisabled(t *testing.T) {
	cache := NewCacheService(nil, time.Minute, logger.Discard())
	assert.Nil(t, cache)

	_, err := cache.GetBatch(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, cache.SetBatch(context.Background(), "k", sampleView()))
	assert.NoError(t, cache.Ping(context.Background()))
	assert.Equal(t, "disabled", cache.State())
}

func TestOptimizationCacheKey(t *testing.T) {
	assert.Equal(t, "optimization:p1:h1", OptimizationCacheKey("p1", "h1"))
}
