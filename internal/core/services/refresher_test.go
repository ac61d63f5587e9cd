package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-labs/newsvault/internal/adapters/driven/objectstore/memory"
	"github.com/veridian-labs/newsvault/internal/core/domain"
	"github.com/veridian-labs/newsvault/internal/core/ports/driving"
	"github.com/veridian-labs/newsvault/internal/core/services"
)

func testRefreshConfig() services.RefreshConfig {
	return services.RefreshConfig{
		Interval:      time.Hour,
		RetryAttempts: 2,
		BackoffBase:   time.Millisecond,
		CycleTimeout:  5 * time.Second,
		Concurrency:   2,
	}
}

func newTestRefresher(active *fakeStore, store *memory.Store, cfg services.RefreshConfig) (*services.Refresher, *services.QueryCache, *services.StateTracker) {
	state := services.NewStateTracker()
	cache := services.NewQueryCache(active, state)
	return services.NewRefresher(store, "news", cache, state, cfg), cache, state
}

func TestRefreshMergesNewPartition(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	exporter := services.NewExporter(store, "news")
	require.NoError(t, exporter.Export(ctx, testArticles(t, "2024-05-01", 10), "2024-05-01", "shard-1"))

	refresher, cache, _ := newTestRefresher(newFakeStore(), store, testRefreshConfig())
	defer cache.Close()

	require.NoError(t, refresher.RunOnce(ctx))

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.RowCount)
	assert.Equal(t, int64(1), stats.PartitionCount)
	assert.False(t, stats.LastRefreshAt.IsZero())

	result := refresher.LastResult()
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"2024-05-01"}, result.Merged)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, int64(10), result.RowCount)
}

func TestRefreshNoNewPartitionsIsNoop(t *testing.T) {
	ctx := context.Background()
	active := newFakeStore(testArticles(t, "2024-05-01", 2)...)
	refresher, cache, _ := newTestRefresher(active, memory.NewStore(), testRefreshConfig())
	defer cache.Close()

	require.NoError(t, refresher.RunOnce(ctx))

	result := refresher.LastResult()
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Empty(t, result.Merged)
	assert.False(t, active.isClosed(), "active replica must not be touched")
}

func TestRefreshOnlyPullsUnmergedPartitions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	exporter := services.NewExporter(store, "news")
	require.NoError(t, exporter.Export(ctx, testArticles(t, "2024-05-01", 3), "2024-05-01", "shard-1"))

	refresher, cache, _ := newTestRefresher(newFakeStore(), store, testRefreshConfig())
	defer cache.Close()

	require.NoError(t, refresher.RunOnce(ctx))
	require.NoError(t, exporter.Export(ctx, testArticles(t, "2024-05-02", 4), "2024-05-02", "shard-1"))
	require.NoError(t, refresher.RunOnce(ctx))

	result := refresher.LastResult()
	require.NotNil(t, result)
	assert.Equal(t, []string{"2024-05-02"}, result.Merged, "merged partitions are not re-pulled")

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.RowCount)
	assert.Equal(t, int64(2), stats.PartitionCount)
}

func TestRefreshSkipsFailingPartition(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	exporter := services.NewExporter(store, "news")
	require.NoError(t, exporter.Export(ctx, testArticles(t, "2024-05-01", 3), "2024-05-01", "shard-1"))
	require.NoError(t, exporter.Export(ctx, testArticles(t, "2024-05-02", 4), "2024-05-02", "shard-1"))

	store.SetFailFunc(func(op, key string) error {
		if op == "get" && strings.Contains(key, "2024-05-02") {
			return errors.New("connection reset")
		}
		return nil
	})

	refresher, cache, _ := newTestRefresher(newFakeStore(), store, testRefreshConfig())
	defer cache.Close()

	// A partition exhausting its retries is skipped; the cycle still
	// promotes what it pulled.
	require.NoError(t, refresher.RunOnce(ctx))

	result := refresher.LastResult()
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"2024-05-01"}, result.Merged)
	assert.Equal(t, []string{"2024-05-02"}, result.Skipped)

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.RowCount)

	// Next cycle the partition recovers and merges.
	store.SetFailFunc(nil)
	require.NoError(t, refresher.RunOnce(ctx))

	result = refresher.LastResult()
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"2024-05-02"}, result.Merged)

	stats, err = cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.RowCount)
}

func TestRefreshAllPartitionsFailing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	exporter := services.NewExporter(store, "news")
	require.NoError(t, exporter.Export(ctx, testArticles(t, "2024-05-01", 3), "2024-05-01", "shard-1"))

	store.SetFailFunc(func(op, key string) error {
		if op == "get" && strings.HasSuffix(key, ".parquet") {
			return errors.New("connection reset")
		}
		return nil
	})

	active := newFakeStore(testArticles(t, "2024-04-30", 2)...)
	refresher, cache, _ := newTestRefresher(active, store, testRefreshConfig())
	defer cache.Close()

	require.Error(t, refresher.RunOnce(ctx))

	// The active replica keeps serving untouched.
	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.RowCount)
}

func TestRefreshValidationDiscardsStandby(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	exporter := services.NewExporter(store, "news")
	require.NoError(t, exporter.Export(ctx, testArticles(t, "2024-05-01", 3), "2024-05-01", "shard-1"))

	cfg := testRefreshConfig()
	cfg.RowFloor = 100

	active := newFakeStore(testArticles(t, "2024-04-30", 5)...)
	refresher, cache, _ := newTestRefresher(active, store, cfg)
	defer cache.Close()

	err := refresher.RunOnce(ctx)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	// The failed standby is discarded and the active replica untouched.
	standby := active.clone()
	require.NotNil(t, standby)
	assert.True(t, standby.isClosed())
	assert.False(t, active.isClosed())

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.RowCount)
	assert.True(t, stats.LastRefreshAt.IsZero(), "failed cycle must not advance the refresh time")
}

func TestRefreshLaterPartitionWinsOnDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	exporter := services.NewExporter(store, "news")

	first := testArticles(t, "2024-05-01", 1)
	first[0].ID = "dup"
	first[0].Title = "Old Title"
	second := testArticles(t, "2024-05-02", 1)
	second[0].ID = "dup"
	second[0].Title = "New Title"

	// Export out of key order; merge order is ascending regardless.
	require.NoError(t, exporter.Export(ctx, second, "2024-05-02", "shard-1"))
	require.NoError(t, exporter.Export(ctx, first, "2024-05-01", "shard-1"))

	refresher, cache, _ := newTestRefresher(newFakeStore(), store, testRefreshConfig())
	defer cache.Close()

	require.NoError(t, refresher.RunOnce(ctx))

	got, err := cache.Lookup(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "New Title", got.Title)

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.RowCount)
}

func TestCycleTimeoutAbortsAndRecovers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	exporter := services.NewExporter(store, "news")
	require.NoError(t, exporter.Export(ctx, testArticles(t, "2024-05-01", 3), "2024-05-01", "shard-1"))

	cfg := testRefreshConfig()
	cfg.CycleTimeout = 50 * time.Millisecond

	// Partition listing outlives the cycle deadline.
	store.SetFailFunc(func(op, _ string) error {
		if op == "list" {
			time.Sleep(120 * time.Millisecond)
		}
		return nil
	})

	active := newFakeStore(testArticles(t, "2024-04-30", 2)...)
	refresher, cache, _ := newTestRefresher(active, store, cfg)
	defer cache.Close()

	require.Error(t, refresher.RunOnce(ctx))

	result := refresher.LastResult()
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Empty(t, result.Merged)

	// The active replica keeps serving untouched; no standby was
	// promoted.
	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.RowCount)
	assert.True(t, stats.LastRefreshAt.IsZero())
	assert.False(t, active.isClosed())
	assert.Nil(t, active.clone())

	// The next cycle proceeds once the store responds in time.
	store.SetFailFunc(nil)
	require.NoError(t, refresher.RunOnce(ctx))

	stats, err = cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.RowCount)
	assert.False(t, stats.LastRefreshAt.IsZero())
}

func TestTriggerCoalescesDuringCycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	var once sync.Once
	started := make(chan struct{})
	gate := make(chan struct{})
	store.SetFailFunc(func(op, key string) error {
		if op == "get" && strings.HasSuffix(key, "_manifest.json") {
			once.Do(func() { close(started) })
			<-gate
		}
		return nil
	})

	refresher, cache, _ := newTestRefresher(newFakeStore(), store, testRefreshConfig())
	defer cache.Close()

	done := make(chan error, 1)
	go func() { done <- refresher.RunOnce(ctx) }()

	<-started
	assert.Equal(t, driving.TriggerInProgress, refresher.Trigger(ctx),
		"a trigger during a running cycle coalesces")

	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, driving.TriggerAccepted, refresher.Trigger(ctx))
}
