package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-labs/newsvault/internal/core/domain"
	"github.com/veridian-labs/newsvault/internal/core/services"
)

func TestQueryCacheServesActiveReplica(t *testing.T) {
	ctx := context.Background()
	articles := testArticles(t, "2024-05-01", 3)
	cache := services.NewQueryCache(newFakeStore(articles...), services.NewStateTracker())
	defer cache.Close()

	got, err := cache.Lookup(ctx, articles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, articles[0], *got)

	_, err = cache.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	scanned, err := cache.Scan(ctx, domain.ScanFilter{Company: "Tesla"})
	require.NoError(t, err)
	assert.Len(t, scanned, 3)
}

func TestPromoteSwapsReplicaAtomically(t *testing.T) {
	ctx := context.Background()
	oldStore := newFakeStore(testArticles(t, "2024-05-01", 1)...)
	cache := services.NewQueryCache(oldStore, services.NewStateTracker())
	defer cache.Close()

	newStore := newFakeStore(testArticles(t, "2024-05-02", 5)...)
	cache.Promote(newStore)

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.RowCount)
	assert.True(t, oldStore.isClosed(), "replaced replica closes once unpinned")
	assert.False(t, newStore.isClosed())
}

func TestPromoteWaitsForPinnedReaders(t *testing.T) {
	oldStore := newFakeStore(testArticles(t, "2024-05-01", 2)...)
	cache := services.NewQueryCache(oldStore, services.NewStateTracker())
	defer cache.Close()

	// A pinned reader keeps its generation alive across a promotion.
	pinned, release := cache.Active()
	cache.Promote(newFakeStore())

	assert.False(t, oldStore.isClosed(), "pinned replica must stay open")
	rows, err := pinned.RowCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows, "pinned reader sees the pre-swap replica")

	release()
	assert.True(t, oldStore.isClosed(), "replica closes when the last pin is released")
}

func TestStatsReportsLastRefresh(t *testing.T) {
	ctx := context.Background()
	state := services.NewStateTracker()
	cache := services.NewQueryCache(newFakeStore(testArticles(t, "2024-05-01", 2)...), state)
	defer cache.Close()

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.RowCount)
	assert.Equal(t, int64(1), stats.PartitionCount)
	assert.True(t, stats.LastRefreshAt.IsZero())

	at := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	state.MarkRefresh([]string{"2024-05-01"}, at)

	stats, err = cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, at, stats.LastRefreshAt)
}

func TestCloseRetiresActiveReplica(t *testing.T) {
	store := newFakeStore()
	cache := services.NewQueryCache(store, services.NewStateTracker())

	cache.Close()
	assert.True(t, store.isClosed())
}
