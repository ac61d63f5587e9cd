package services

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/veridian-labs/newsvault/internal/core/domain"
	"github.com/veridian-labs/newsvault/internal/core/ports/driven"
	"github.com/veridian-labs/newsvault/internal/core/ports/driving"
	"github.com/veridian-labs/newsvault/internal/logger"
)

// Ensure QueryCache implements the interface.
var _ driving.QueryService = (*QueryCache)(nil)

// storeHandle refcounts readers pinned to one replica generation. A
// retired handle closes its store once the last pin is released.
type storeHandle struct {
	store driven.ArticleStore

	mu      sync.Mutex
	pins    int
	retired bool
}

// acquire pins the handle. Returns false if the handle was already
// retired with no pins, in which case its store may be closed.
func (h *storeHandle) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.retired && h.pins == 0 {
		return false
	}
	h.pins++
	return true
}

func (h *storeHandle) release() {
	h.mu.Lock()
	last := false
	h.pins--
	if h.retired && h.pins == 0 {
		last = true
	}
	h.mu.Unlock()

	if last {
		if err := h.store.Close(); err != nil {
			logger.Warn("Closing retired replica: %v", err)
		}
	}
}

// retire marks the handle as replaced. The store closes immediately if
// no reader holds a pin, otherwise when the last pin is released.
func (h *storeHandle) retire() {
	h.mu.Lock()
	h.retired = true
	closeNow := h.pins == 0
	h.mu.Unlock()

	if closeNow {
		if err := h.store.Close(); err != nil {
			logger.Warn("Closing retired replica: %v", err)
		}
	}
}

// QueryCache serves reads against whichever replica is currently
// active. Each read pins one store generation for its entire duration,
// so a promotion is linearizable with respect to concurrent reads: a
// read sees the replica entirely before or entirely after a swap,
// never a mix. The active reference is replaced, never edited.
type QueryCache struct {
	active atomic.Pointer[storeHandle]
	state  *StateTracker
}

// NewQueryCache creates a cache serving the given initial replica.
func NewQueryCache(initial driven.ArticleStore, state *StateTracker) *QueryCache {
	c := &QueryCache{state: state}
	c.active.Store(&storeHandle{store: initial})
	return c
}

// pin acquires the current active handle. The retry loop covers the
// window where a promotion retires the loaded handle before the
// acquire lands.
func (c *QueryCache) pin() *storeHandle {
	for {
		h := c.active.Load()
		if h.acquire() {
			return h
		}
	}
}

// Promote atomically replaces the active replica with standby. The old
// replica is retired and closes after its in-flight readers finish.
func (c *QueryCache) Promote(standby driven.ArticleStore) {
	old := c.active.Swap(&storeHandle{store: standby})
	old.retire()
}

// Active pins the current replica and returns it with a release
// function. Used by the sync engine to back up a consistent replica.
func (c *QueryCache) Active() (driven.ArticleStore, func()) {
	h := c.pin()
	return h.store, h.release
}

// Lookup returns the article with the given ID.
func (c *QueryCache) Lookup(ctx context.Context, id string) (*domain.Article, error) {
	h := c.pin()
	defer h.release()
	return h.store.Lookup(ctx, id)
}

// Scan returns articles matching the filter, newest first.
func (c *QueryCache) Scan(ctx context.Context, filter domain.ScanFilter) ([]domain.Article, error) {
	h := c.pin()
	defer h.release()
	return h.store.Scan(ctx, filter)
}

// Search returns articles whose title or body contains keyword.
func (c *QueryCache) Search(ctx context.Context, keyword string, limit int) ([]domain.Article, error) {
	h := c.pin()
	defer h.release()
	return h.store.Search(ctx, keyword, limit)
}

// Stats reports the served replica's counts and the last successful
// refresh time. It reflects reality even when recent cycles failed:
// staleness is the caller's signal that something is wrong upstream.
func (c *QueryCache) Stats(ctx context.Context) (domain.StoreStats, error) {
	h := c.pin()
	defer h.release()

	rows, err := h.store.RowCount(ctx)
	if err != nil {
		return domain.StoreStats{}, err
	}
	parts, err := h.store.PartitionCount(ctx)
	if err != nil {
		return domain.StoreStats{}, err
	}
	return domain.StoreStats{
		RowCount:       rows,
		PartitionCount: parts,
		LastRefreshAt:  c.state.LastRefreshAt(),
	}, nil
}

// Close retires the active replica. Pending reads finish first.
func (c *QueryCache) Close() {
	c.active.Load().retire()
}
