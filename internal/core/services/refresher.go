package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/veridian-labs/newsvault/internal/codec"
	"github.com/veridian-labs/newsvault/internal/core/domain"
	"github.com/veridian-labs/newsvault/internal/core/ports/driven"
	"github.com/veridian-labs/newsvault/internal/core/ports/driving"
	"github.com/veridian-labs/newsvault/internal/logger"
)

// Ensure Refresher implements the interface.
var _ driving.RefreshTrigger = (*Refresher)(nil)

// RefreshConfig tunes the background refresh cycle.
type RefreshConfig struct {
	// Interval between timer-driven cycles.
	Interval time.Duration

	// RetryAttempts is the total number of tries per partition pull.
	RetryAttempts int

	// BackoffBase is the initial backoff interval between retries.
	BackoffBase time.Duration

	// RowFloor is the minimum standby row count accepted by
	// validation.
	RowFloor int64

	// CycleTimeout is the soft deadline for a whole cycle. On expiry
	// the cycle aborts at whatever step it is in and the standby is
	// discarded.
	CycleTimeout time.Duration

	// Concurrency bounds parallel partition pulls.
	Concurrency int
}

// DefaultRefreshConfig returns sensible defaults.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:      5 * time.Minute,
		RetryAttempts: 3,
		BackoffBase:   500 * time.Millisecond,
		RowFloor:      0,
		CycleTimeout:  2 * time.Minute,
		Concurrency:   4,
	}
}

// Refresher keeps the replica warm: a recurring background cycle lists
// partitions not yet merged, pulls them, builds a standby replica from
// a clone of the active one, validates it and promotes it. Exactly one
// cycle runs at a time; triggers during a cycle coalesce into no-ops.
//
// A cycle walks Idle → Listing → Pulling → Merging → Validating →
// Promoting → Idle. Partition-level failures are contained within the
// cycle (skipped partitions retry next cycle); cycle-level failures
// are contained here and logged, never surfaced across the serving
// boundary.
type Refresher struct {
	store  driven.ObjectStore
	prefix string
	cache  *QueryCache
	state  *StateTracker
	cfg    RefreshConfig

	inFlight  atomic.Bool
	triggerCh chan struct{}

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	last    *domain.CycleResult
}

// NewRefresher creates a refresher reading partitions under prefix.
func NewRefresher(store driven.ObjectStore, prefix string, cache *QueryCache, state *StateTracker, cfg RefreshConfig) *Refresher {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Refresher{
		store:     store,
		prefix:    prefix,
		cache:     cache,
		state:     state,
		cfg:       cfg,
		triggerCh: make(chan struct{}, 1),
	}
}

// Start begins the scheduler loop. This method blocks until Stop is
// called or ctx is cancelled. An initial cycle runs immediately.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil // Already running
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.mu.Unlock()

	r.runCycleAsync(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return ctx.Err()
		case <-r.stopCh:
			r.wg.Wait()
			return nil
		case <-ticker.C:
			r.runCycleAsync(ctx)
		case <-r.triggerCh:
			r.runCycleAsync(ctx)
		}
	}
}

// Stop gracefully shuts down the scheduler loop, waiting for an
// in-flight cycle to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()
	r.wg.Wait()
}

// Trigger requests an on-demand cycle. A request while a cycle is
// running is coalesced into a no-op rather than queued, bounding
// resource use under a flapping trigger source.
func (r *Refresher) Trigger(_ context.Context) driving.TriggerResult {
	if r.inFlight.Load() {
		return driving.TriggerInProgress
	}
	select {
	case r.triggerCh <- struct{}{}:
		return driving.TriggerAccepted
	default:
		return driving.TriggerInProgress
	}
}

// RunOnce executes a single cycle synchronously. Used by the CLI's
// one-shot refresh command and by tests.
func (r *Refresher) RunOnce(ctx context.Context) error {
	return r.runCycle(ctx)
}

// LastResult returns the outcome of the most recent cycle, or nil if
// none has run.
func (r *Refresher) LastResult() *domain.CycleResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil
	}
	cp := *r.last
	return &cp
}

func (r *Refresher) runCycleAsync(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.runCycle(ctx); err != nil && !errors.Is(err, domain.ErrRefreshInProgress) {
			logger.Warn("Refresh cycle failed: %v", err)
		}
	}()
}

// runCycle executes one full refresh cycle. It returns
// domain.ErrRefreshInProgress when another cycle holds the
// single-flight gate.
func (r *Refresher) runCycle(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return domain.ErrRefreshInProgress
	}
	defer r.inFlight.Store(false)

	if r.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.CycleTimeout)
		defer cancel()
	}

	result := &domain.CycleResult{StartedAt: time.Now().UTC()}
	err := r.cycle(ctx, result)
	result.EndedAt = time.Now().UTC()
	if err != nil {
		result.Success = false
		result.Error = err.Error()
	}

	r.mu.Lock()
	r.last = result
	r.mu.Unlock()
	return err
}

func (r *Refresher) cycle(ctx context.Context, result *domain.CycleResult) error {
	// Listing: partitions known upstream but not yet merged.
	manifest, err := loadManifest(ctx, r.store, r.prefix)
	if err != nil {
		return fmt.Errorf("listing partitions: %w", err)
	}
	pending := r.state.Unmerged(manifest.Partitions)
	if len(pending) == 0 {
		logger.Debug("Refresh: no new partitions")
		result.Success = true
		return nil
	}
	logger.Info("Refresh: %d new partitions", len(pending))

	// Pulling: each partition fetch retries independently; one that
	// exhausts its retries is skipped this cycle and retried next.
	pulled := r.pullPartitions(ctx, pending, result)
	if len(pulled) == 0 {
		return fmt.Errorf("no partitions pulled (skipped %d)", len(result.Skipped))
	}

	// Merging: build a standby from a clone of the active replica and
	// upsert partitions in ascending key order, so on duplicate IDs
	// the later partition wins deterministically.
	active, release := r.cache.Active()
	activeRows, err := active.RowCount(ctx)
	if err != nil {
		release()
		return fmt.Errorf("counting active rows: %w", err)
	}
	standby, err := active.Clone(ctx)
	release()
	if err != nil {
		return fmt.Errorf("cloning active replica: %w", err)
	}

	sort.Slice(pulled, func(i, j int) bool { return pulled[i].Key < pulled[j].Key })
	var merged []string
	for _, p := range pulled {
		if err := standby.UpsertBatch(ctx, p.Articles); err != nil {
			standby.Close()
			return fmt.Errorf("merging partition %s: %w", p.Key, err)
		}
		merged = append(merged, p.Key)
	}

	// Validating: the standby must pass the sanity floor before it can
	// replace the active replica.
	standbyRows, err := standby.RowCount(ctx)
	if err != nil {
		standby.Close()
		return fmt.Errorf("counting standby rows: %w", err)
	}
	if activeRows > 0 && standbyRows == 0 {
		standby.Close()
		return fmt.Errorf("%w: standby empty, active had %d rows", domain.ErrValidationFailed, activeRows)
	}
	if standbyRows < r.cfg.RowFloor {
		standby.Close()
		return fmt.Errorf("%w: standby has %d rows, floor is %d", domain.ErrValidationFailed, standbyRows, r.cfg.RowFloor)
	}

	// Promoting: one atomic swap; the old replica closes once its
	// in-flight readers drain.
	r.cache.Promote(standby)
	r.state.MarkRefresh(merged, time.Now().UTC())

	result.Merged = merged
	result.RowCount = standbyRows
	result.Success = len(result.Skipped) == 0
	if !result.Success {
		result.Error = fmt.Sprintf("skipped partitions: %s", strings.Join(result.Skipped, ", "))
	}
	logger.Info("Refresh promoted %d partitions (%d rows, %d skipped)",
		len(merged), standbyRows, len(result.Skipped))
	return nil
}

// pullPartitions fetches pending partitions in parallel, bounded by
// the configured concurrency. Failures are recorded as skipped, never
// propagated: they must not abort the cycle.
func (r *Refresher) pullPartitions(ctx context.Context, pending []string, result *domain.CycleResult) []domain.Partition {
	var (
		mu     sync.Mutex
		pulled []domain.Partition
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, key := range pending {
		g.Go(func() error {
			part, err := r.pullPartition(gctx, key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("Skipping partition %s this cycle: %v", key, err)
				result.Skipped = append(result.Skipped, key)
				return nil
			}
			pulled = append(pulled, *part)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors

	sort.Strings(result.Skipped)
	return pulled
}

// pullPartition fetches one partition's shards with bounded
// exponential backoff.
func (r *Refresher) pullPartition(ctx context.Context, key string) (*domain.Partition, error) {
	var part *domain.Partition

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.BackoffBase

	attempt := func() error {
		p, err := r.fetchPartition(ctx, key)
		if err != nil {
			return err
		}
		part = p
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.cfg.RetryAttempts-1)), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return nil, err
	}
	return part, nil
}

// fetchPartition reads every published shard under the partition's
// prefix, in key order. Unpublished temp objects are ignored.
func (r *Refresher) fetchPartition(ctx context.Context, key string) (*domain.Partition, error) {
	keys, err := r.store.List(ctx, partitionPrefix(r.prefix, key))
	if err != nil {
		return nil, fmt.Errorf("listing partition %s: %w", key, err)
	}

	part := &domain.Partition{Key: key}
	for _, k := range keys {
		if !strings.HasSuffix(k, ".parquet") {
			continue
		}
		data, err := r.store.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", k, err)
		}
		articles, err := codec.DecodeArticles(data)
		if err != nil {
			// A malformed shard is not retryable; fail the partition
			// permanently for this cycle.
			return nil, backoff.Permanent(fmt.Errorf("decoding %s: %w", k, err))
		}
		part.Articles = append(part.Articles, articles...)
	}
	return part, nil
}
