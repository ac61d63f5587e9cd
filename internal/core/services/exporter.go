package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/veridian-labs/newsvault/internal/codec"
	"github.com/veridian-labs/newsvault/internal/core/domain"
	"github.com/veridian-labs/newsvault/internal/core/ports/driven"
	"github.com/veridian-labs/newsvault/internal/logger"
)

// defaultExportRate throttles object storage writes to stay inside a
// conservative request budget.
const defaultExportRate = 10

// Manifest is the object storage listing of known partition keys,
// used by refresh discovery.
type Manifest struct {
	Partitions []string  `json:"partitions"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Exporter writes article batches to object storage as partitioned
// parquet files and maintains the partition manifest.
type Exporter struct {
	store   driven.ObjectStore
	prefix  string
	limiter *rate.Limiter

	// manifestMu serialises manifest read-modify-write within this
	// process.
	manifestMu sync.Mutex
}

// NewExporter creates an exporter writing under the given key prefix.
func NewExporter(store driven.ObjectStore, prefix string) *Exporter {
	return &Exporter{
		store:   store,
		prefix:  prefix,
		limiter: rate.NewLimiter(rate.Limit(defaultExportRate), 1),
	}
}

// Export writes one shard of articles into a partition. Writes are
// idempotent per shard: re-exporting with the same shard ID overwrites
// the prior object. An empty shard ID derives a random one.
//
// The shard is published atomically: data goes to a temp key first and
// is copied to its final key only after the full write succeeds. A
// half-written shard is never visible; on failure the temp object is
// deleted and a retryable error returned.
func (e *Exporter) Export(ctx context.Context, articles []domain.Article, partitionKey, shardID string) error {
	if !domain.ValidPartitionKey(partitionKey) {
		return fmt.Errorf("%w: bad partition key %q", domain.ErrInvalidInput, partitionKey)
	}
	if shardID == "" {
		shardID = uuid.NewString()
	}

	data, err := codec.EncodeArticles(articles)
	if err != nil {
		return fmt.Errorf("encoding partition %s: %w", partitionKey, err)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	tmp := tempKey(e.prefix, partitionKey, shardID)
	final := dataKey(e.prefix, partitionKey, shardID)

	if err := e.store.Put(ctx, tmp, data); err != nil {
		return domain.Transient("export put "+tmp, err)
	}
	if err := e.store.Copy(ctx, tmp, final); err != nil {
		if delErr := e.store.Delete(ctx, tmp); delErr != nil {
			logger.Warn("Failed to clean up temp object %s: %v", tmp, delErr)
		}
		return domain.Transient("export publish "+final, err)
	}
	if err := e.store.Delete(ctx, tmp); err != nil {
		logger.Warn("Failed to clean up temp object %s: %v", tmp, err)
	}

	if err := e.appendManifest(ctx, partitionKey); err != nil {
		return err
	}

	logger.Info("Exported %d articles to %s", len(articles), final)
	return nil
}

// ExportBatch pulls a batch from the source and exports it as one
// shard.
func (e *Exporter) ExportBatch(ctx context.Context, source driven.ArticleSource, batchSize int, partitionKey, shardID string) (int, error) {
	articles, err := source.Generate(ctx, batchSize, partitionKey)
	if err != nil {
		return 0, fmt.Errorf("generating batch: %w", err)
	}
	if err := e.Export(ctx, articles, partitionKey, shardID); err != nil {
		return 0, err
	}
	return len(articles), nil
}

// Manifest returns the current partition manifest. A missing manifest
// object reads as empty.
func (e *Exporter) Manifest(ctx context.Context) (*Manifest, error) {
	return loadManifest(ctx, e.store, e.prefix)
}

// appendManifest adds a partition key to the manifest, keeping it
// sorted and deduplicated.
func (e *Exporter) appendManifest(ctx context.Context, partitionKey string) error {
	e.manifestMu.Lock()
	defer e.manifestMu.Unlock()

	m, err := loadManifest(ctx, e.store, e.prefix)
	if err != nil {
		return err
	}

	for _, p := range m.Partitions {
		if p == partitionKey {
			return nil // Already listed
		}
	}
	m.Partitions = append(m.Partitions, partitionKey)
	sort.Strings(m.Partitions)
	m.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := e.store.Put(ctx, manifestKey(e.prefix), data); err != nil {
		return domain.Transient("manifest put", err)
	}
	return nil
}

// loadManifest reads the manifest under prefix. Shared with the
// refresher's listing step.
func loadManifest(ctx context.Context, store driven.ObjectStore, prefix string) (*Manifest, error) {
	data, err := store.Get(ctx, manifestKey(prefix))
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return &Manifest{}, nil
		}
		return nil, domain.Transient("manifest get", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}
