package driven

import (
	"context"

	"github.com/veridian-labs/newsvault/internal/core/domain"
)

// ArticleStore is the local embedded replica. A store instance is
// either active (serving reads through the query cache) or standby
// (being built by a refresh cycle); it is never mutated in place while
// active. Reads never block on network I/O.
type ArticleStore interface {
	// UpsertBatch inserts or replaces articles keyed by ID.
	UpsertBatch(ctx context.Context, articles []domain.Article) error

	// Lookup returns the article with the given ID, or
	// domain.ErrNotFound.
	Lookup(ctx context.Context, id string) (*domain.Article, error)

	// Scan returns articles matching the filter, newest first.
	Scan(ctx context.Context, filter domain.ScanFilter) ([]domain.Article, error)

	// Search returns articles whose title or body contains keyword,
	// newest first.
	Search(ctx context.Context, keyword string, limit int) ([]domain.Article, error)

	// RowCount returns the number of stored articles.
	RowCount(ctx context.Context) (int64, error)

	// PartitionCount returns the number of distinct partitions.
	PartitionCount(ctx context.Context) (int64, error)

	// Clone produces an independent copy of the store. Refresh cycles
	// clone the active store to build a standby.
	Clone(ctx context.Context) (ArticleStore, error)

	// Serialize returns the full store contents as a single blob
	// suitable for StoreFactory.FromBytes.
	Serialize(ctx context.Context) ([]byte, error)

	// Close releases the store and its backing resources. Replicas
	// are disposable caches; closing discards local state.
	Close() error
}

// StoreFactory creates replica instances. Restore uses FromBytes to
// produce a fresh store without touching the active one.
type StoreFactory interface {
	// Empty creates a new empty replica.
	Empty(ctx context.Context) (ArticleStore, error)

	// FromBytes creates a replica loaded from a Serialize blob.
	FromBytes(ctx context.Context, data []byte) (ArticleStore, error)
}
