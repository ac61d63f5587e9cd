package driving

import (
	"context"

	"github.com/veridian-labs/newsvault/internal/core/domain"
)

// QueryService is the read surface exposed to the serving layer. Every
// operation runs against whichever replica is active at call time and
// never observes a promotion mid-operation.
type QueryService interface {
	// Lookup returns the article with the given ID, or
	// domain.ErrNotFound.
	Lookup(ctx context.Context, id string) (*domain.Article, error)

	// Scan returns articles matching the filter, newest first.
	Scan(ctx context.Context, filter domain.ScanFilter) ([]domain.Article, error)

	// Search returns articles whose title or body contains keyword.
	Search(ctx context.Context, keyword string, limit int) ([]domain.Article, error)

	// Stats reports the served replica's row count, partition count
	// and last successful refresh time.
	Stats(ctx context.Context) (domain.StoreStats, error)
}
