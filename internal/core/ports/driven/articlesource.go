package driven

import (
	"context"

	"github.com/veridian-labs/newsvault/internal/core/domain"
)

// ArticleSource produces batches of articles for export. Production is
// finite, restartable and free of side effects; the business content
// of the records is the source's concern, not the sync subsystem's.
type ArticleSource interface {
	// Generate returns batchSize articles whose publication times fall
	// inside the partition's date bucket.
	Generate(ctx context.Context, batchSize int, partitionKey string) ([]domain.Article, error)
}
