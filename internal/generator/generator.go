// Package generator produces synthetic news articles for export. It
// stands in for the upstream pipeline that authors the real dataset;
// the sync subsystem only cares that production is finite, restartable
// and side-effect free.
package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/veridian-labs/newsvault/internal/core/domain"
	"github.com/veridian-labs/newsvault/internal/core/ports/driven"
)

// Ensure Generator implements the interface.
var _ driven.ArticleSource = (*Generator)(nil)

var (
	companies = []string{
		"Microsoft", "Apple", "Google", "Amazon", "Tesla",
		"Meta", "Netflix", "Nvidia", "Intel", "Salesforce",
	}
	categories = []string{
		"Technology", "Finance", "Healthcare", "Energy",
		"Retail", "Automotive", "Media",
	}
	sources = []string{
		"Google News", "Bing News", "PR Newswire", "Yahoo Finance",
	}
	titleTemplates = []string{
		"%s Announces New %s Initiative",
		"%s Partners with Industry Leader in %s",
		"%s Reports Strong %s Growth",
		"%s Launches Revolutionary %s Platform",
		"%s Expands %s Operations Globally",
	}
)

// Generator is a seeded synthetic article source. The same seed
// produces the same articles, which keeps exports reproducible.
type Generator struct {
	faker *gofakeit.Faker
}

// New creates a generator. Seed zero produces a random stream.
func New(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Generate returns batchSize articles published inside the partition's
// date bucket.
func (g *Generator) Generate(_ context.Context, batchSize int, partitionKey string) ([]domain.Article, error) {
	day, err := time.Parse(domain.PartitionKeyLayout, partitionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: bad partition key %q", domain.ErrInvalidInput, partitionKey)
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive", domain.ErrInvalidInput)
	}

	articles := make([]domain.Article, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		company := companies[g.faker.IntRange(0, len(companies)-1)]
		category := categories[g.faker.IntRange(0, len(categories)-1)]
		template := titleTemplates[g.faker.IntRange(0, len(titleTemplates)-1)]

		articles = append(articles, domain.Article{
			ID:          g.faker.UUID(),
			Title:       fmt.Sprintf(template, company, category),
			Body:        g.faker.Paragraph(2, 4, 12, " "),
			Company:     company,
			Category:    category,
			Source:      sources[g.faker.IntRange(0, len(sources)-1)],
			URL:         g.faker.URL(),
			Sentiment:   g.faker.Float64Range(-1, 1),
			PublishedAt: day.Add(time.Duration(g.faker.IntRange(0, 86399)) * time.Second).UTC(),
		})
	}
	return articles, nil
}
