// Package codec encodes article batches as parquet, the columnar
// format the authoritative dataset is stored in.
package codec

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/veridian-labs/newsvault/internal/core/domain"
)

// articleRow is the parquet schema for one article. Timestamps are
// stored as microseconds since the epoch so the files remain readable
// by engines without Go-specific time handling.
type articleRow struct {
	ID            string  `parquet:"id"`
	Title         string  `parquet:"title"`
	Body          string  `parquet:"body"`
	Company       string  `parquet:"company"`
	Category      string  `parquet:"category"`
	Source        string  `parquet:"source"`
	URL           string  `parquet:"url"`
	Sentiment     float64 `parquet:"sentiment"`
	PublishedAtUS int64   `parquet:"published_at_us"`
}

// EncodeArticles serializes articles to a parquet file in memory,
// preserving batch order.
func EncodeArticles(articles []domain.Article) ([]byte, error) {
	rows := make([]articleRow, 0, len(articles))
	for _, a := range articles {
		rows = append(rows, articleRow{
			ID:            a.ID,
			Title:         a.Title,
			Body:          a.Body,
			Company:       a.Company,
			Category:      a.Category,
			Source:        a.Source,
			URL:           a.URL,
			Sentiment:     a.Sentiment,
			PublishedAtUS: a.PublishedAt.UTC().UnixMicro(),
		})
	}

	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return nil, fmt.Errorf("writing parquet: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeArticles deserializes a parquet file produced by
// EncodeArticles, preserving file order.
func DecodeArticles(data []byte) ([]domain.Article, error) {
	rows, err := parquet.Read[articleRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading parquet: %w", err)
	}

	articles := make([]domain.Article, 0, len(rows))
	for _, r := range rows {
		articles = append(articles, domain.Article{
			ID:          r.ID,
			Title:       r.Title,
			Body:        r.Body,
			Company:     r.Company,
			Category:    r.Category,
			Source:      r.Source,
			URL:         r.URL,
			Sentiment:   r.Sentiment,
			PublishedAt: time.UnixMicro(r.PublishedAtUS).UTC(),
		})
	}
	return articles, nil
}
