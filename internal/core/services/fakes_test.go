package services_test

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/veridian-labs/newsvault/internal/core/domain"
	"github.com/veridian-labs/newsvault/internal/core/ports/driven"
)

// fakeStore is an in-memory ArticleStore for exercising the services
// without a database.
type fakeStore struct {
	mu        sync.Mutex
	rows      map[string]domain.Article
	closed    bool
	lastClone *fakeStore
}

var _ driven.ArticleStore = (*fakeStore)(nil)

func newFakeStore(articles ...domain.Article) *fakeStore {
	s := &fakeStore{rows: make(map[string]domain.Article)}
	for _, a := range articles {
		s.rows[a.ID] = a
	}
	return s
}

func (s *fakeStore) UpsertBatch(_ context.Context, articles []domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range articles {
		s.rows[a.ID] = a
	}
	return nil
}

func (s *fakeStore) Lookup(_ context.Context, id string) (*domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (s *fakeStore) Scan(_ context.Context, filter domain.ScanFilter) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Article
	for _, a := range s.rows {
		if filter.Company != "" && !strings.Contains(a.Company, filter.Company) {
			continue
		}
		if filter.Category != "" && !strings.Contains(a.Category, filter.Category) {
			continue
		}
		if !filter.Since.IsZero() && a.PublishedAt.Before(filter.Since) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *fakeStore) Search(_ context.Context, keyword string, limit int) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Article
	for _, a := range s.rows {
		if strings.Contains(a.Title, keyword) || strings.Contains(a.Body, keyword) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) RowCount(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

func (s *fakeStore) PartitionCount(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	for _, a := range s.rows {
		seen[a.PartitionKey()] = true
	}
	return int64(len(seen)), nil
}

func (s *fakeStore) Clone(_ context.Context) (driven.ArticleStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := &fakeStore{rows: make(map[string]domain.Article, len(s.rows))}
	for id, a := range s.rows {
		clone.rows[id] = a
	}
	s.lastClone = clone
	return clone, nil
}

func (s *fakeStore) Serialize(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []domain.Article
	for _, a := range s.rows {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return json.Marshal(all)
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeStore) clone() *fakeStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastClone
}

// fakeFactory builds fakeStores from Serialize blobs.
type fakeFactory struct{}

var _ driven.StoreFactory = (*fakeFactory)(nil)

func (fakeFactory) Empty(_ context.Context) (driven.ArticleStore, error) {
	return newFakeStore(), nil
}

func (fakeFactory) FromBytes(_ context.Context, data []byte) (driven.ArticleStore, error) {
	var all []domain.Article
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	return newFakeStore(all...), nil
}
