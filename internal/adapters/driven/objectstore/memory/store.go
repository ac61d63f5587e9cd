// Package memory provides an in-memory ObjectStore for tests and
// local development, mirroring the filesystem-backend-for-dev pattern
// of S3-backed stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/veridian-labs/newsvault/internal/core/domain"
	"github.com/veridian-labs/newsvault/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ObjectStore = (*Store)(nil)

// FailFunc can be installed to inject failures per operation. It is
// consulted before the operation executes; a non-nil return aborts it.
type FailFunc func(op, key string) error

// Store is an in-memory implementation of driven.ObjectStore.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	failFn  FailFunc
}

// NewStore creates an empty in-memory object store.
func NewStore() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// SetFailFunc installs a failure injection hook. Pass nil to clear.
func (s *Store) SetFailFunc(fn FailFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFn = fn
}

func (s *Store) fail(op, key string) error {
	if s.failFn == nil {
		return nil
	}
	return s.failFn(op, key)
}

// Put writes data under key, overwriting any existing object.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("put", key); err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return nil
}

// Get reads the object at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("get", key); err != nil {
		return nil, err
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrObjectNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Copy duplicates the object at src to dst.
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("copy", dst); err != nil {
		return err
	}
	data, ok := s.objects[src]
	if !ok {
		return fmt.Errorf("%s: %w", src, domain.ErrObjectNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[dst] = cp
	return nil
}

// Delete removes the object at key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("delete", key); err != nil {
		return err
	}
	delete(s.objects, key)
	return nil
}

// List returns the keys under prefix, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("list", prefix); err != nil {
		return nil, err
	}
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored objects. Useful for tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
