// Package lru implements a record backend that acts as a least-recently-used cache for a nested backend.
package lru

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/store"
)

var _ hashio.Backend = &Store{}

// Store implements a memory-based least-recently-used cache for a record backend.
// Writes pass through to the underlying backend.
// Since records are immutable, cached entries never go stale.
type Store struct {
	c *lru.Cache // Hash->[]byte
	s hashio.Backend
}

// New produces a new Store backed by s and caching up to size records.
func New(s hashio.Backend, size int) (*Store, error) {
	c, err := lru.New(size)
	return &Store{s: s, c: c}, errors.Wrap(err, "creating cache")
}

// Get gets the record with hash h.
// Callers may modify the result without affecting the cache.
func (s *Store) Get(ctx context.Context, h hashio.Hash) ([]byte, error) {
	if got, ok := s.c.Get(h); ok {
		return append([]byte(nil), got.([]byte)...), nil
	}
	data, err := s.s.Get(ctx, h)
	if err != nil {
		return nil, err
	}
	s.c.Add(h, append([]byte(nil), data...))
	return data, nil
}

// Has tells whether the record with hash h exists.
func (s *Store) Has(ctx context.Context, h hashio.Hash) (bool, error) {
	if s.c.Contains(h) {
		return true, nil
	}
	return s.s.Has(ctx, h)
}

// Put adds a record to the nested backend if it wasn't already present.
func (s *Store) Put(ctx context.Context, data []byte) (hashio.Hash, bool, error) {
	h, added, err := s.s.Put(ctx, data)
	if err != nil {
		return h, added, err
	}
	s.c.Add(h, append([]byte(nil), data...))
	return h, added, nil
}

// ListHashes delegates to the nested backend.
func (s *Store) ListHashes(ctx context.Context, start hashio.Hash, f func(hashio.Hash) error) error {
	return s.s.ListHashes(ctx, start, f)
}

func init() {
	store.Register("lru", func(ctx context.Context, conf map[string]interface{}) (hashio.Backend, error) {
		size, ok := conf["size"].(int)
		if !ok {
			return nil, errors.New(`missing "size" parameter`)
		}
		nested, ok := conf["nested"].(map[string]interface{})
		if !ok {
			return nil, errors.New(`missing "nested" parameter`)
		}
		nestedType, ok := nested["type"].(string)
		if !ok {
			return nil, errors.New(`"nested" parameter missing "type"`)
		}
		nestedStore, err := store.Create(ctx, nestedType, nested)
		if err != nil {
			return nil, errors.Wrap(err, "creating nested store")
		}
		return New(nestedStore, size)
	})
}
