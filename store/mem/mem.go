// Package mem implements an in-memory record backend.
package mem

import (
	"context"
	"sort"
	"sync"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/store"
)

var _ hashio.Backend = &Store{}

// Store is a memory-based implementation of a record backend.
type Store struct {
	mu      sync.Mutex
	records map[hashio.Hash][]byte
}

// New produces a new Store.
func New() *Store {
	return &Store{
		records: make(map[hashio.Hash][]byte),
	}
}

// Get gets the record with hash h.
func (s *Store) Get(_ context.Context, h hashio.Hash) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, ok := s.records[h]; ok {
		return append([]byte(nil), data...), nil
	}
	return nil, hashio.ErrNotFound
}

// Has tells whether the record with hash h exists.
func (s *Store) Has(_ context.Context, h hashio.Hash) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[h]
	return ok, nil
}

// Put adds a record to the store if it wasn't already present.
func (s *Store) Put(_ context.Context, data []byte) (hashio.Hash, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := hashio.HashBytes(data)
	if _, ok := s.records[h]; ok {
		return h, false, nil
	}
	s.records[h] = append([]byte(nil), data...)
	return h, true, nil
}

// ListHashes produces all record hashes in the store, in lexicographic order.
func (s *Store) ListHashes(_ context.Context, start hashio.Hash, f func(hashio.Hash) error) error {
	s.mu.Lock()
	hashes := make([]hashio.Hash, 0, len(s.records))
	for h := range s.records {
		hashes = append(hashes, h)
	}
	s.mu.Unlock()

	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Less(hashes[j]) })
	index := sort.Search(len(hashes), func(n int) bool {
		return start.Less(hashes[n])
	})

	for i := index; i < len(hashes); i++ {
		if err := f(hashes[i]); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of records in s.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func init() {
	store.Register("mem", func(context.Context, map[string]interface{}) (hashio.Backend, error) {
		return New(), nil
	})
}
