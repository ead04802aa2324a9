// Package logging implements a record backend that delegates everything to a nested backend,
// logging operations as they happen.
package logging

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/store"
)

var _ hashio.Backend = &Store{}

type Store struct {
	s      hashio.Backend
	logger *slog.Logger
}

// New wraps s.
// If logger is nil, slog.Default() is used.
func New(s hashio.Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{s: s, logger: logger}
}

func (s *Store) Get(ctx context.Context, h hashio.Hash) ([]byte, error) {
	data, err := s.s.Get(ctx, h)
	if err != nil {
		s.logger.ErrorContext(ctx, "Get", "hash", h.String(), "err", err)
	} else {
		s.logger.DebugContext(ctx, "Get", "hash", h.String(), "size", len(data))
	}
	return data, err
}

func (s *Store) Has(ctx context.Context, h hashio.Hash) (bool, error) {
	ok, err := s.s.Has(ctx, h)
	if err != nil {
		s.logger.ErrorContext(ctx, "Has", "hash", h.String(), "err", err)
	} else {
		s.logger.DebugContext(ctx, "Has", "hash", h.String(), "found", ok)
	}
	return ok, err
}

func (s *Store) Put(ctx context.Context, data []byte) (hashio.Hash, bool, error) {
	h, added, err := s.s.Put(ctx, data)
	if err != nil {
		s.logger.ErrorContext(ctx, "Put", "err", err)
	} else {
		s.logger.DebugContext(ctx, "Put", "hash", h.String(), "added", added, "size", len(data))
	}
	return h, added, err
}

func (s *Store) ListHashes(ctx context.Context, start hashio.Hash, f func(hashio.Hash) error) error {
	s.logger.DebugContext(ctx, "ListHashes", "start", start.String())
	return s.s.ListHashes(ctx, start, func(h hashio.Hash) error {
		err := f(h)
		if err != nil {
			s.logger.ErrorContext(ctx, "in ListHashes", "hash", h.String(), "err", err)
		}
		return err
	})
}

func init() {
	store.Register("logging", func(ctx context.Context, conf map[string]interface{}) (hashio.Backend, error) {
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
		return New(nestedStore, nil), nil
	})
}
