// Package hashlog implements a hash-chained append log.
//
// Each entry is identified by a chain hash:
// the content hash of its item,
// combined with the chain hash of the entry before it.
// Changing, dropping, or reordering any entry
// therefore changes the chain hash of every entry after it.
//
// A log runs entirely in memory by default.
// Hooks let it persist entries as they are pushed
// and fetch entries that are not resident,
// e.g. in a hashio.Store (see StoreHooks).
package hashlog

import (
	"context"
	"iter"

	"github.com/pkg/errors"

	"github.com/bobg/hashio"
)

// Log is an ordered, append-only, hash-chained sequence of items.
// No method removes or reorders entries.
type Log[T any] interface {
	// Push appends item and returns the chain hash of its entry,
	// which becomes the new head.
	Push(ctx context.Context, item T) (hashio.Hash, error)

	// HeadHash returns the chain hash of the most recent entry.
	// The boolean is false for an empty log.
	HeadHash() (hashio.Hash, bool)

	// ParentHash returns the chain hash of the entry preceding h.
	// The boolean is false if h is not in the log or is its first entry.
	ParentHash(ctx context.Context, h hashio.Hash) (hashio.Hash, bool, error)

	// Get returns the item of the entry with chain hash h.
	// The boolean is false if there is no such entry.
	Get(ctx context.Context, h hashio.Hash) (T, bool, error)

	// GetMut is like Get but returns a pointer to the resident item.
	// Changes through it do not alter any chain hash.
	GetMut(ctx context.Context, h hashio.Hash) (*T, bool, error)

	// Items iterates over the log's items, most recent first.
	Items(ctx context.Context) iter.Seq[T]

	// Hashes iterates over the log's chain hashes, most recent first.
	Hashes(ctx context.Context) iter.Seq[hashio.Hash]
}

// Entry is one link of the chain.
type Entry[T any] struct {
	Item   T
	Parent hashio.Hash // None for the first entry
}

// Hooks connect a DefaultLog to external persistence.
type Hooks[T any] interface {
	// Load fetches an entry that is not resident.
	// The boolean is false if the entry does not exist.
	Load(ctx context.Context, h hashio.Hash) (Entry[T], bool, error)

	// Save commits a newly pushed entry.
	Save(ctx context.Context, h hashio.Hash, e Entry[T]) error
}

// NopHooks is the default Hooks: nothing is persisted and nothing is found.
type NopHooks[T any] struct{}

func (NopHooks[T]) Load(context.Context, hashio.Hash) (Entry[T], bool, error) {
	return Entry[T]{}, false, nil
}

func (NopHooks[T]) Save(context.Context, hashio.Hash, Entry[T]) error { return nil }

// ErrBrokenChain is the error reported by Verify
// when an entry's chain hash does not match its content and parent,
// or when an entry on the chain cannot be found.
var ErrBrokenChain = errors.New("broken chain")

// ChainHash is the chain hash of an entry
// whose item has content hash c
// and whose predecessor has chain hash parent (None for the first entry).
func ChainHash(c, parent hashio.Hash) hashio.Hash {
	if parent.IsNone() {
		return c
	}
	return c.HashWith(parent)
}

// DefaultLog is a Log of Hashable items
// kept in a map from chain hash to entry.
//
// A DefaultLog is not safe for concurrent use.
type DefaultLog[T hashio.Hashable] struct {
	entries map[hashio.Hash]*Entry[T]
	head    hashio.Hash
	hooks   Hooks[T]
	err     error
}

var _ Log[hashio.Hash] = &DefaultLog[hashio.Hash]{}

// Option configures a DefaultLog.
type Option[T hashio.Hashable] func(*DefaultLog[T])

// WithHooks sets the hooks of the log.
func WithHooks[T hashio.Hashable](hooks Hooks[T]) Option[T] {
	return func(l *DefaultLog[T]) {
		l.hooks = hooks
	}
}

// WithHead resumes a chain whose most recent entry has chain hash h.
// Earlier entries are fetched through the hooks when needed.
func WithHead[T hashio.Hashable](h hashio.Hash) Option[T] {
	return func(l *DefaultLog[T]) {
		l.head = h
	}
}

// New produces a DefaultLog,
// empty unless resumed with WithHead.
func New[T hashio.Hashable](opts ...Option[T]) *DefaultLog[T] {
	l := &DefaultLog[T]{
		entries: make(map[hashio.Hash]*Entry[T]),
		hooks:   NopHooks[T]{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Push implements Log.
// The entry is saved through the hooks before it is added;
// if saving fails the log is unchanged.
func (l *DefaultLog[T]) Push(ctx context.Context, item T) (hashio.Hash, error) {
	var (
		e = Entry[T]{Item: item, Parent: l.head}
		h = ChainHash(item.ContentHash(), l.head)
	)
	if err := l.hooks.Save(ctx, h, e); err != nil {
		return hashio.None, errors.Wrapf(err, "saving entry %s", h)
	}
	l.entries[h] = &e
	l.head = h
	return h, nil
}

// HeadHash implements Log.
func (l *DefaultLog[T]) HeadHash() (hashio.Hash, bool) {
	return l.head, !l.head.IsNone()
}

// ParentHash implements Log.
func (l *DefaultLog[T]) ParentHash(ctx context.Context, h hashio.Hash) (hashio.Hash, bool, error) {
	e, ok, err := l.entry(ctx, h)
	if err != nil || !ok {
		return hashio.None, false, err
	}
	return e.Parent, !e.Parent.IsNone(), nil
}

// Get implements Log.
func (l *DefaultLog[T]) Get(ctx context.Context, h hashio.Hash) (T, bool, error) {
	e, ok, err := l.entry(ctx, h)
	if err != nil || !ok {
		var zero T
		return zero, false, err
	}
	return e.Item, true, nil
}

// GetMut implements Log.
func (l *DefaultLog[T]) GetMut(ctx context.Context, h hashio.Hash) (*T, bool, error) {
	e, ok, err := l.entry(ctx, h)
	if err != nil || !ok {
		return nil, false, err
	}
	return &e.Item, true, nil
}

// Len reports the number of resident entries.
func (l *DefaultLog[T]) Len() int { return len(l.entries) }

func (l *DefaultLog[T]) entry(ctx context.Context, h hashio.Hash) (*Entry[T], bool, error) {
	if h.IsNone() {
		return nil, false, nil
	}
	if e, ok := l.entries[h]; ok {
		return e, true, nil
	}
	e, ok, err := l.hooks.Load(ctx, h)
	if err != nil {
		return nil, false, errors.Wrapf(err, "loading entry %s", h)
	}
	if !ok {
		return nil, false, nil
	}
	l.entries[h] = &e
	return &e, true, nil
}

// All iterates over the log's entries, most recent first,
// yielding each chain hash with its item.
// Iteration ends early if an entry cannot be loaded;
// Err then reports why.
// Each call starts a fresh walk from the current head.
func (l *DefaultLog[T]) All(ctx context.Context) iter.Seq2[hashio.Hash, T] {
	return func(yield func(hashio.Hash, T) bool) {
		l.err = nil
		for h := l.head; !h.IsNone(); {
			e, ok, err := l.entry(ctx, h)
			if err != nil {
				l.err = err
				return
			}
			if !ok {
				l.err = errors.Wrapf(ErrBrokenChain, "entry %s not found", h)
				return
			}
			if !yield(h, e.Item) {
				return
			}
			h = e.Parent
		}
	}
}

// Items implements Log.
func (l *DefaultLog[T]) Items(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, item := range l.All(ctx) {
			if !yield(item) {
				return
			}
		}
	}
}

// Hashes implements Log.
func (l *DefaultLog[T]) Hashes(ctx context.Context) iter.Seq[hashio.Hash] {
	return func(yield func(hashio.Hash) bool) {
		for h := range l.All(ctx) {
			if !yield(h) {
				return
			}
		}
	}
}

// Err reports the error, if any, that ended the most recent iteration early.
func (l *DefaultLog[T]) Err() error { return l.err }

// Verify walks the chain from the head to the first entry,
// recomputing every chain hash.
// The first mismatch or missing entry is reported as an error wrapping ErrBrokenChain.
func (l *DefaultLog[T]) Verify(ctx context.Context) error {
	for h := l.head; !h.IsNone(); {
		e, ok, err := l.entry(ctx, h)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrBrokenChain, "entry %s not found", h)
		}
		if got := ChainHash(e.Item.ContentHash(), e.Parent); got != h {
			return errors.Wrapf(ErrBrokenChain, "entry %s hashes to %s", h, got)
		}
		h = e.Parent
	}
	return nil
}
