package hashlog

import (
	"context"
	"slices"

	"github.com/pkg/errors"

	"github.com/bobg/hashio"
)

// linkSize is the length of a link record: content hash, then parent chain hash.
const linkSize = 2 * hashio.Size

// StoreHooks persists log entries in a hashio.Store.
//
// The item of every entry is stored through its codec,
// so the codec's content hash must agree with the item's ContentHash.
// The first entry of a chain needs nothing more:
// its chain hash is its item's hash.
// Every later entry is also stored as a link record
//
//	content_hash | parent_chain_hash
//
// whose hash is exactly the entry's chain hash.
// Every chain hash is thus the key of a record in the store,
// and a chain can be resumed from its head alone.
type StoreHooks[T hashio.Hashable] struct {
	s *hashio.Store
	c hashio.Codec[T]
}

var _ Hooks[hashio.Hash] = &StoreHooks[hashio.Hash]{}

// NewStoreHooks produces hooks persisting entries in s, with items encoded by c.
func NewStoreHooks[T hashio.Hashable](s *hashio.Store, c hashio.Codec[T]) *StoreHooks[T] {
	return &StoreHooks[T]{s: s, c: c}
}

// Save implements Hooks.
func (sh *StoreHooks[T]) Save(ctx context.Context, h hashio.Hash, e Entry[T]) error {
	c := e.Item.ContentHash()
	ih, err := hashio.Put(ctx, sh.s, sh.c, e.Item)
	if err != nil {
		return errors.Wrap(err, "storing item")
	}
	if ih != c {
		return &hashio.UndefinedError{Msg: "item stored under " + ih.String() + " but has content hash " + c.String()}
	}
	if e.Parent.IsNone() {
		return nil
	}

	lh, err := sh.s.PutRaw(ctx, slices.Concat(c.Bytes(), e.Parent.Bytes()))
	if err != nil {
		return errors.Wrap(err, "storing link")
	}
	if lh != h {
		return &hashio.UndefinedError{Msg: "link stored under " + lh.String() + " but entry has chain hash " + h.String()}
	}
	return nil
}

// Load implements Hooks.
func (sh *StoreHooks[T]) Load(ctx context.Context, h hashio.Hash) (Entry[T], bool, error) {
	ok, err := sh.s.Has(ctx, h)
	if err != nil || !ok {
		return Entry[T]{}, false, err
	}

	raw, err := sh.s.GetRaw(ctx, h)
	if err != nil {
		return Entry[T]{}, false, err
	}
	if len(raw) == linkSize {
		if e, ok := sh.loadLink(ctx, raw); ok {
			return e, true, nil
		}
	}

	item, err := hashio.Get(ctx, sh.s, sh.c, h)
	if err != nil {
		return Entry[T]{}, false, errors.Wrapf(err, "loading item %s", h)
	}
	return Entry[T]{Item: item}, true, nil
}

// loadLink interprets raw as a link record.
// The boolean is false if it is not one,
// in which case raw may be an item record that happens to be link-sized.
func (sh *StoreHooks[T]) loadLink(ctx context.Context, raw []byte) (Entry[T], bool) {
	c, err := hashio.FromBytes(raw[:hashio.Size])
	if err != nil {
		return Entry[T]{}, false
	}
	parent, err := hashio.FromBytes(raw[hashio.Size:])
	if err != nil {
		return Entry[T]{}, false
	}
	if ok, err := sh.s.Has(ctx, c); err != nil || !ok {
		return Entry[T]{}, false
	}
	item, err := hashio.Get(ctx, sh.s, sh.c, c)
	if err != nil {
		return Entry[T]{}, false
	}
	return Entry[T]{Item: item, Parent: parent}, true
}
