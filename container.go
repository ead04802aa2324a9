package hashio

import (
	"bytes"
	"cmp"
	"context"
	"maps"
	"slices"

	"github.com/pkg/errors"
)

// containerFormat is the leading u32 of every container record.
// It is reserved: written as 1 and not interpreted on read.
const containerFormat = 1

var (
	vecTypeHash = HashString("Vec")
	mapTypeHash = HashString("BTreeMap")
)

// SliceCodec stores a homogeneous sequence.
// Each element is stored as a value of its own;
// the sequence's record is
//
//	format:u32 | count:u32 | hash(elem_1) ... hash(elem_n)
func SliceCodec[T any](elem Codec[T]) Codec[[]T] {
	return sliceCodec[T]{elem: elem}
}

type sliceCodec[T any] struct {
	elem Codec[T]
}

func (c sliceCodec[T]) TypeHash() Hash {
	return HashBytes(slices.Concat(vecTypeHash.Bytes(), c.elem.TypeHash().Bytes()))
}

func (c sliceCodec[T]) Encode(w *bytes.Buffer, v []T) error {
	if err := WriteU32(w, containerFormat); err != nil {
		return err
	}
	if err := WriteU32(w, uint32(len(v))); err != nil {
		return err
	}
	for _, elem := range v {
		if err := writeChild(w, c.elem, elem); err != nil {
			return err
		}
	}
	return nil
}

func (c sliceCodec[T]) Decode(ctx context.Context, s *Store, h Hash, r *bytes.Reader) ([]T, error) {
	n, err := readContainerHeader(r, 1)
	if err != nil {
		return nil, err
	}
	hashes := make([]Hash, 0, n)
	for i := uint32(0); i < n; i++ {
		eh, err := ReadHash(r)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, eh)
	}
	if err = checkTrailing(r); err != nil {
		return nil, err
	}

	var result []T
	for i, eh := range hashes {
		elem, err := Get(ctx, s, c.elem, eh)
		if err != nil {
			return nil, errors.Wrapf(err, "loading element %d of %s", i, h)
		}
		result = append(result, elem)
	}
	return result, nil
}

func (c sliceCodec[T]) PutChildren(ctx context.Context, s *Store, v []T) error {
	for i, elem := range v {
		if _, err := Put(ctx, s, c.elem, elem); err != nil {
			return errors.Wrapf(err, "storing element %d", i)
		}
	}
	return nil
}

// MapCodec stores a map ordered by key.
// Every key and every value is stored as a value of its own;
// the map's record is
//
//	format:u32 | count:u32 | hash(key_1) hash(val_1) ... hash(key_n) hash(val_n)
//
// with entries in ascending key order,
// so equal maps always produce equal records.
func MapCodec[K cmp.Ordered, V any](key Codec[K], val Codec[V]) Codec[map[K]V] {
	return mapCodec[K, V]{key: key, val: val}
}

type mapCodec[K cmp.Ordered, V any] struct {
	key Codec[K]
	val Codec[V]
}

func (c mapCodec[K, V]) TypeHash() Hash {
	return HashBytes(slices.Concat(mapTypeHash.Bytes(), c.key.TypeHash().Bytes(), c.val.TypeHash().Bytes()))
}

func (c mapCodec[K, V]) Encode(w *bytes.Buffer, m map[K]V) error {
	if err := WriteU32(w, containerFormat); err != nil {
		return err
	}
	if err := WriteU32(w, uint32(len(m))); err != nil {
		return err
	}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if err := writeChild(w, c.key, k); err != nil {
			return err
		}
		if err := writeChild(w, c.val, m[k]); err != nil {
			return err
		}
	}
	return nil
}

func (c mapCodec[K, V]) Decode(ctx context.Context, s *Store, h Hash, r *bytes.Reader) (map[K]V, error) {
	n, err := readContainerHeader(r, 2)
	if err != nil {
		return nil, err
	}
	type pair struct{ k, v Hash }
	pairs := make([]pair, 0, n)
	for i := uint32(0); i < n; i++ {
		kh, err := ReadHash(r)
		if err != nil {
			return nil, err
		}
		vh, err := ReadHash(r)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair{k: kh, v: vh})
	}
	if err = checkTrailing(r); err != nil {
		return nil, err
	}

	var result map[K]V
	if len(pairs) > 0 {
		result = make(map[K]V, len(pairs))
	}
	for i, p := range pairs {
		k, err := Get(ctx, s, c.key, p.k)
		if err != nil {
			return nil, errors.Wrapf(err, "loading key %d of %s", i, h)
		}
		v, err := Get(ctx, s, c.val, p.v)
		if err != nil {
			return nil, errors.Wrapf(err, "loading value %d of %s", i, h)
		}
		result[k] = v
	}
	return result, nil
}

func (c mapCodec[K, V]) PutChildren(ctx context.Context, s *Store, m map[K]V) error {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if _, err := Put(ctx, s, c.key, k); err != nil {
			return errors.Wrapf(err, "storing key %v", k)
		}
		if _, err := Put(ctx, s, c.val, m[k]); err != nil {
			return errors.Wrapf(err, "storing value for key %v", k)
		}
	}
	return nil
}

// readContainerHeader reads the format and count words of a container record
// and checks that r holds at least count*perEntry hashes.
func readContainerHeader(r *bytes.Reader, perEntry int) (uint32, error) {
	if _, err := ReadU32(r); err != nil {
		return 0, err
	}
	n, err := ReadU32(r)
	if err != nil {
		return 0, err
	}
	if int64(n)*int64(perEntry*Size) > int64(r.Len()) {
		return 0, &ParseError{Err: errors.Errorf("container claims %d entries but holds %d bytes", n, r.Len())}
	}
	return n, nil
}
