package hashio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"reflect"

	"github.com/pkg/errors"
)

const (
	// RecordVersion is the version written into every model record.
	RecordVersion uint32 = 1

	// MinRecordVersion is the lowest version a model record may carry.
	MinRecordVersion uint32 = 1
)

// Field declares one field of a Model.
// Build Fields with ScalarField, ChildField,
// or one of the typed helpers such as StringField.
type Field[T any] struct {
	name     string
	child    bool
	typeHash Hash

	encode func(w *bytes.Buffer, v T) error

	// scalars
	read func(r io.Reader, v T) error

	// children
	load func(ctx context.Context, s *Store, h Hash, v T) error
	put  func(ctx context.Context, s *Store, v T) error
}

// ScalarField declares a field encoded inline in the record.
// The accessor returns a pointer to the field within v.
// The field's contribution to the type hash is the hash of its Go type name.
func ScalarField[T, F any](name string, field func(T) *F, write Writer[F], read Reader[F]) Field[T] {
	var zero F
	return Field[T]{
		name:     name,
		typeHash: HashString(fmt.Sprintf("%T", zero)),
		encode: func(w *bytes.Buffer, v T) error {
			return write(w, *field(v))
		},
		read: func(r io.Reader, v T) error {
			val, err := read(r)
			if err != nil {
				return err
			}
			*field(v) = val
			return nil
		},
	}
}

// ChildField declares a field stored as a value of its own.
// Only its content hash appears in the record.
func ChildField[T, C any](name string, c Codec[C], field func(T) *C) Field[T] {
	return Field[T]{
		name:     name,
		child:    true,
		typeHash: c.TypeHash(),
		encode: func(w *bytes.Buffer, v T) error {
			return writeChild(w, c, *field(v))
		},
		load: func(ctx context.Context, s *Store, h Hash, v T) error {
			val, err := Get(ctx, s, c, h)
			if err != nil {
				return err
			}
			*field(v) = val
			return nil
		},
		put: func(ctx context.Context, s *Store, v T) error {
			_, err := Put(ctx, s, c, *field(v))
			return err
		},
	}
}

func StringField[T any](name string, field func(T) *string) Field[T] {
	return ScalarField(name, field, WriteString, ReadString)
}

func BytesField[T any](name string, field func(T) *[]byte) Field[T] {
	return ScalarField(name, field, WriteBytes, ReadBytes)
}

func U8Field[T any](name string, field func(T) *uint8) Field[T] {
	return ScalarField(name, field, WriteU8, ReadU8)
}

func U32Field[T any](name string, field func(T) *uint32) Field[T] {
	return ScalarField(name, field, WriteU32, ReadU32)
}

func U64Field[T any](name string, field func(T) *uint64) Field[T] {
	return ScalarField(name, field, WriteU64, ReadU64)
}

func I64Field[T any](name string, field func(T) *int64) Field[T] {
	return ScalarField(name, field, WriteI64, ReadI64)
}

func BoolField[T any](name string, field func(T) *bool) Field[T] {
	return ScalarField(name, field, WriteBool, ReadBool)
}

// HashField declares an inline hash reference that is not loaded as a child.
// None is stored as zeros.
func HashField[T any](name string, field func(T) *Hash) Field[T] {
	return ScalarField(name, field, WriteHash, ReadOptionalHash)
}

// Model is a Codec derived from a declaration of fields.
// T is normally a pointer to a struct,
// and the field accessors return pointers into it.
//
// A model record is
//
//	version:u32 | type_hash | scalar fields... | child hashes...
//
// with scalars and children each in declared order.
//
// When a record fails to decode,
// the model's migrations are tried in order
// and the first success is returned.
type Model[T any] struct {
	name       string
	newFn      func() T
	scalars    []Field[T]
	children   []Field[T]
	migrations []Migration[T]
	typeHash   Hash
}

var _ Codec[struct{}] = &Model[struct{}]{}

// NewModel declares a model.
// The newFn function produces an empty value to decode into.
// Encoding a nil value of the model is an UndefinedError.
func NewModel[T any](name string, newFn func() T, fields ...Field[T]) *Model[T] {
	m := &Model[T]{name: name, newFn: newFn}
	for _, f := range fields {
		if f.child {
			m.children = append(m.children, f)
		} else {
			m.scalars = append(m.scalars, f)
		}
	}

	var buf bytes.Buffer
	for _, f := range m.scalars {
		buf.Write(f.typeHash.Bytes())
	}
	for _, f := range m.children {
		buf.Write(f.typeHash.Bytes())
	}
	m.typeHash = HashBytes(buf.Bytes())

	return m
}

// WithMigrations sets the ordered list of fallbacks
// tried when a record fails to decode as m.
// It returns m.
func (m *Model[T]) WithMigrations(migrations ...Migration[T]) *Model[T] {
	m.migrations = migrations
	return m
}

// Name returns the name m was declared with.
func (m *Model[T]) Name() string { return m.name }

// TypeHash implements Typeable.
// It captures the count, order, and types of m's fields.
func (m *Model[T]) TypeHash() Hash { return m.typeHash }

// Hash returns the content hash of v.
// It panics if v cannot be encoded.
func (m *Model[T]) Hash(v T) Hash { return HashOf[T](m, v) }

// Encode implements Codec.
func (m *Model[T]) Encode(w *bytes.Buffer, v T) error {
	if isNil(v) {
		return &UndefinedError{Msg: "nil " + m.name}
	}
	if err := WriteU32(w, RecordVersion); err != nil {
		return err
	}
	if err := WriteHash(w, m.typeHash); err != nil {
		return err
	}
	for _, f := range m.scalars {
		if err := f.encode(w, v); err != nil {
			return errors.Wrapf(err, "writing field %s", f.name)
		}
	}
	for _, f := range m.children {
		if err := f.encode(w, v); err != nil {
			return errors.Wrapf(err, "writing child %s", f.name)
		}
	}
	return nil
}

// PutChildren implements Codec.
func (m *Model[T]) PutChildren(ctx context.Context, s *Store, v T) error {
	for _, f := range m.children {
		if err := f.put(ctx, s, v); err != nil {
			return errors.Wrapf(err, "storing child %s", f.name)
		}
	}
	return nil
}

// Decode implements Codec.
func (m *Model[T]) Decode(ctx context.Context, s *Store, h Hash, r *bytes.Reader) (T, error) {
	v, err := m.decode(ctx, s, r)
	if err == nil {
		return v, nil
	}

	s.logger.Warn("could not decode record",
		"model", m.name,
		"type", m.typeHash.String(),
		"hash", h.String(),
		"err", err)

	for i, migrate := range m.migrations {
		mv, merr := migrate(ctx, s, h)
		if merr == nil {
			s.logger.Info("migrated record", "model", m.name, "hash", h.String(), "migration", i)
			return mv, nil
		}
		s.logger.Debug("migration failed", "model", m.name, "hash", h.String(), "migration", i, "err", merr)
	}

	var zero T
	return zero, err
}

func (m *Model[T]) decode(ctx context.Context, s *Store, r *bytes.Reader) (T, error) {
	var zero T

	version, err := ReadU32(r)
	if err != nil {
		return zero, err
	}
	if version < MinRecordVersion {
		return zero, &VersionError{Version: version}
	}

	typeHash, err := ReadHash(r)
	if err != nil {
		return zero, err
	}
	if typeHash != m.typeHash {
		return zero, &TypeError{Hash: typeHash}
	}

	v := m.newFn()
	for _, f := range m.scalars {
		if err := f.read(r, v); err != nil {
			return zero, errors.Wrapf(err, "reading field %s", f.name)
		}
	}

	childHashes := make([]Hash, len(m.children))
	for i, f := range m.children {
		ch, err := ReadHash(r)
		if err != nil {
			return zero, errors.Wrapf(err, "reading child hash %s", f.name)
		}
		childHashes[i] = ch
	}
	if err := checkTrailing(r); err != nil {
		return zero, err
	}

	for i, f := range m.children {
		if err := f.load(ctx, s, childHashes[i], v); err != nil {
			return zero, errors.Wrapf(err, "loading child %s", f.name)
		}
	}

	return v, nil
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
