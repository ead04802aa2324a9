// Package legacy reads records written by the version-1 object store.
//
// Version-1 records live at the same sharded paths as current ones
// but have no type hash:
//
//	version:u32 (=0) | scalar fields... | child hashes...
//
// Current code never writes this format.
// A legacy Store is consulted only by migrations (see Migrate),
// which convert what it reads into current values.
// Storing a migrated value writes it in the current format.
package legacy

import (
	"bytes"
	"context"
	"io"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/store/file"
)

// Version is the record version of the legacy format.
const Version uint32 = 0

// Store is a read-only view of a legacy object store.
type Store struct {
	g      hashio.Getter
	logger *slog.Logger
}

// NewStore produces a Store reading legacy records from g.
// A nil logger means slog.Default().
func NewStore(g hashio.Getter, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{g: g, logger: logger}
}

// Open produces a Store reading the legacy file hierarchy under root.
func Open(root string, logger *slog.Logger) *Store {
	return NewStore(file.New(root), logger)
}

// GetRaw returns the record stored under h.
func (s *Store) GetRaw(ctx context.Context, h hashio.Hash) ([]byte, error) {
	data, err := s.g.Get(ctx, h)
	if err != nil {
		s.logger.Debug("could not load legacy record", "hash", h.String(), "err", err)
		return nil, &hashio.IOError{Op: "loading legacy", Hash: h, Err: err}
	}
	return data, nil
}

// Codec decodes legacy records into values of type T.
type Codec[T any] interface {
	Decode(ctx context.Context, s *Store, r *bytes.Reader) (T, error)
}

// Get loads the legacy value of type T stored under h.
func Get[T any](ctx context.Context, s *Store, c Codec[T], h hashio.Hash) (T, error) {
	data, err := s.GetRaw(ctx, h)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.Decode(ctx, s, bytes.NewReader(data))
}

// Migrate produces a migration that loads the record for a hash
// from the legacy store ls as an Old
// and converts it with conv.
// The current store passed to the migration is not consulted.
func Migrate[Old, New any](ls *Store, c Codec[Old], conv func(Old) New) hashio.Migration[New] {
	return func(ctx context.Context, _ *hashio.Store, h hashio.Hash) (New, error) {
		old, err := Get(ctx, ls, c, h)
		if err != nil {
			var zero New
			return zero, errors.Wrap(err, "reading legacy record")
		}
		return conv(old), nil
	}
}

// String decodes a legacy text record: len:u32 | utf-8 bytes.
var String Codec[string] = textCodec{}

type textCodec struct{}

func (textCodec) Decode(_ context.Context, _ *Store, r *bytes.Reader) (string, error) {
	v, err := hashio.ReadString(r)
	if err != nil {
		return "", err
	}
	if r.Len() > 0 {
		return "", &hashio.ParseError{Err: errors.New("trailing bytes after legacy record")}
	}
	return v, nil
}

// Field declares one field of a legacy Model.
type Field[T any] struct {
	name  string
	child bool
	read  func(r io.Reader, v T) error
	load  func(ctx context.Context, s *Store, h hashio.Hash, v T) error
}

// ScalarField declares a field encoded inline in the legacy record.
func ScalarField[T, F any](name string, field func(T) *F, read hashio.Reader[F]) Field[T] {
	return Field[T]{
		name: name,
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

// ChildField declares a field stored as a legacy value of its own.
func ChildField[T, C any](name string, c Codec[C], field func(T) *C) Field[T] {
	return Field[T]{
		name:  name,
		child: true,
		load: func(ctx context.Context, s *Store, h hashio.Hash, v T) error {
			val, err := Get(ctx, s, c, h)
			if err != nil {
				return err
			}
			*field(v) = val
			return nil
		},
	}
}

func StringField[T any](name string, field func(T) *string) Field[T] {
	return ScalarField(name, field, hashio.ReadString)
}

func U32Field[T any](name string, field func(T) *uint32) Field[T] {
	return ScalarField(name, field, hashio.ReadU32)
}

func I64Field[T any](name string, field func(T) *int64) Field[T] {
	return ScalarField(name, field, hashio.ReadI64)
}

func BoolField[T any](name string, field func(T) *bool) Field[T] {
	return ScalarField(name, field, hashio.ReadBool)
}

// Model decodes legacy records of a declared shape.
type Model[T any] struct {
	name     string
	newFn    func() T
	scalars  []Field[T]
	children []Field[T]
}

var _ Codec[struct{}] = &Model[struct{}]{}

// NewModel declares a legacy model.
// Scalars precede children in the record regardless of declaration order,
// each group in declared order.
func NewModel[T any](name string, newFn func() T, fields ...Field[T]) *Model[T] {
	m := &Model[T]{name: name, newFn: newFn}
	for _, f := range fields {
		if f.child {
			m.children = append(m.children, f)
		} else {
			m.scalars = append(m.scalars, f)
		}
	}
	return m
}

// Decode implements Codec.
func (m *Model[T]) Decode(ctx context.Context, s *Store, r *bytes.Reader) (T, error) {
	var zero T

	version, err := hashio.ReadU32(r)
	if err != nil {
		return zero, err
	}
	if version != Version {
		return zero, &hashio.VersionError{Version: version}
	}

	v := m.newFn()
	for _, f := range m.scalars {
		if err := f.read(r, v); err != nil {
			return zero, errors.Wrapf(err, "reading legacy %s field %s", m.name, f.name)
		}
	}

	hashes := make([]hashio.Hash, len(m.children))
	for i, f := range m.children {
		h, err := hashio.ReadHash(r)
		if err != nil {
			return zero, errors.Wrapf(err, "reading legacy %s child hash %s", m.name, f.name)
		}
		hashes[i] = h
	}
	if r.Len() > 0 {
		return zero, &hashio.ParseError{Err: errors.Errorf("%d trailing bytes after legacy %s record", r.Len(), m.name)}
	}

	for i, f := range m.children {
		if err := f.load(ctx, s, hashes[i], v); err != nil {
			return zero, errors.Wrapf(err, "loading legacy %s child %s", m.name, f.name)
		}
	}
	return v, nil
}
