package hashio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
)

// Getter is a read-only Backend (qv).
type Getter interface {
	// Get gets a record by its hash.
	// A missing record is reported as ErrNotFound.
	Get(context.Context, Hash) ([]byte, error)

	// Has tells whether a record is present.
	Has(context.Context, Hash) (bool, error)

	// ListHashes calls a function for each record hash in the backend in ascending order,
	// beginning with the first hash _after_ the specified one.
	//
	// If the callback function returns an error,
	// ListHashes exits with that error.
	ListHashes(context.Context, Hash, func(Hash) error) error
}

// Backend stores byte records keyed by the SHA3-256 hash of their content.
// Records are never mutated or deleted once written.
type Backend interface {
	Getter

	// Put adds data to the backend if it was not already present.
	// It returns the data's hash and a boolean that is true iff the record had to be added.
	// A record under a given hash is either wholly present or absent,
	// never partially written.
	Put(ctx context.Context, data []byte) (h Hash, added bool, err error)
}

// Store is a content-addressable object store.
// It maps typed values to records in a Backend,
// storing the children of composite values before the values themselves,
// so that whenever a record is visible all of its dependencies are too.
type Store struct {
	b      Backend
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for diagnostics.
// The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New produces a Store writing records to b.
func New(b Backend, opts ...Option) *Store {
	s := &Store{b: b}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Backend returns the Backend underlying s.
func (s *Store) Backend() Backend { return s.b }

// Logger returns the logger of s.
func (s *Store) Logger() *slog.Logger { return s.logger }

// Has tells whether a record for h exists.
func (s *Store) Has(ctx context.Context, h Hash) (bool, error) {
	ok, err := s.b.Has(ctx, h)
	if err != nil {
		return false, &IOError{Op: "checking", Hash: h, Err: err}
	}
	return ok, nil
}

// GetRaw returns the record stored under h.
// Failure is reported as an IOError and logged.
func (s *Store) GetRaw(ctx context.Context, h Hash) ([]byte, error) {
	data, err := s.b.Get(ctx, h)
	if err != nil {
		s.logger.Warn("could not load record", "hash", h.String(), "err", err)
		return nil, &IOError{Op: "loading", Hash: h, Err: err}
	}
	return data, nil
}

// PutRaw stores a record as-is and returns its hash.
func (s *Store) PutRaw(ctx context.Context, data []byte) (Hash, error) {
	h, _, err := s.b.Put(ctx, data)
	if err != nil {
		return None, &IOError{Op: "storing", Hash: HashBytes(data), Err: err}
	}
	return h, nil
}

// Codec describes how values of type T are stored.
//
// The content hash of a value is the hash of its encoded record
// (see HashOf).
// A Codec's children are the values its records refer to by hash;
// PutChildren must store each of them.
type Codec[T any] interface {
	Typeable

	// Encode writes the record for v.
	Encode(w *bytes.Buffer, v T) error

	// Decode parses a record,
	// loading children from s as needed.
	// The hash of the record is h.
	Decode(ctx context.Context, s *Store, h Hash, r *bytes.Reader) (T, error)

	// PutChildren stores every child of v in s.
	PutChildren(ctx context.Context, s *Store, v T) error
}

// Encode returns the record of v.
func Encode[T any](c Codec[T], v T) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := c.Encode(buf, v); err != nil {
		return nil, errors.Wrap(err, "encoding record")
	}
	return buf.Bytes(), nil
}

// HashOf computes the content hash of v:
// the hash of its record.
// It panics if v cannot be encoded.
func HashOf[T any](c Codec[T], v T) Hash {
	h, err := hashOf(c, v)
	if err != nil {
		panic(err)
	}
	return h
}

func hashOf[T any](c Codec[T], v T) (Hash, error) {
	rec, err := Encode(c, v)
	if err != nil {
		return None, err
	}
	return HashBytes(rec), nil
}

// writeChild writes the content hash of the child v.
func writeChild[T any](w *bytes.Buffer, c Codec[T], v T) error {
	h, err := hashOf(c, v)
	if err != nil {
		return err
	}
	return WriteHash(w, h)
}

// Put stores v in s, children first.
// If a record for v's hash already exists,
// Put returns immediately without rewriting or revalidating it.
func Put[T any](ctx context.Context, s *Store, c Codec[T], v T) (Hash, error) {
	rec, err := Encode(c, v)
	if err != nil {
		return None, err
	}
	h := HashBytes(rec)

	ok, err := s.Has(ctx, h)
	if err != nil {
		return None, err
	}
	if ok {
		return h, nil
	}

	if err = c.PutChildren(ctx, s, v); err != nil {
		return None, errors.Wrapf(err, "storing children of %s", h)
	}

	got, _, err := s.b.Put(ctx, rec)
	if err != nil {
		return None, &IOError{Op: "storing", Hash: h, Err: err}
	}
	if got != h {
		return None, &UndefinedError{Msg: fmt.Sprintf("backend stored %s under %s", h, got)}
	}
	return h, nil
}

// Get loads the value of type T stored under h.
func Get[T any](ctx context.Context, s *Store, c Codec[T], h Hash) (T, error) {
	data, err := s.GetRaw(ctx, h)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.Decode(ctx, s, h, bytes.NewReader(data))
}
