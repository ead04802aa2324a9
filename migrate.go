package hashio

import (
	"context"

	"github.com/pkg/errors"
)

// Migration tries to produce a T from the record stored under a hash
// that could not be decoded as T directly,
// typically by reading it as an older shape and converting it.
type Migration[T any] func(ctx context.Context, s *Store, h Hash) (T, error)

// ErrNoMigration is returned by an empty Chain.
var ErrNoMigration = errors.New("no migration applies")

// Convert produces a Migration that loads the record from the same store
// as an Old and converts it with conv.
func Convert[Old, New any](old Codec[Old], conv func(Old) New) Migration[New] {
	return func(ctx context.Context, s *Store, h Hash) (New, error) {
		o, err := Get(ctx, s, old, h)
		if err != nil {
			var zero New
			return zero, err
		}
		return conv(o), nil
	}
}

// Chain combines migrations into one that tries each in order
// and returns the first success.
// If all fail, the last error is returned.
func Chain[T any](migrations ...Migration[T]) Migration[T] {
	return func(ctx context.Context, s *Store, h Hash) (T, error) {
		err := ErrNoMigration
		for _, m := range migrations {
			v, merr := m(ctx, s, h)
			if merr == nil {
				return v, nil
			}
			err = merr
		}
		var zero T
		return zero, err
	}
}
