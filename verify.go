package hashio

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CorruptError reports a record whose content does not hash to the hash it is stored under.
type CorruptError struct {
	Hash Hash // where the record is stored
	Got  Hash // what its content hashes to
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("record %s has content hash %s", e.Hash, e.Got)
}

// Verify reads every record in g and checks that its content hashes to its key.
// Up to concurrency records are checked at once
// (no limit if concurrency is not positive).
//
// For each record that cannot be read or is corrupt,
// Verify calls f, serially.
// If f returns an error, Verify stops and returns it.
func Verify(ctx context.Context, g Getter, concurrency int, f func(Hash, error) error) error {
	eg, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}

	var mu sync.Mutex

	err := g.ListHashes(ctx, None, func(h Hash) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		eg.Go(func() error {
			data, err := g.Get(ctx, h)
			if err == nil {
				if got := HashBytes(data); got != h {
					err = &CorruptError{Hash: h, Got: got}
				}
			}
			if err == nil {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			return f(h, err)
		})
		return nil
	})
	if werr := eg.Wait(); werr != nil {
		return werr
	}
	return err
}
