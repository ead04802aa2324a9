package testutil

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/bobg/hashio"
)

// ReadWrite permits testing a Backend implementation
// by writing some records to it,
// then reading them back out to make sure they're the same.
// It also checks that rewriting a record is a no-op
// and that a missing record is reported as hashio.ErrNotFound.
func ReadWrite(ctx context.Context, t *testing.T, backend hashio.Backend) {
	records := [][]byte{
		[]byte("hello"),
		[]byte(""),
		bytes.Repeat([]byte{0xff, 0x00}, 4096),
	}

	var hashes []hashio.Hash
	for _, rec := range records {
		h, added, err := backend.Put(ctx, rec)
		if err != nil {
			t.Fatal(err)
		}
		if !added {
			t.Errorf("record %s not added on first put", h)
		}
		if want := hashio.HashBytes(rec); h != want {
			t.Errorf("got hash %s, want %s", h, want)
		}
		hashes = append(hashes, h)
	}

	for i, h := range hashes {
		got, err := backend.Get(ctx, h)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, records[i]) {
			t.Errorf("record %d: got %x, want %x", i, got, records[i])
		}
		ok, err := backend.Has(ctx, h)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Errorf("record %s not reported present", h)
		}

		h2, added, err := backend.Put(ctx, records[i])
		if err != nil {
			t.Fatal(err)
		}
		if added {
			t.Errorf("record %s added twice", h)
		}
		if h2 != h {
			t.Errorf("second put returned %s, want %s", h2, h)
		}
	}

	missing := hashio.HashString("no such record")
	if _, err := backend.Get(ctx, missing); !errors.Is(err, hashio.ErrNotFound) {
		t.Errorf("got error %v for missing record, want ErrNotFound", err)
	}
	ok, err := backend.Has(ctx, missing)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("missing record reported present")
	}
}
