package testutil

import (
	"context"
	"sort"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/hashio"
)

// AllHashes writes a random set of random records to an empty backend
// and makes sure that the right set of hashes comes back in a call to ListHashes.
func AllHashes(ctx context.Context, t *testing.T, backendFactory func() hashio.Backend) {
	if err := quick.Check(allHashesHelper(ctx, t, backendFactory), &quick.Config{MaxCount: 20}); err != nil {
		t.Error(err)
	}
}

func allHashesHelper(ctx context.Context, t *testing.T, backendFactory func() hashio.Backend) func([][]byte) bool {
	return func(records [][]byte) bool {
		var (
			backend = backendFactory()
			want    []string
		)
		for _, rec := range records {
			h, added, err := backend.Put(ctx, rec)
			if err != nil {
				t.Fatal(err)
			}
			if added {
				want = append(want, h.String())
			}
		}
		var got []string
		err := backend.ListHashes(ctx, hashio.None, func(h hashio.Hash) error {
			got = append(got, h.String())
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}

		sort.Strings(want)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Logf("mismatch (-want +got):\n%s", diff)
			return false
		}
		return true
	}
}
