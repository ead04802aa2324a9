package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/store"
	"github.com/bobg/hashio/testutil"
)

func TestStore(t *testing.T) {
	testutil.ReadWrite(context.Background(), t, New(t.TempDir()))
}

func TestAllHashes(t *testing.T) {
	testutil.AllHashes(context.Background(), t, func() hashio.Backend {
		return New(t.TempDir())
	})
}

func TestLayout(t *testing.T) {
	var (
		ctx  = context.Background()
		root = t.TempDir()
		s    = New(root)
	)

	h, _, err := s.Put(ctx, []byte("layout"))
	if err != nil {
		t.Fatal(err)
	}

	hex := h.String()
	want := filepath.Join(root, hex[:2], hex[2:])
	if got := s.Path(h); got != want {
		t.Errorf("got path %s, want %s", got, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "layout" {
		t.Errorf("got %q at %s, want %q", data, want, "layout")
	}
	if got := hashio.HashBytes(data); got != h {
		t.Errorf("file %s has content hash %s", want, got)
	}

	if got := s.Path(hashio.None); got != "" {
		t.Errorf("got path %q for None, want empty", got)
	}
}

func TestIdempotentPut(t *testing.T) {
	var (
		ctx = context.Background()
		s   = New(t.TempDir())
	)

	h, added, err := s.Put(ctx, []byte("once"))
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Fatal("first Put did not add")
	}

	path := s.Path(h)
	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatal(err)
	}

	_, added, err = s.Put(ctx, []byte("once"))
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Error("second Put added")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(past) {
		t.Errorf("record rewritten: mtime %s, want %s", info.ModTime(), past)
	}
}

func TestInterruptedWrite(t *testing.T) {
	var (
		ctx = context.Background()
		s   = New(t.TempDir())
	)

	crash := errors.New("crash")
	rename = func(string, string) error { return crash }
	defer func() { rename = os.Rename }()

	h := hashio.HashBytes([]byte("interrupted"))
	if _, _, err := s.Put(ctx, []byte("interrupted")); !errors.Is(err, crash) {
		t.Fatalf("got error %v, want %v", err, crash)
	}

	if _, err := os.Stat(s.Path(h)); !os.IsNotExist(err) {
		t.Errorf("final path exists after interrupted write (err %v)", err)
	}
	if ok, err := s.Has(ctx, h); err != nil || ok {
		t.Errorf("Has: got %v, %v; want false, nil", ok, err)
	}
	if _, err := s.Get(ctx, h); !errors.Is(err, hashio.ErrNotFound) {
		t.Errorf("got error %v, want ErrNotFound", err)
	}

	var stale []string
	err := s.Stale(ctx, func(path string) error {
		stale = append(stale, path)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0] != s.Path(h)+tempSuffix {
		t.Errorf("got stale files %v, want [%s]", stale, s.Path(h)+tempSuffix)
	}

	// The temp file is not a record.
	err = s.ListHashes(ctx, hashio.None, func(got hashio.Hash) error {
		t.Errorf("listed %s", got)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// A later attempt succeeds alongside the leftover.
	rename = os.Rename
	if _, added, err := s.Put(ctx, []byte("interrupted")); err != nil || !added {
		t.Fatalf("retry: added=%v err=%v", added, err)
	}
	got, err := s.Get(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "interrupted" {
		t.Errorf("got %q after retry", got)
	}
}

// A second writer of the same record runs between the first writer's write and rename.
func TestConcurrentPut(t *testing.T) {
	data := []byte("contended")

	cases := map[string]func(from, to string) error{
		"first rename succeeds": os.Rename,
		"first rename fails":    func(string, string) error { return errors.New("lost race") },
	}
	for name, firstRename := range cases {
		t.Run(name, func(t *testing.T) {
			var (
				ctx = context.Background()
				s   = New(t.TempDir())
			)

			var (
				otherAdded bool
				otherErr   error
			)
			rename = func(from, to string) error {
				rename = os.Rename
				_, otherAdded, otherErr = s.Put(ctx, data)
				return firstRename(from, to)
			}
			defer func() { rename = os.Rename }()

			h, _, err := s.Put(ctx, data)
			if err != nil {
				t.Fatal(err)
			}
			if otherErr != nil {
				t.Fatal(otherErr)
			}
			if !otherAdded {
				t.Error("second writer did not add")
			}

			got, err := s.Get(ctx, h)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != string(data) {
				t.Errorf("got %q, want %q", got, data)
			}

			err = s.Stale(ctx, func(path string) error {
				t.Errorf("temp file %s left behind", path)
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	root := t.TempDir()
	b, err := store.Create(context.Background(), "file", map[string]interface{}{"root": root})
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := b.(*Store); !ok || s.Root() != root {
		t.Errorf("got %#v, want a file store at %s", b, root)
	}

	if _, err := store.Create(context.Background(), "file", map[string]interface{}{}); err == nil {
		t.Error("got no error without a root")
	}
}
