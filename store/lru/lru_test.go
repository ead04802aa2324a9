package lru

import (
	"context"
	"testing"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/store/mem"
	"github.com/bobg/hashio/testutil"
)

func TestStore(t *testing.T) {
	s, err := New(mem.New(), 1000)
	if err != nil {
		t.Fatal(err)
	}
	testutil.ReadWrite(context.Background(), t, s)
}

func TestAllHashes(t *testing.T) {
	testutil.AllHashes(context.Background(), t, func() hashio.Backend {
		s, err := New(mem.New(), 2)
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}

func TestCacheHit(t *testing.T) {
	var (
		ctx    = context.Background()
		nested = mem.New()
	)
	s, err := New(nested, 10)
	if err != nil {
		t.Fatal(err)
	}

	h, _, err := s.Put(ctx, []byte("cached"))
	if err != nil {
		t.Fatal(err)
	}
	if !s.c.Contains(h) {
		t.Fatalf("record %s not cached after Put", h)
	}

	// A record added behind the cache's back is cached on first read.
	h2, _, err := nested.Put(ctx, []byte("uncached"))
	if err != nil {
		t.Fatal(err)
	}
	if s.c.Contains(h2) {
		t.Fatalf("record %s cached before any read", h2)
	}
	got, err := s.Get(ctx, h2)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "uncached" {
		t.Errorf("got %q, want %q", got, "uncached")
	}
	if !s.c.Contains(h2) {
		t.Errorf("record %s not cached after Get", h2)
	}
}

func TestGetCopies(t *testing.T) {
	ctx := context.Background()
	s, err := New(mem.New(), 10)
	if err != nil {
		t.Fatal(err)
	}

	h, _, err := s.Put(ctx, []byte("immutable"))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		got, err := s.Get(ctx, h)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "immutable" {
			t.Fatalf("read %d: got %q", i, got)
		}
		got[0] = 'X'
	}
}
