package hashio_test

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/store/mem"
)

type inner struct {
	Name  string
	Score int64
}

var innerModel = hashio.NewModel("inner", func() *inner { return new(inner) },
	hashio.StringField("name", func(v *inner) *string { return &v.Name }),
	hashio.I64Field("score", func(v *inner) *int64 { return &v.Score }),
)

type outer struct {
	ID    uint32
	Label string
	Inner *inner
	Items []*inner
	Attrs map[string]string
	Note  []byte
}

func newOuterModel(migrations ...hashio.Migration[*outer]) *hashio.Model[*outer] {
	return hashio.NewModel("outer", func() *outer { return new(outer) },
		hashio.U32Field("id", func(v *outer) *uint32 { return &v.ID }),
		hashio.ChildField("label", hashio.String, func(v *outer) *string { return &v.Label }),
		hashio.ChildField("inner", innerModel, func(v *outer) **inner { return &v.Inner }),
		hashio.ChildField("items", hashio.SliceCodec[*inner](innerModel), func(v *outer) *[]*inner { return &v.Items }),
		hashio.ChildField("attrs", hashio.MapCodec(hashio.String, hashio.String), func(v *outer) *map[string]string { return &v.Attrs }),
		hashio.BytesField("note", func(v *outer) *[]byte { return &v.Note }),
	).WithMigrations(migrations...)
}

func sampleOuter() *outer {
	return &outer{
		ID:    17,
		Label: "sample",
		Inner: &inner{Name: "core", Score: -3},
		Items: []*inner{{Name: "a", Score: 1}, {Name: "b", Score: 2}},
		Attrs: map[string]string{"z": "last", "a": "first", "m": "middle"},
		Note:  []byte{0, 1, 2},
	}
}

// recorder is a backend that remembers the order of records added to it.
type recorder struct {
	*mem.Store
	added []hashio.Hash
	puts  int
}

func (r *recorder) Put(ctx context.Context, data []byte) (hashio.Hash, bool, error) {
	r.puts++
	h, added, err := r.Store.Put(ctx, data)
	if added {
		r.added = append(r.added, h)
	}
	return h, added, err
}

func TestRoundTrip(t *testing.T) {
	var (
		ctx   = context.Background()
		s     = hashio.New(mem.New())
		model = newOuterModel()
		want  = sampleOuter()
	)

	h, err := hashio.Put(ctx, s, model, want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := hashio.Get(ctx, s, model, h)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	data, err := s.GetRaw(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	if got := hashio.HashBytes(data); got != h {
		t.Errorf("record stored under %s hashes to %s", h, got)
	}
}

func TestEmptyContainers(t *testing.T) {
	var (
		ctx   = context.Background()
		s     = hashio.New(mem.New())
		model = newOuterModel()
		want  = &outer{Inner: &inner{}}
	)

	h, err := hashio.Put(ctx, s, model, want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := hashio.Get(ctx, s, model, h)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Items) != 0 || len(got.Attrs) != 0 || len(got.Note) != 0 {
		t.Errorf("got non-empty containers: %+v", got)
	}
}

func TestDedup(t *testing.T) {
	var (
		ctx   = context.Background()
		rec   = &recorder{Store: mem.New()}
		s     = hashio.New(rec)
		model = newOuterModel()
	)

	h1, err := hashio.Put(ctx, s, model, sampleOuter())
	if err != nil {
		t.Fatal(err)
	}
	n := rec.Len()
	puts := rec.puts

	h2, err := hashio.Put(ctx, s, model, sampleOuter())
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("equal values stored under %s and %s", h1, h2)
	}
	if rec.Len() != n {
		t.Errorf("second put grew the store from %d to %d records", n, rec.Len())
	}
	if rec.puts != puts {
		t.Errorf("second put wrote %d records, want 0", rec.puts-puts)
	}
}

func TestChildrenFirst(t *testing.T) {
	var (
		ctx   = context.Background()
		rec   = &recorder{Store: mem.New()}
		s     = hashio.New(rec)
		model = newOuterModel()
		v     = sampleOuter()
	)

	h, err := hashio.Put(ctx, s, model, v)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.added) == 0 || rec.added[len(rec.added)-1] != h {
		t.Fatalf("parent %s was not written last: %v", h, rec.added)
	}

	for _, child := range []hashio.Hash{
		hashio.HashOf(hashio.String, v.Label),
		innerModel.Hash(v.Inner),
		innerModel.Hash(v.Items[0]),
		innerModel.Hash(v.Items[1]),
		hashio.HashOf(hashio.SliceCodec[*inner](innerModel), v.Items),
		hashio.HashOf(hashio.String, "middle"),
	} {
		i := slices.Index(rec.added, child)
		if i < 0 {
			t.Errorf("child %s not stored", child)
		} else if i >= len(rec.added)-1 {
			t.Errorf("child %s stored after its parent", child)
		}
	}
}

func TestMapOrder(t *testing.T) {
	c := hashio.MapCodec(hashio.String, hashio.String)

	m1 := map[string]string{}
	m2 := map[string]string{}
	keys := []string{"delta", "alpha", "charlie", "bravo"}
	for _, k := range keys {
		m1[k] = k + "!"
	}
	for _, k := range slices.Backward(keys) {
		m2[k] = k + "!"
	}
	if hashio.HashOf(c, m1) != hashio.HashOf(c, m2) {
		t.Error("equal maps have different hashes")
	}

	rec, err := hashio.Encode(c, m1)
	if err != nil {
		t.Fatal(err)
	}
	want := new(bytes.Buffer)
	hashio.WriteU32(want, 1)
	hashio.WriteU32(want, 4)
	for _, k := range []string{"alpha", "bravo", "charlie", "delta"} {
		hashio.WriteHash(want, hashio.HashOf(hashio.String, k))
		hashio.WriteHash(want, hashio.HashOf(hashio.String, k+"!"))
	}
	if !bytes.Equal(rec, want.Bytes()) {
		t.Errorf("got record %x, want %x", rec, want.Bytes())
	}
}

func TestTypeHashes(t *testing.T) {
	var (
		hstring = hashio.HashString("string")
		hint64  = hashio.HashString("int64")
	)

	want := hashio.HashBytes(slices.Concat(hstring.Bytes(), hint64.Bytes()))
	if got := innerModel.TypeHash(); got != want {
		t.Errorf("inner: got %s, want %s", got, want)
	}

	want = hashio.HashBytes(slices.Concat(hashio.HashString("Vec").Bytes(), innerModel.TypeHash().Bytes()))
	if got := hashio.SliceCodec[*inner](innerModel).TypeHash(); got != want {
		t.Errorf("slice: got %s, want %s", got, want)
	}

	str := hashio.HashString("String")
	want = hashio.HashBytes(slices.Concat(hashio.HashString("BTreeMap").Bytes(), str.Bytes(), str.Bytes()))
	if got := hashio.MapCodec(hashio.String, hashio.String).TypeHash(); got != want {
		t.Errorf("map: got %s, want %s", got, want)
	}

	if innerModel.TypeHash() == newOuterModel().TypeHash() {
		t.Error("different models have the same type hash")
	}
}

func TestRecordLayout(t *testing.T) {
	v := &inner{Name: "n", Score: 5}
	rec, err := hashio.Encode[*inner](innerModel, v)
	if err != nil {
		t.Fatal(err)
	}

	want := new(bytes.Buffer)
	hashio.WriteU32(want, hashio.RecordVersion)
	hashio.WriteHash(want, innerModel.TypeHash())
	hashio.WriteString(want, "n")
	hashio.WriteI64(want, 5)
	if !bytes.Equal(rec, want.Bytes()) {
		t.Errorf("got record %x, want %x", rec, want.Bytes())
	}
}

func TestTypeMismatch(t *testing.T) {
	var (
		ctx = context.Background()
		s   = hashio.New(mem.New())
	)

	h, err := hashio.Put(ctx, s, innerModel, &inner{Name: "x"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = hashio.Get(ctx, s, newOuterModel(), h)

	var terr *hashio.TypeError
	if !errors.As(err, &terr) {
		t.Fatalf("got %v, want a type error", err)
	}
	if terr.Hash != innerModel.TypeHash() {
		t.Errorf("type error reports %s, want %s", terr.Hash, innerModel.TypeHash())
	}
}

func TestNilChild(t *testing.T) {
	var (
		ctx   = context.Background()
		b     = mem.New()
		s     = hashio.New(b)
		model = newOuterModel()
	)

	cases := map[string]*outer{
		"nil child":   {Label: "x"},
		"nil element": {Label: "x", Inner: &inner{}, Items: []*inner{{Name: "a"}, nil}},
	}
	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := hashio.Put(ctx, s, model, v)
			var uerr *hashio.UndefinedError
			if !errors.As(err, &uerr) {
				t.Fatalf("got %v, want an undefined error", err)
			}
			if b.Len() != 0 {
				t.Errorf("stored %d records", b.Len())
			}
		})
	}

	if _, err := hashio.Put[*inner](ctx, s, innerModel, nil); err == nil {
		t.Error("stored a nil value")
	}
}

func TestDecodeErrors(t *testing.T) {
	var (
		ctx = context.Background()
		s   = hashio.New(mem.New())
	)

	good, err := hashio.Encode[*inner](innerModel, &inner{Name: "x", Score: 1})
	if err != nil {
		t.Fatal(err)
	}

	versionZero := slices.Clone(good)
	versionZero[3] = 0

	cases := []struct {
		name string
		rec  []byte
		want hashio.Kind
	}{
		{"version", versionZero, hashio.KindVersion},
		{"truncated", good[:len(good)-1], hashio.KindParse},
		{"trailing", append(slices.Clone(good), 0), hashio.KindParse},
		{"empty", []byte{}, hashio.KindParse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := s.PutRaw(ctx, tc.rec)
			if err != nil {
				t.Fatal(err)
			}
			_, err = hashio.Get(ctx, s, innerModel, h)
			if got := hashio.KindOf(err); got != tc.want {
				t.Errorf("got %v (kind %s), want kind %s", err, got, tc.want)
			}
		})
	}
}

func TestMissing(t *testing.T) {
	var (
		ctx        = context.Background()
		s          = hashio.New(mem.New())
		migrations int
	)

	model := newOuterModel(func(context.Context, *hashio.Store, hashio.Hash) (*outer, error) {
		migrations++
		return nil, errors.New("no")
	})

	_, err := hashio.Get(ctx, s, model, hashio.HashString("absent"))
	if hashio.KindOf(err) != hashio.KindIO {
		t.Errorf("got %v, want an I/O error", err)
	}
	if !errors.Is(err, hashio.ErrNotFound) {
		t.Errorf("got %v, want it to wrap ErrNotFound", err)
	}
	if migrations != 0 {
		t.Errorf("missing record triggered %d migrations", migrations)
	}
}

type outerV0 struct {
	ID    uint32
	Label string
}

var outerV0Model = hashio.NewModel("outerV0", func() *outerV0 { return new(outerV0) },
	hashio.U32Field("id", func(v *outerV0) *uint32 { return &v.ID }),
	hashio.StringField("label", func(v *outerV0) *string { return &v.Label }),
)

func TestMigration(t *testing.T) {
	var (
		ctx        = context.Background()
		s          = hashio.New(mem.New())
		migrations int
	)

	convert := hashio.Convert[*outerV0, *outer](outerV0Model, func(old *outerV0) *outer {
		return &outer{ID: old.ID, Label: old.Label, Inner: &inner{}}
	})
	model := newOuterModel(
		func(context.Context, *hashio.Store, hashio.Hash) (*outer, error) {
			migrations++
			return nil, errors.New("not this one")
		},
		func(ctx context.Context, s *hashio.Store, h hashio.Hash) (*outer, error) {
			migrations++
			return convert(ctx, s, h)
		},
	)

	oldHash, err := hashio.Put(ctx, s, outerV0Model, &outerV0{ID: 3, Label: "old"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := hashio.Get(ctx, s, model, oldHash)
	if err != nil {
		t.Fatal(err)
	}
	want := &outer{ID: 3, Label: "old", Inner: &inner{}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if migrations != 2 {
		t.Errorf("got %d migration attempts, want 2", migrations)
	}

	newHash, err := hashio.Put(ctx, s, model, got)
	if err != nil {
		t.Fatal(err)
	}
	migrations = 0
	got2, err := hashio.Get(ctx, s, model, newHash)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got2); diff != "" {
		t.Errorf("mismatch after re-store (-want +got):\n%s", diff)
	}
	if migrations != 0 {
		t.Errorf("re-stored value needed %d migration attempts", migrations)
	}
}

func TestMigrationExhausted(t *testing.T) {
	var (
		ctx = context.Background()
		s   = hashio.New(mem.New())
	)

	model := newOuterModel(func(context.Context, *hashio.Store, hashio.Hash) (*outer, error) {
		return nil, &hashio.ParseError{Err: errors.New("migration failed too")}
	})

	h, err := hashio.Put(ctx, s, innerModel, &inner{Name: "x"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = hashio.Get(ctx, s, model, h)
	if hashio.KindOf(err) != hashio.KindType {
		t.Errorf("got %v, want the original type error", err)
	}
}

func TestMissingChild(t *testing.T) {
	var (
		ctx        = context.Background()
		backend    = mem.New()
		s          = hashio.New(backend)
		migrations int
	)

	model := newOuterModel(func(context.Context, *hashio.Store, hashio.Hash) (*outer, error) {
		migrations++
		return nil, errors.New("no")
	})

	// Write only the parent record, without its children.
	rec, err := hashio.Encode[*outer](model, sampleOuter())
	if err != nil {
		t.Fatal(err)
	}
	h, err := s.PutRaw(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}

	_, err = hashio.Get(ctx, s, model, h)
	if !errors.Is(err, hashio.ErrNotFound) {
		t.Errorf("got %v, want a not-found error from the child", err)
	}
	if migrations != 1 {
		t.Errorf("child failure triggered %d migrations, want 1", migrations)
	}
}

func TestChain(t *testing.T) {
	var (
		ctx = context.Background()
		s   = hashio.New(mem.New())
	)

	if _, err := hashio.Chain[int]()(ctx, s, hashio.None); !errors.Is(err, hashio.ErrNoMigration) {
		t.Errorf("empty chain: got %v, want ErrNoMigration", err)
	}

	var calls []int
	step := func(n int, err error) hashio.Migration[int] {
		return func(context.Context, *hashio.Store, hashio.Hash) (int, error) {
			calls = append(calls, n)
			return n, err
		}
	}
	last := errors.New("last")
	got, err := hashio.Chain(step(1, errors.New("first")), step(2, nil), step(3, nil))(ctx, s, hashio.None)
	if err != nil || got != 2 {
		t.Errorf("got %d, %v; want 2, nil", got, err)
	}
	if diff := cmp.Diff([]int{1, 2}, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	_, err = hashio.Chain(step(1, errors.New("first")), step(2, last))(ctx, s, hashio.None)
	if !errors.Is(err, last) {
		t.Errorf("got %v, want %v", err, last)
	}
}

func TestScalarCodecs(t *testing.T) {
	var (
		ctx = context.Background()
		s   = hashio.New(mem.New())
	)

	h, err := hashio.Put(ctx, s, hashio.Bytes, []byte("raw bytes"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := hashio.Get(ctx, s, hashio.Bytes, h)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "raw bytes" {
		t.Errorf("got %q", got)
	}

	rec, err := hashio.Encode(hashio.String, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0, 0, 0, 2, 'h', 'i'}; !bytes.Equal(rec, want) {
		t.Errorf("got record %x, want %x", rec, want)
	}
}
