package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"
)

type fakeEmbedder struct {
	calls [][]string
	fail  bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string, isQuery bool) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("upstream down")
	}
	f.calls = append(f.calls, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := float32(len(t))
		if isQuery {
			v = -v
		}
		out[i] = []float32{v, 0.5}
	}
	return out, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake" }

func openCache(t *testing.T) *BoltEmbeddingCache {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "state.db"), 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	c, err := NewBoltEmbeddingCache(db)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCachedEmbedder_OnlyMissesGoUpstream(t *testing.T) {
	inner := &fakeEmbedder{}
	e := NewCachedEmbedder(inner, openCache(t), "")
	ctx := context.Background()

	if _, err := e.Embed(ctx, []string{"a", "bb"}, false); err != nil {
		t.Fatal(err)
	}
	vecs, err := e.Embed(ctx, []string{"ccc", "a", "bb"}, false)
	if err != nil {
		t.Fatal(err)
	}

	if len(inner.calls) != 2 || len(inner.calls[1]) != 1 || inner.calls[1][0] != "ccc" {
		t.Fatalf("expected second call to send only the miss, got %v", inner.calls)
	}
	want := []float32{3, 1, 2}
	for i, v := range vecs {
		if v[0] != want[i] || v[1] != 0.5 {
			t.Errorf("vector %d: expected [%v 0.5], got %v", i, want[i], v)
		}
	}
}

func TestCachedEmbedder_QueryAndDocumentKeysDiffer(t *testing.T) {
	inner := &fakeEmbedder{}
	e := NewCachedEmbedder(inner, openCache(t), "")
	ctx := context.Background()

	doc, _ := e.Embed(ctx, []string{"same"}, false)
	query, _ := e.Embed(ctx, []string{"same"}, true)
	if len(inner.calls) != 2 {
		t.Fatalf("expected query embedding to miss the document entry, got %d calls", len(inner.calls))
	}
	if doc[0][0] == query[0][0] {
		t.Error("expected distinct vectors for query and document")
	}
}

func TestCachedEmbedder_UpstreamError(t *testing.T) {
	e := NewCachedEmbedder(&fakeEmbedder{fail: true}, openCache(t), "")
	if _, err := e.Embed(context.Background(), []string{"x"}, false); err == nil {
		t.Error("expected upstream error to surface")
	}
}

func TestBoltEmbeddingCache_PersistsHalfPrecision(t *testing.T) {
	c := openCache(t)
	key := EmbeddingKey("m", false, "", "t")

	if err := c.PutMany([][]byte{key}, [][]float32{{0.25, -1.5, 1024}}); err != nil {
		t.Fatal(err)
	}
	got, err := c.GetMany([][]byte{key, EmbeddingKey("m", false, "", "other")})
	if err != nil {
		t.Fatal(err)
	}
	if got[1] != nil {
		t.Error("expected nil for missing key")
	}
	want := []float32{0.25, -1.5, 1024}
	for i := range want {
		if got[0][i] != want[i] {
			t.Errorf("component %d: expected %v, got %v", i, want[i], got[0][i])
		}
	}
	if n, _ := c.Len(); n != 1 {
		t.Errorf("expected 1 cached vector, got %d", n)
	}
	if err := c.PutMany([][]byte{key}, nil); err == nil {
		t.Error("expected error for mismatched keys and vectors")
	}
}

func TestEmbeddingKey_Distinguishes(t *testing.T) {
	base := string(EmbeddingKey("m", false, "", "t"))
	variants := [][]byte{
		EmbeddingKey("m2", false, "", "t"),
		EmbeddingKey("m", true, "", "t"),
		EmbeddingKey("m", false, "i", "t"),
		EmbeddingKey("m", false, "", "t2"),
	}
	for i, v := range variants {
		if string(v) == base {
			t.Errorf("variant %d collides with base key", i)
		}
	}
}
