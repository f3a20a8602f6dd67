package cache

import (
	"context"
	"testing"
	"time"

	"vectorstack/precise"
)

type countingSearcher struct {
	calls int
}

func (s *countingSearcher) Search(_ context.Context, req precise.SearchRequest) ([]precise.SearchResult, error) {
	s.calls++
	return []precise.SearchResult{{ID: req.Text, Similarity: 1}}, nil
}

func TestQueryCache_GetPut(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	req := precise.SearchRequest{Text: "hello", TopK: 5}

	if _, ok := c.Get("idx", req); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put("idx", req, []precise.SearchResult{{ID: "a"}})

	got, ok := c.Get("idx", req)
	if !ok || len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected hit, got %v %v", got, ok)
	}
	if _, ok := c.Get("other", req); ok {
		t.Error("expected different index to miss")
	}
	if _, ok := c.Get("idx", precise.SearchRequest{Text: "hello", TopK: 6}); ok {
		t.Error("expected different top_k to miss")
	}
}

func TestQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewQueryCache(2, time.Minute)
	a := precise.SearchRequest{Text: "a"}
	b := precise.SearchRequest{Text: "b"}
	d := precise.SearchRequest{Text: "d"}

	c.Put("i", a, nil)
	c.Put("i", b, nil)
	c.Get("i", a)
	c.Put("i", d, nil)

	if _, ok := c.Get("i", b); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("i", a); !ok {
		t.Error("expected recently used a to survive")
	}
	if c.Size() != 2 {
		t.Errorf("expected size 2, got %d", c.Size())
	}
}

func TestQueryCache_TTL(t *testing.T) {
	c := NewQueryCache(10, 10*time.Millisecond)
	req := precise.SearchRequest{Text: "q"}
	c.Put("i", req, nil)

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("i", req); ok {
		t.Error("expected expired entry to miss")
	}
	if c.Size() != 0 {
		t.Errorf("expected expired entry to be dropped, size %d", c.Size())
	}
}

func TestQueryCache_Invalidate(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	req := precise.SearchRequest{Text: "q"}
	c.Put("i", req, nil)
	c.Invalidate()

	if _, ok := c.Get("i", req); ok {
		t.Error("expected miss after invalidation")
	}
}

func TestCachedSearcher(t *testing.T) {
	inner := &countingSearcher{}
	qc := NewQueryCache(10, time.Minute)
	s := NewCachedSearcher("i", inner, qc)
	ctx := context.Background()
	req := precise.SearchRequest{Text: "q", TopK: 3}

	for i := 0; i < 3; i++ {
		res, err := s.Search(ctx, req)
		if err != nil || len(res) != 1 || res[0].ID != "q" {
			t.Fatalf("unexpected result %v %v", res, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", inner.calls)
	}

	qc.Invalidate()
	if _, err := s.Search(ctx, req); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("expected invalidation to force a new call, got %d calls", inner.calls)
	}
}
