package retriever

import (
	"testing"

	"vectorstack/internal/adapter/analyzer"
	"vectorstack/internal/domain"
)

func TestMMRReranking(t *testing.T) {
	reranker := NewMMRReranker(analyzer.NewTokenizer(), 0.7, 0.9)

	candidates := []domain.Hit{
		{ID: "c1", Score: 1.0, Text: "auth login user password"},
		{ID: "c2", Score: 0.9, Text: "auth login user session"},
		{ID: "c3", Score: 0.8, Text: "database query sql connection"},
		{ID: "c4", Score: 0.7, Text: "auth jwt token oauth"},
	}

	results := reranker.Rerank(candidates, 3)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ID != "c1" {
		t.Errorf("expected c1 as first result, got %s", results[0].ID)
	}
	if results[1].ID != "c3" {
		t.Errorf("expected diverse c3 before similar c2, got %s", results[1].ID)
	}
}

func TestMMRDeduplication(t *testing.T) {
	reranker := NewMMRReranker(analyzer.NewTokenizer(), 0.5, 0.3)

	candidates := []domain.Hit{
		{ID: "c1", Score: 1.0, Text: "alpha beta gamma"},
		{ID: "c2", Score: 0.9, Text: "gamma beta alpha"},
	}

	results := reranker.Rerank(candidates, 2)
	if len(results) != 1 {
		t.Fatalf("expected 1 result after dedup, got %d", len(results))
	}
	if results[0].ID != "c1" {
		t.Errorf("expected c1 (highest score), got %s", results[0].ID)
	}
}

func TestMMRHitsWithoutText(t *testing.T) {
	reranker := NewMMRReranker(analyzer.NewTokenizer(), 0.7, 0.5)

	results := reranker.Rerank([]domain.Hit{{ID: "a", Score: 0.5}, {ID: "b", Score: 0.4}}, 5)
	if len(results) != 2 || results[0].ID != "a" {
		t.Errorf("expected score order for text-less hits, got %+v", results)
	}
}

func TestMMREmptyCandidates(t *testing.T) {
	reranker := NewMMRReranker(analyzer.NewTokenizer(), 0.7, 0.8)

	if results := reranker.Rerank(nil, 10); results != nil {
		t.Errorf("expected nil for empty candidates, got %v", results)
	}
}

func TestJaccard(t *testing.T) {
	set := func(tokens ...string) map[string]struct{} { return tokenSet(tokens) }
	tests := []struct {
		name     string
		a, b     map[string]struct{}
		expected float64
	}{
		{"identical", set("a", "b", "c"), set("a", "b", "c"), 1.0},
		{"no overlap", set("a", "b", "c"), set("d", "e", "f"), 0.0},
		{"half overlap", set("a", "b"), set("b", "c"), 1.0 / 3.0},
		{"empty a", set(), set("a", "b"), 0.0},
		{"both empty", set(), set(), 0.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := jaccard(tc.a, tc.b)
			if !floatEquals(result, tc.expected, 0.001) {
				t.Errorf("jaccard = %f, expected %f", result, tc.expected)
			}
		})
	}
}

func floatEquals(a, b, tolerance float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < tolerance
}
