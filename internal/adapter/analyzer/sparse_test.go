package analyzer

import "testing"

func TestSparseEncoder_CountsTerms(t *testing.T) {
	enc := NewSparseEncoder(nil)

	idx, vals := enc.Encode("Search the search engine")
	if len(idx) != 2 || len(vals) != 2 {
		t.Fatalf("expected 2 terms, got %v %v", idx, vals)
	}
	if idx[0] != TermIndex("search") || vals[0] != 2 {
		t.Errorf("expected 'search' twice first, got %d=%v", idx[0], vals[0])
	}
	if idx[1] != TermIndex("engine") || vals[1] != 1 {
		t.Errorf("expected 'engine' once second, got %d=%v", idx[1], vals[1])
	}
}

func TestSparseEncoder_Empty(t *testing.T) {
	idx, vals := NewSparseEncoder(NewTokenizer()).Encode("the a of")
	if len(idx) != 0 || len(vals) != 0 {
		t.Errorf("expected no terms for stopwords only, got %v %v", idx, vals)
	}
}
