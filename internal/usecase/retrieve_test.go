package usecase

import (
	"context"
	"errors"
	"testing"

	"vectorstack/precise"
)

type stubSearcher struct {
	results []precise.SearchResult
	last    precise.SearchRequest
}

func (s *stubSearcher) Search(_ context.Context, req precise.SearchRequest) ([]precise.SearchResult, error) {
	s.last = req
	return s.results, nil
}

type stubEmbedder struct{ err error }

func (e stubEmbedder) Embed(_ context.Context, texts []string, _ bool) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (stubEmbedder) ModelName() string { return "stub" }

func TestRetrieve_TextQueryForModelIndex(t *testing.T) {
	s := &stubSearcher{results: []precise.SearchResult{
		{ID: "a", Similarity: 0.9, Metadata: map[string]any{"path": "a.md", "text": "hello", "start_line": float64(3), "end_line": float64(7), "extra": "x"}},
		{ID: "b", Similarity: 0.2},
	}}
	u := NewRetrieveUseCase(s, precise.IndexInfo{Name: "i", EmbeddingModelName: "vstackai-law-1"}, nil, 0.5)

	hits, err := u.Retrieve(context.Background(), "greeting", 4, false)
	if err != nil {
		t.Fatal(err)
	}
	if s.last.Text != "greeting" || s.last.TopK != 4 || !s.last.ReturnMetadata {
		t.Errorf("unexpected request %+v", s.last)
	}
	if len(hits) != 1 {
		t.Fatalf("expected min score to filter b, got %+v", hits)
	}
	h := hits[0]
	if h.Path != "a.md" || h.StartLine != 3 || h.EndLine != 7 || h.Text != "hello" {
		t.Errorf("location not resolved: %+v", h)
	}
	if h.Metadata != nil {
		t.Error("expected metadata to be dropped when not requested")
	}

	hits, _ = u.Retrieve(context.Background(), "greeting", 4, true)
	if hits[0].Metadata["extra"] != "x" {
		t.Error("expected metadata when requested")
	}
}

func TestRetrieve_VectorQueryForPlainIndex(t *testing.T) {
	s := &stubSearcher{}
	info := precise.IndexInfo{Name: "i", EmbeddingModelName: precise.NoEmbeddingModel, Dimension: 2, FeaturesType: precise.FeaturesHybrid}

	if _, err := NewRetrieveUseCase(s, info, nil, 0).Retrieve(context.Background(), "q", 3, false); err == nil {
		t.Error("expected error without an embedder")
	}

	u := NewRetrieveUseCase(s, info, stubEmbedder{}, 0)
	if _, err := u.Retrieve(context.Background(), "contract terms", 3, false); err != nil {
		t.Fatal(err)
	}
	if s.last.Text != "" || len(s.last.Vector) != 2 {
		t.Errorf("expected a vector query, got %+v", s.last)
	}
	if len(s.last.SparseIndices) != 2 || len(s.last.SparseValues) != 2 {
		t.Errorf("expected sparse components for hybrid index, got %+v", s.last)
	}

	boom := errors.New("boom")
	if _, err := NewRetrieveUseCase(s, info, stubEmbedder{err: boom}, 0).Retrieve(context.Background(), "q", 3, false); !errors.Is(err, boom) {
		t.Errorf("expected embedder error, got %v", err)
	}
}
