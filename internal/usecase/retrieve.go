package usecase

import (
	"context"
	"fmt"

	"vectorstack/internal/adapter/analyzer"
	"vectorstack/internal/domain"
	"vectorstack/internal/port"
	"vectorstack/precise"
)

// RetrieveUseCase turns a text query into a search against one index and
// resolves the hits back to source locations.
type RetrieveUseCase struct {
	searcher port.Searcher
	info     precise.IndexInfo
	embedder port.Embedder // used when the index has no embedding model
	sparse   *analyzer.SparseEncoder
	minScore float64 // 0 = disabled
}

func NewRetrieveUseCase(
	searcher port.Searcher,
	info precise.IndexInfo,
	embedder port.Embedder,
	minScore float64,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		searcher: searcher,
		info:     info,
		embedder: embedder,
		sparse:   analyzer.NewSparseEncoder(nil),
		minScore: minScore,
	}
}

// Retrieve returns up to topK hits ordered by descending score. Metadata
// beyond the location fields is kept only when withMetadata is set.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK int, withMetadata bool) ([]domain.Hit, error) {
	req, err := u.request(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	results, err := u.searcher.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	hits := make([]domain.Hit, 0, len(results))
	for _, r := range results {
		if u.minScore > 0 && r.Similarity < u.minScore {
			continue
		}
		hits = append(hits, toHit(r, withMetadata))
	}
	return hits, nil
}

func (u *RetrieveUseCase) request(ctx context.Context, query string, topK int) (precise.SearchRequest, error) {
	req := precise.SearchRequest{TopK: topK, ReturnMetadata: true}
	if u.info.HasEmbeddingModel() {
		req.Text = query
		return req, nil
	}
	if u.embedder == nil {
		return req, fmt.Errorf("index %q has no embedding model; configure ingest.embedding_model", u.info.Name)
	}
	vecs, err := u.embedder.Embed(ctx, []string{query}, true)
	if err != nil {
		return req, fmt.Errorf("failed to embed query: %w", err)
	}
	req.Vector = vecs[0]
	if u.info.IsHybrid() {
		req.SparseIndices, req.SparseValues = u.sparse.Encode(query)
	}
	return req, nil
}

func toHit(r precise.SearchResult, withMetadata bool) domain.Hit {
	h := domain.Hit{ID: r.ID, Score: r.Similarity}
	if r.Metadata == nil {
		return h
	}
	h.Path, _ = r.Metadata[domain.MetaPath].(string)
	h.Text, _ = r.Metadata[domain.MetaText].(string)
	h.StartLine = asInt(r.Metadata[domain.MetaStartLine])
	h.EndLine = asInt(r.Metadata[domain.MetaEndLine])
	if withMetadata {
		h.Metadata = r.Metadata
	}
	return h
}

// asInt accepts the float64 that JSON numbers decode to.
func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
