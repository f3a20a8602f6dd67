package port

import (
	"context"

	"vectorstack/precise"
)

// Searcher runs a query against one index.
type Searcher interface {
	Search(ctx context.Context, req precise.SearchRequest) ([]precise.SearchResult, error)
}

// VectorIndex is the write side of an index used by ingestion.
type VectorIndex interface {
	Searcher
	Cached() precise.IndexInfo
	UpsertBatches(ctx context.Context, records []precise.Record, batchSize int, progress func(done, total int)) (int, error)
	DeleteVectors(ctx context.Context, ids []string) error
}
