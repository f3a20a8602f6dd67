package precise

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// CreateIndex asks the service to create an index. The returned info is
// usually in StatusInitializing; use WaitUntilReady before writing to it.
func (c *Client) CreateIndex(ctx context.Context, req CreateIndexRequest) (*IndexInfo, error) {
	if err := validateCreate(&req); err != nil {
		return nil, err
	}
	var info IndexInfo
	if err := c.doJSON(ctx, "create_index", http.MethodPost, c.endpoint("create_index"), req, &info); err != nil {
		return nil, err
	}
	if info.Name == "" {
		info.Name = req.Name
	}
	if info.Status == "" {
		info.Status = StatusInitializing
	}
	return &info, nil
}

// DescribeIndex returns the current state of the named index.
func (c *Client) DescribeIndex(ctx context.Context, name string) (*IndexInfo, error) {
	if name == "" {
		return nil, invalidArgf("index name is required")
	}
	var info IndexInfo
	if err := c.doJSON(ctx, "info", http.MethodGet, c.endpoint("info", name), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListIndexes returns every index visible to the API key.
func (c *Client) ListIndexes(ctx context.Context) ([]IndexInfo, error) {
	var out indexListResponse
	if err := c.doJSON(ctx, "list_indexes", http.MethodGet, c.endpoint("list_indexes"), nil, &out); err != nil {
		return nil, err
	}
	return out.Indexes, nil
}

// Confirmer decides whether an irreversible operation may proceed.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) (bool, error)

func (f ConfirmFunc) Confirm(prompt string) (bool, error) { return f(prompt) }

type deleteOptions struct {
	confirmer Confirmer
}

// DeleteOption configures DeleteIndex.
type DeleteOption func(*deleteOptions)

// WithConfirmation asks c before the deletion request is sent.
func WithConfirmation(c Confirmer) DeleteOption {
	return func(o *deleteOptions) { o.confirmer = c }
}

// DeleteIndex schedules the index for deletion. Deletion is asynchronous and
// cannot be undone.
func (c *Client) DeleteIndex(ctx context.Context, name string, opts ...DeleteOption) error {
	if name == "" {
		return invalidArgf("index name is required")
	}
	var o deleteOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.confirmer != nil {
		ok, err := o.confirmer.Confirm(fmt.Sprintf("Delete index %q? This cannot be undone.", name))
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return ErrDeletionCancelled
		}
	}
	var out statusResponse
	if err := c.doJSON(ctx, "delete_index", http.MethodDelete, c.endpoint("delete_index", name), nil, &out); err != nil {
		return err
	}
	c.logger.Info("index deletion scheduled", zap.String("index", name))
	return nil
}

// Index is a handle bound to one named remote index. It caches the index
// description used for client-side argument checks.
type Index struct {
	client *Client
	name   string

	mu   sync.RWMutex
	info IndexInfo
}

// Index connects to an existing index. It fails with ErrNotFound (or the
// kind the service reports) when the index does not exist.
func (c *Client) Index(ctx context.Context, name string) (*Index, error) {
	info, err := c.DescribeIndex(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Index{client: c, name: name, info: *info}, nil
}

func (ix *Index) Name() string { return ix.name }

func (ix *Index) String() string {
	return fmt.Sprintf("PreciseSearch Index (name=%s)", ix.name)
}

// Cached returns the last fetched description without a network call.
func (ix *Index) Cached() IndexInfo {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.info
}

// Info fetches the current description and refreshes the cache.
func (ix *Index) Info(ctx context.Context) (*IndexInfo, error) {
	info, err := ix.client.DescribeIndex(ctx, ix.name)
	if err != nil {
		return nil, err
	}
	ix.mu.Lock()
	ix.info = *info
	ix.mu.Unlock()
	return info, nil
}

// Upsert inserts or updates records keyed by id.
func (ix *Index) Upsert(ctx context.Context, records []Record) (*UpsertResponse, error) {
	if err := validateRecords(ix.Cached(), records); err != nil {
		return nil, err
	}
	var out UpsertResponse
	if err := ix.client.doJSON(ctx, "upsert", http.MethodPost, ix.client.endpoint("upsert", ix.name), upsertRequest{Records: records}, &out); err != nil {
		return nil, err
	}
	if out.Upserted == 0 {
		out.Upserted = len(records)
	}
	return &out, nil
}

// UpsertBatches upserts records in slices of batchSize, reporting progress
// after each batch. It stops at the first failing batch and returns the
// number of records acknowledged so far.
func (ix *Index) UpsertBatches(ctx context.Context, records []Record, batchSize int, progress func(done, total int)) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	done := 0
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		resp, err := ix.Upsert(ctx, records[i:end])
		if err != nil {
			return done, fmt.Errorf("upsert batch %d-%d failed: %w", i, end, err)
		}
		done += resp.Upserted
		if progress != nil {
			progress(done, len(records))
		}
	}
	return done, nil
}

// Search returns up to TopK results ordered by descending similarity.
func (ix *Index) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if err := validateSearch(ix.Cached(), &req); err != nil {
		return nil, err
	}
	var out searchResponse
	if err := ix.client.doJSON(ctx, "search", http.MethodPost, ix.client.endpoint("search", ix.name), req, &out); err != nil {
		return nil, err
	}
	results := out.Results
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > req.TopK {
		results = results[:req.TopK]
	}
	return results, nil
}

// SetSimilarityScale changes the weighting of a hybrid index's combined
// score: dense_similarity × dense + sparse_similarity × sparse.
func (ix *Index) SetSimilarityScale(ctx context.Context, dense, sparse float64) error {
	if err := validateScale(ix.Cached(), dense, sparse); err != nil {
		return err
	}
	req := similarityScaleRequest{DenseScale: dense, SparseScale: sparse}
	if err := ix.client.doJSON(ctx, "set_similarity_scale", http.MethodPost, ix.client.endpoint("set_similarity_scale", ix.name), req, nil); err != nil {
		return err
	}
	ix.mu.Lock()
	ix.info.DenseScale = dense
	ix.info.SparseScale = sparse
	ix.mu.Unlock()
	return nil
}

// DeleteVectors removes records synchronously. The call fails, and nothing
// is removed, if any id is absent from the index.
func (ix *Index) DeleteVectors(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return invalidArgf("no ids to delete")
	}
	return ix.client.doJSON(ctx, "delete_vectors", http.MethodDelete, ix.client.endpoint("delete_vectors", ix.name), deleteVectorsRequest{IDs: ids}, nil)
}

// OptimizeForLatency triggers an asynchronous restructuring of the index.
// Calling it again while an optimization runs is harmless.
func (ix *Index) OptimizeForLatency(ctx context.Context) error {
	var out statusResponse
	return ix.client.doJSON(ctx, "optimize_for_latency", http.MethodPost, ix.client.endpoint("optimize_for_latency", ix.name), nil, &out)
}

// Delete schedules deletion of this index.
func (ix *Index) Delete(ctx context.Context, opts ...DeleteOption) error {
	return ix.client.DeleteIndex(ctx, ix.name, opts...)
}
