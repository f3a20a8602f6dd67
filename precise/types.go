package precise

import "fmt"

// IndexStatus is the server-driven lifecycle state of an index.
type IndexStatus string

const (
	StatusInitializing IndexStatus = "initializing"
	StatusReady        IndexStatus = "ready"
	StatusFailed       IndexStatus = "failed"
	StatusDeleting     IndexStatus = "deleting"
	StatusOptimizing   IndexStatus = "optimizing"
)

// Metric is the dense similarity function of an index.
type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dotproduct"
)

// FeaturesType selects dense-only or dense+sparse (hybrid) records.
type FeaturesType string

const (
	FeaturesDense  FeaturesType = "dense"
	FeaturesHybrid FeaturesType = "hybrid"
)

// NoEmbeddingModel marks an index whose vectors are supplied by the caller.
const NoEmbeddingModel = "none"

// IndexInfo describes a remote index as reported by the service.
type IndexInfo struct {
	Name                string       `json:"index_name"`
	Status              IndexStatus  `json:"status"`
	NumRecords          int          `json:"num_records"`
	Dimension           int          `json:"dimension"`
	Metric              Metric       `json:"metric"`
	FeaturesType        FeaturesType `json:"features_type"`
	EmbeddingModelName  string       `json:"embedding_model_name"`
	OptimizedForLatency bool         `json:"optimized_for_latency"`
	DenseScale          float64      `json:"dense_scale,omitempty"`
	SparseScale         float64      `json:"sparse_scale,omitempty"`
}

// HasEmbeddingModel reports whether the service embeds record text itself.
func (i IndexInfo) HasEmbeddingModel() bool {
	return hasModel(i.EmbeddingModelName)
}

// IsHybrid reports whether records carry sparse components.
func (i IndexInfo) IsHybrid() bool {
	return i.FeaturesType == FeaturesHybrid
}

func (i IndexInfo) String() string {
	return fmt.Sprintf("Index(name=%s, status=%s, records=%d, dim=%d, metric=%s, features=%s, model=%s)",
		i.Name, i.Status, i.NumRecords, i.Dimension, i.Metric, i.FeaturesType, i.EmbeddingModelName)
}

func hasModel(name string) bool {
	return name != "" && name != NoEmbeddingModel
}

// CreateIndexRequest holds the arguments of CreateIndex. Dimension is required
// when EmbeddingModelName is empty or "none" and must be zero otherwise.
type CreateIndexRequest struct {
	Name               string       `json:"index_name"`
	Metric             Metric       `json:"metric"`
	FeaturesType       FeaturesType `json:"features_type"`
	EmbeddingModelName string       `json:"embedding_model_name"`
	Dimension          int          `json:"dimension,omitempty"`
}

// Record is a single upsert unit keyed by ID.
type Record struct {
	ID            string         `json:"id"`
	Vector        []float32      `json:"vector,omitempty"`
	SparseIndices []uint32       `json:"sparse_indices,omitempty"`
	SparseValues  []float32      `json:"sparse_values,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Text returns the "text" metadata field, if present.
func (r Record) Text() (string, bool) {
	if r.Metadata == nil {
		return "", false
	}
	s, ok := r.Metadata["text"].(string)
	return s, ok
}

// UpsertResponse acknowledges an upsert.
type UpsertResponse struct {
	Upserted int `json:"upserted"`
}

// SearchRequest is a transient query. TopK defaults to 10.
type SearchRequest struct {
	Text           string    `json:"text,omitempty"`
	Vector         []float32 `json:"vector,omitempty"`
	SparseIndices  []uint32  `json:"sparse_indices,omitempty"`
	SparseValues   []float32 `json:"sparse_values,omitempty"`
	TopK           int       `json:"top_k"`
	ReturnMetadata bool      `json:"return_metadata"`
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ID         string         `json:"id"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// DefaultTopK is used when SearchRequest.TopK is zero.
const DefaultTopK = 10

// CombinedSimilarity is the hybrid scoring rule:
// dense_similarity × dense_scale + sparse_similarity × sparse_scale.
func CombinedSimilarity(dense, sparse, denseScale, sparseScale float64) float64 {
	return dense*denseScale + sparse*sparseScale
}

type indexListResponse struct {
	Indexes []IndexInfo `json:"indexes"`
}

type upsertRequest struct {
	Records []Record `json:"records"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

type deleteVectorsRequest struct {
	IDs []string `json:"ids"`
}

type similarityScaleRequest struct {
	DenseScale  float64 `json:"dense_scale"`
	SparseScale float64 `json:"sparse_scale"`
}

type statusResponse struct {
	Status  IndexStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}
