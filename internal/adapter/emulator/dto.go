package emulator

// Wire types of the PreciseSearch and embeddings HTTP API. They mirror the
// JSON the hosted service speaks, not any client library's structs.

type indexInfo struct {
	Name                string  `json:"index_name"`
	Status              string  `json:"status"`
	NumRecords          int     `json:"num_records"`
	Dimension           int     `json:"dimension"`
	Metric              string  `json:"metric"`
	FeaturesType        string  `json:"features_type"`
	EmbeddingModelName  string  `json:"embedding_model_name"`
	OptimizedForLatency bool    `json:"optimized_for_latency"`
	DenseScale          float64 `json:"dense_scale,omitempty"`
	SparseScale         float64 `json:"sparse_scale,omitempty"`
}

type createIndexRequest struct {
	Name               string `json:"index_name"`
	Metric             string `json:"metric"`
	FeaturesType       string `json:"features_type"`
	EmbeddingModelName string `json:"embedding_model_name"`
	Dimension          int    `json:"dimension"`
}

type record struct {
	ID            string         `json:"id"`
	Vector        []float32      `json:"vector,omitempty"`
	SparseIndices []uint32       `json:"sparse_indices,omitempty"`
	SparseValues  []float32      `json:"sparse_values,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Records []record `json:"records"`
}

type upsertResponse struct {
	Upserted int `json:"upserted"`
}

type searchRequest struct {
	Text           string    `json:"text,omitempty"`
	Vector         []float32 `json:"vector,omitempty"`
	SparseIndices  []uint32  `json:"sparse_indices,omitempty"`
	SparseValues   []float32 `json:"sparse_values,omitempty"`
	TopK           int       `json:"top_k"`
	ReturnMetadata bool      `json:"return_metadata"`
}

type searchResult struct {
	ID         string         `json:"id"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type listResponse struct {
	Indexes []indexInfo `json:"indexes"`
}

type deleteVectorsRequest struct {
	IDs []string `json:"ids"`
}

type scaleRequest struct {
	DenseScale  *float64 `json:"dense_scale"`
	SparseScale *float64 `json:"sparse_scale"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type embedRequest struct {
	Input struct {
		Texts       []string `json:"texts"`
		IsQuery     bool     `json:"is_query"`
		Instruction string   `json:"instruction"`
	} `json:"input"`
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

type embedResponse struct {
	Output struct {
		Embeddings string `json:"embeddings"`
	} `json:"output"`
}

type errorDetail struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"http_status"`
	Code       string `json:"code,omitempty"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}
