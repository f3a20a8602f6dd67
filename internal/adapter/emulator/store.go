package emulator

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"vectorstack/internal/metrics"
)

const (
	statusInitializing = "initializing"
	statusReady        = "ready"
	statusDeleting     = "deleting"
	statusOptimizing   = "optimizing"

	metricCosine     = "cosine"
	metricDotProduct = "dotproduct"

	featuresDense  = "dense"
	featuresHybrid = "hybrid"

	noModel     = "none"
	defaultTopK = 10
)

// apiError is rendered as the service's {"error": {...}} envelope.
type apiError struct {
	status int
	kind   string
	msg    string
}

func (e *apiError) Error() string { return e.kind + ": " + e.msg }

func badRequest(format string, args ...any) *apiError {
	return &apiError{status: http.StatusBadRequest, kind: "BadRequestError", msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *apiError {
	return &apiError{status: http.StatusNotFound, kind: "NotFoundError", msg: fmt.Sprintf(format, args...)}
}

func busy(name, status string) *apiError {
	return &apiError{
		status: http.StatusConflict,
		kind:   "ResourceBusyError",
		msg:    fmt.Sprintf("index %q is %s; try again once it is ready", name, status),
	}
}

type storedRecord struct {
	id       string
	dense    []float32
	sparse   map[uint32]float32
	metadata map[string]any
}

type index struct {
	info    indexInfo
	records map[string]*storedRecord
	// gen changes whenever a lifecycle transition is scheduled, so a stale
	// timer does not clobber a newer one.
	gen int
}

func (ix *index) hasModel() bool {
	return ix.info.EmbeddingModelName != "" && ix.info.EmbeddingModelName != noModel
}

func (ix *index) hybrid() bool { return ix.info.FeaturesType == featuresHybrid }

func (ix *index) serving() bool {
	return ix.info.Status == statusReady || ix.info.Status == statusOptimizing
}

// store is the emulator's in-memory state. All methods are safe for
// concurrent use.
type store struct {
	mu      sync.RWMutex
	indexes map[string]*index
	models  map[string]int
	delay   time.Duration
	enc     *encoder
	timers  map[*time.Timer]struct{}
	closed  bool
}

func newStore(models map[string]int, delay time.Duration) *store {
	if len(models) == 0 {
		models = DefaultModels
	}
	return &store{
		indexes: make(map[string]*index),
		models:  models,
		delay:   delay,
		enc:     newEncoder(),
		timers:  make(map[*time.Timer]struct{}),
	}
}

// schedule runs fn under the write lock after the transition delay, or
// immediately when the delay is zero. Callers must hold s.mu.
func (s *store) schedule(name string, ix *index, fn func(*index)) {
	ix.gen++
	gen := ix.gen
	if s.delay <= 0 {
		fn(ix)
		return
	}
	var t *time.Timer
	t = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.timers, t)
		cur, ok := s.indexes[name]
		if s.closed || !ok || cur != ix || cur.gen != gen {
			return
		}
		fn(cur)
	})
	s.timers[t] = struct{}{}
}

func (s *store) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for t := range s.timers {
		t.Stop()
		delete(s.timers, t)
	}
}

func (s *store) lookup(name string) (*index, *apiError) {
	ix, ok := s.indexes[name]
	if !ok {
		return nil, notFound("index %q does not exist", name)
	}
	return ix, nil
}

func (s *store) createIndex(req createIndexRequest) (indexInfo, *apiError) {
	if req.Name == "" {
		return indexInfo{}, badRequest("index_name is required")
	}
	if req.Metric == "" {
		req.Metric = metricCosine
	}
	if req.Metric != metricCosine && req.Metric != metricDotProduct {
		return indexInfo{}, badRequest("unsupported metric %q", req.Metric)
	}
	if req.FeaturesType == "" {
		req.FeaturesType = featuresDense
	}
	if req.FeaturesType != featuresDense && req.FeaturesType != featuresHybrid {
		return indexInfo{}, badRequest("unsupported features_type %q", req.FeaturesType)
	}
	if req.EmbeddingModelName == "" {
		req.EmbeddingModelName = noModel
	}
	if req.EmbeddingModelName == noModel {
		if req.Dimension <= 0 {
			return indexInfo{}, badRequest("dimension is required when no embedding model is used")
		}
	} else {
		dim, ok := s.models[req.EmbeddingModelName]
		if !ok {
			return indexInfo{}, badRequest("unknown embedding model %q", req.EmbeddingModelName)
		}
		if req.Dimension != 0 && req.Dimension != dim {
			return indexInfo{}, badRequest("model %q produces %d-dimensional vectors, not %d", req.EmbeddingModelName, dim, req.Dimension)
		}
		req.Dimension = dim
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.indexes[req.Name]; exists {
		return indexInfo{}, badRequest("index %q already exists", req.Name)
	}
	ix := &index{
		info: indexInfo{
			Name:               req.Name,
			Status:             statusInitializing,
			Dimension:          req.Dimension,
			Metric:             req.Metric,
			FeaturesType:       req.FeaturesType,
			EmbeddingModelName: req.EmbeddingModelName,
		},
		records: make(map[string]*storedRecord),
	}
	if ix.hybrid() {
		ix.info.DenseScale = 1
		ix.info.SparseScale = 1
	}
	s.indexes[req.Name] = ix
	metrics.Indexes.Set(float64(len(s.indexes)))
	metrics.Records.WithLabelValues(req.Name).Set(0)

	created := ix.info
	s.schedule(req.Name, ix, func(ix *index) { ix.info.Status = statusReady })
	return created, nil
}

func (s *store) info(name string) (indexInfo, *apiError) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ix, err := s.lookup(name)
	if err != nil {
		return indexInfo{}, err
	}
	return ix.info, nil
}

func (s *store) list() []indexInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]indexInfo, 0, len(s.indexes))
	for _, ix := range s.indexes {
		out = append(out, ix.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *store) upsert(name string, records []record) (int, *apiError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	if !ix.serving() {
		return 0, busy(name, ix.info.Status)
	}
	if len(records) == 0 {
		return 0, badRequest("records must be a non-empty list")
	}

	// Build every record before touching the index so a bad batch changes nothing.
	built := make([]*storedRecord, 0, len(records))
	for i, r := range records {
		sr, err := s.buildRecord(ix, r)
		if err != nil {
			err.msg = fmt.Sprintf("record %d: %s", i, err.msg)
			return 0, err
		}
		built = append(built, sr)
	}
	for _, sr := range built {
		ix.records[sr.id] = sr
	}
	ix.info.NumRecords = len(ix.records)
	metrics.Records.WithLabelValues(name).Set(float64(len(ix.records)))
	return len(built), nil
}

func (s *store) buildRecord(ix *index, r record) (*storedRecord, *apiError) {
	if r.ID == "" {
		return nil, badRequest("id is required")
	}
	sr := &storedRecord{id: r.ID, metadata: r.Metadata}

	if ix.hasModel() {
		text, ok := r.Metadata["text"].(string)
		if !ok {
			return nil, badRequest("metadata.text is required for indexes with an embedding model")
		}
		if len(r.Vector) > 0 || len(r.SparseIndices) > 0 || len(r.SparseValues) > 0 {
			return nil, badRequest("vectors must not be supplied for indexes with an embedding model")
		}
		sr.dense = s.enc.Dense(text, ix.info.Dimension)
		if ix.hybrid() {
			sr.sparse = toSparseMap(s.enc.Sparse(text))
		}
		return sr, nil
	}

	if len(r.Vector) != ix.info.Dimension {
		return nil, badRequest("vector dimension mismatch: expected %d, got %d", ix.info.Dimension, len(r.Vector))
	}
	sparse, err := checkSparse(ix, r.SparseIndices, r.SparseValues)
	if err != nil {
		return nil, err
	}
	sr.dense = append([]float32(nil), r.Vector...)
	sr.sparse = sparse
	return sr, nil
}

func checkSparse(ix *index, indices []uint32, values []float32) (map[uint32]float32, *apiError) {
	if !ix.hybrid() {
		if len(indices) > 0 || len(values) > 0 {
			return nil, badRequest("sparse components are only accepted by hybrid indexes")
		}
		return nil, nil
	}
	if len(indices) == 0 {
		return nil, badRequest("sparse_indices and sparse_values are required for hybrid indexes")
	}
	if len(indices) != len(values) {
		return nil, badRequest("sparse_indices (%d) and sparse_values (%d) differ in length", len(indices), len(values))
	}
	return toSparseMap(indices, values), nil
}

func toSparseMap(indices []uint32, values []float32) map[uint32]float32 {
	m := make(map[uint32]float32, len(indices))
	for i, idx := range indices {
		m[idx] += values[i]
	}
	return m
}

func (s *store) search(name string, req searchRequest) ([]searchResult, *apiError) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ix, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if !ix.serving() {
		return nil, busy(name, ix.info.Status)
	}
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}
	if req.TopK < 0 {
		return nil, badRequest("top_k must be positive")
	}

	var dense []float32
	var sparse map[uint32]float32
	if ix.hasModel() {
		if req.Text == "" {
			return nil, badRequest("text is required for indexes with an embedding model")
		}
		dense = s.enc.Dense(req.Text, ix.info.Dimension)
		if ix.hybrid() {
			sparse = toSparseMap(s.enc.Sparse(req.Text))
		}
	} else {
		if req.Text != "" {
			return nil, badRequest("index %q has no embedding model; query with a vector", name)
		}
		if len(req.Vector) != ix.info.Dimension {
			return nil, badRequest("query dimension mismatch: expected %d, got %d", ix.info.Dimension, len(req.Vector))
		}
		dense = req.Vector
		sparse, err = checkSparse(ix, req.SparseIndices, req.SparseValues)
		if err != nil {
			return nil, err
		}
	}

	results := make([]searchResult, 0, len(ix.records))
	for _, r := range ix.records {
		sim := denseSimilarity(ix.info.Metric, dense, r.dense)
		if ix.hybrid() {
			sim = sim*ix.info.DenseScale + sparseDot(sparse, r.sparse)*ix.info.SparseScale
		}
		res := searchResult{ID: r.id, Similarity: sim}
		if req.ReturnMetadata {
			res.Metadata = r.metadata
		}
		results = append(results, res)
	}
	rank(results)
	if len(results) > req.TopK {
		results = results[:req.TopK]
	}
	return results, nil
}

// rank orders by similarity descending, then id ascending for ties.
func rank(results []searchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
}

func denseSimilarity(metric string, a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if metric == metricDotProduct {
		return dot
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func sparseDot(q, r map[uint32]float32) float64 {
	if len(r) < len(q) {
		q, r = r, q
	}
	var sum float64
	for idx, v := range q {
		if w, ok := r[idx]; ok {
			sum += float64(v) * float64(w)
		}
	}
	return sum
}

func (s *store) deleteVectors(name string, ids []string) *apiError {
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, err := s.lookup(name)
	if err != nil {
		return err
	}
	if !ix.serving() {
		return busy(name, ix.info.Status)
	}
	if len(ids) == 0 {
		return badRequest("ids must be a non-empty list")
	}
	var missing []string
	for _, id := range ids {
		if _, ok := ix.records[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return notFound("ids not found in index %q: %s", name, strings.Join(missing, ", "))
	}
	for _, id := range ids {
		delete(ix.records, id)
	}
	ix.info.NumRecords = len(ix.records)
	metrics.Records.WithLabelValues(name).Set(float64(len(ix.records)))
	return nil
}

func (s *store) setScale(name string, req scaleRequest) *apiError {
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, err := s.lookup(name)
	if err != nil {
		return err
	}
	if !ix.hybrid() {
		return badRequest("similarity scale applies to hybrid indexes only; %q is %s", name, ix.info.FeaturesType)
	}
	if req.DenseScale == nil || req.SparseScale == nil {
		return badRequest("dense_scale and sparse_scale are both required")
	}
	for _, v := range []float64{*req.DenseScale, *req.SparseScale} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return badRequest("similarity scales must be finite and non-negative")
		}
	}
	ix.info.DenseScale = *req.DenseScale
	ix.info.SparseScale = *req.SparseScale
	return nil
}

func (s *store) optimize(name string) (string, *apiError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	switch ix.info.Status {
	case statusOptimizing:
		return statusOptimizing, nil
	case statusReady:
	default:
		return "", busy(name, ix.info.Status)
	}
	ix.info.Status = statusOptimizing
	s.schedule(name, ix, func(ix *index) {
		ix.info.Status = statusReady
		ix.info.OptimizedForLatency = true
	})
	return statusOptimizing, nil
}

func (s *store) deleteIndex(name string) (string, *apiError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	if ix.info.Status == statusDeleting {
		return statusDeleting, nil
	}
	ix.info.Status = statusDeleting
	s.schedule(name, ix, func(*index) {
		delete(s.indexes, name)
		metrics.Indexes.Set(float64(len(s.indexes)))
		metrics.Records.DeleteLabelValues(name)
	})
	return statusDeleting, nil
}

func (s *store) embed(model string, texts []string) ([][]float32, *apiError) {
	dim, ok := s.models[model]
	if !ok {
		return nil, badRequest("unknown embedding model %q", model)
	}
	if len(texts) == 0 {
		return nil, badRequest("input.texts must be a non-empty list")
	}
	rows := make([][]float32, len(texts))
	for i, t := range texts {
		rows[i] = s.enc.Dense(t, dim)
	}
	return rows, nil
}
