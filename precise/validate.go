package precise

import "math"

func validateCreate(req *CreateIndexRequest) error {
	if req.Name == "" {
		return invalidArgf("index name is required")
	}
	switch req.Metric {
	case "":
		req.Metric = MetricCosine
	case MetricCosine, MetricDotProduct:
	default:
		return invalidArgf("metric must be %q or %q, got %q", MetricCosine, MetricDotProduct, req.Metric)
	}
	switch req.FeaturesType {
	case "":
		req.FeaturesType = FeaturesDense
	case FeaturesDense, FeaturesHybrid:
	default:
		return invalidArgf("features_type must be %q or %q, got %q", FeaturesDense, FeaturesHybrid, req.FeaturesType)
	}
	if hasModel(req.EmbeddingModelName) {
		if req.Dimension != 0 {
			return invalidArgf("dimension is derived from embedding model %q and must not be set", req.EmbeddingModelName)
		}
		return nil
	}
	req.EmbeddingModelName = NoEmbeddingModel
	if req.Dimension <= 0 {
		return invalidArgf("dimension is required when no embedding model is used")
	}
	return nil
}

func validateRecords(info IndexInfo, records []Record) error {
	if len(records) == 0 {
		return invalidArgf("no records to upsert")
	}
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		if r.ID == "" {
			return invalidArgf("record %d has an empty id", i)
		}
		if _, dup := seen[r.ID]; dup {
			return invalidArgf("duplicate record id %q in batch", r.ID)
		}
		seen[r.ID] = struct{}{}

		if info.HasEmbeddingModel() {
			if _, ok := r.Text(); !ok {
				return invalidArgf("record %q: metadata[\"text\"] is required for index %q (embedding model %s)", r.ID, info.Name, info.EmbeddingModelName)
			}
			if len(r.Vector) > 0 || len(r.SparseIndices) > 0 || len(r.SparseValues) > 0 {
				return invalidArgf("record %q: vectors are computed by the service for index %q and must not be supplied", r.ID, info.Name)
			}
			continue
		}

		if len(r.Vector) != info.Dimension {
			return invalidArgf("record %q: vector dimension mismatch: expected %d, got %d", r.ID, info.Dimension, len(r.Vector))
		}
		if err := validateSparse(info, r.SparseIndices, r.SparseValues, "record "+r.ID); err != nil {
			return err
		}
	}
	return nil
}

func validateSparse(info IndexInfo, indices []uint32, values []float32, what string) error {
	if !info.IsHybrid() {
		if len(indices) > 0 || len(values) > 0 {
			return invalidArgf("%s: sparse components are only accepted by hybrid indexes", what)
		}
		return nil
	}
	if len(indices) == 0 {
		return invalidArgf("%s: sparse indices and values are required for hybrid index %q", what, info.Name)
	}
	if len(indices) != len(values) {
		return invalidArgf("%s: sparse indices (%d) and values (%d) differ in length", what, len(indices), len(values))
	}
	return nil
}

func validateSearch(info IndexInfo, req *SearchRequest) error {
	if req.TopK == 0 {
		req.TopK = DefaultTopK
	}
	if req.TopK < 0 {
		return invalidArgf("top_k must be positive, got %d", req.TopK)
	}
	if info.HasEmbeddingModel() {
		if req.Text == "" {
			return invalidArgf("query text is required for index %q", info.Name)
		}
		if len(req.Vector) > 0 || len(req.SparseIndices) > 0 || len(req.SparseValues) > 0 {
			return invalidArgf("query vectors are computed by the service for index %q and must not be supplied", info.Name)
		}
		return nil
	}
	if req.Text != "" {
		return invalidArgf("index %q has no embedding model; pass a query vector instead of text", info.Name)
	}
	if len(req.Vector) != info.Dimension {
		return invalidArgf("query dimension mismatch: expected %d, got %d", info.Dimension, len(req.Vector))
	}
	return validateSparse(info, req.SparseIndices, req.SparseValues, "query")
}

func validateScale(info IndexInfo, dense, sparse float64) error {
	if !info.IsHybrid() {
		return invalidArgf("similarity scale can only be set on hybrid indexes; %q is %s", info.Name, info.FeaturesType)
	}
	for _, v := range []float64{dense, sparse} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return invalidArgf("similarity scales must be finite and non-negative, got dense=%v sparse=%v", dense, sparse)
		}
	}
	return nil
}
