package emulator

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vectorstack/internal/metrics"
)

func (e *Emulator) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var req createIndexRequest
	if !decode(w, r, &req) {
		return
	}
	info, err := e.store.createIndex(req)
	if err != nil {
		respondError(w, err)
		return
	}
	e.logger.Info("index created", zap.String("index", info.Name), zap.String("model", info.EmbeddingModelName))
	respondJSON(w, http.StatusOK, info)
}

func (e *Emulator) handleListIndexes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, listResponse{Indexes: e.store.list()})
}

func (e *Emulator) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := e.store.info(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (e *Emulator) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if !decode(w, r, &req) {
		return
	}
	start := time.Now()
	n, err := e.store.upsert(chi.URLParam(r, "name"), req.Records)
	if err != nil {
		respondError(w, err)
		return
	}
	metrics.UpsertDuration.Observe(time.Since(start).Seconds())
	respondJSON(w, http.StatusOK, upsertResponse{Upserted: n})
}

func (e *Emulator) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	start := time.Now()
	results, err := e.store.search(chi.URLParam(r, "name"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	respondJSON(w, http.StatusOK, searchResponse{Results: results})
}

func (e *Emulator) handleSetScale(w http.ResponseWriter, r *http.Request) {
	var req scaleRequest
	if !decode(w, r, &req) {
		return
	}
	if err := e.store.setScale(chi.URLParam(r, "name"), req); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (e *Emulator) handleDeleteVectors(w http.ResponseWriter, r *http.Request) {
	var req deleteVectorsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := e.store.deleteVectors(chi.URLParam(r, "name"), req.IDs); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (e *Emulator) handleOptimize(w http.ResponseWriter, r *http.Request) {
	status, err := e.store.optimize(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: status})
}

func (e *Emulator) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	status, err := e.store.deleteIndex(name)
	if err != nil {
		respondError(w, err)
		return
	}
	e.logger.Info("index deletion scheduled", zap.String("index", name))
	respondJSON(w, http.StatusOK, statusResponse{Status: status})
}

func (e *Emulator) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if !decode(w, r, &req) {
		return
	}
	if e.apiKey != "" && req.APIKey != e.apiKey {
		respondError(w, &apiError{status: http.StatusUnauthorized, kind: "AuthenticationError", msg: "invalid api key"})
		return
	}
	rows, err := e.store.embed(req.Model, req.Input.Texts)
	if err != nil {
		respondError(w, err)
		return
	}
	metrics.EmbeddedTexts.Add(float64(len(rows)))
	var resp embedResponse
	resp.Output.Embeddings = encodeFloat16(rows)
	respondJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into v. DELETE requests may carry a body too.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, badRequest("invalid request body: %v", err))
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, err *apiError) {
	respondJSON(w, err.status, errorResponse{Error: errorDetail{
		Type:       err.kind,
		Message:    err.msg,
		HTTPStatus: err.status,
	}})
}
