// Package emulator is an in-memory stand-in for the PreciseSearch index
// service and its embeddings endpoint. It speaks the same HTTP/JSON
// contract, scores by brute force, and is used by tests and by
// `precise emulator` for offline work.
package emulator

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vectorstack/internal/logging"
	"vectorstack/internal/metrics"
)

// Options configures an Emulator.
type Options struct {
	// TransitionDelay is how long asynchronous lifecycle changes take.
	// Zero applies them before the triggering request returns.
	TransitionDelay time.Duration
	// Models maps embedding model names to dimensions. Defaults to DefaultModels.
	Models map[string]int
	// APIKey, when set, is required as a bearer token (or in the
	// embeddings request body).
	APIKey string
	Logger *zap.Logger
}

type fault struct {
	status    int
	errorType string
	remaining int
}

// Emulator serves the PreciseSearch API from memory.
type Emulator struct {
	store  *store
	apiKey string
	logger *zap.Logger
	router chi.Router
	server *http.Server

	mu    sync.Mutex
	fault *fault
}

// New creates an emulator. Call Handler to mount it or Start to listen.
func New(opts Options) *Emulator {
	e := &Emulator{
		store:  newStore(opts.Models, opts.TransitionDelay),
		apiKey: opts.APIKey,
		logger: logging.OrNop(opts.Logger),
	}
	e.router = e.routes()
	return e
}

func (e *Emulator) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(e.requestID)
	r.Use(e.accessLog)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, &apiError{status: http.StatusNotFound, kind: "NotFoundError", msg: "no route for " + r.URL.Path})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, &apiError{status: http.StatusMethodNotAllowed, kind: "MethodNotAllowedError", msg: r.Method + " is not allowed on " + r.URL.Path})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(e.injectFaults)
		r.Post("/embeddings", e.handleEmbed)

		r.Route("/precise_search", func(r chi.Router) {
			r.Use(e.authenticate)
			r.Post("/create_index", e.handleCreateIndex)
			r.Get("/list_indexes", e.handleListIndexes)
			r.Get("/info/{name}", e.handleInfo)
			r.Post("/upsert/{name}", e.handleUpsert)
			r.Post("/search/{name}", e.handleSearch)
			r.Post("/set_similarity_scale/{name}", e.handleSetScale)
			r.Delete("/delete_vectors/{name}", e.handleDeleteVectors)
			r.Post("/optimize_for_latency/{name}", e.handleOptimize)
			r.Delete("/delete_index/{name}", e.handleDeleteIndex)
		})
	})

	return r
}

// Handler returns the HTTP handler serving every endpoint.
func (e *Emulator) Handler() http.Handler { return e.router }

// Start listens on addr and blocks until the server stops.
func (e *Emulator) Start(addr string) error {
	e.server = &http.Server{
		Addr:              addr,
		Handler:           e.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	e.logger.Info("Starting emulator", zap.String("addr", addr))
	return e.server.ListenAndServe()
}

// Stop gracefully shuts down a server started with Start and cancels
// pending lifecycle transitions.
func (e *Emulator) Stop(ctx context.Context) error {
	e.Close()
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

// Close cancels pending lifecycle transitions.
func (e *Emulator) Close() { e.store.close() }

// FailNext makes the next n API requests fail with status. A non-empty
// errorType renders the JSON error envelope with that type; an empty one
// sends a plain-text body, like a gateway would.
func (e *Emulator) FailNext(status int, errorType string, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 {
		e.fault = nil
		return
	}
	e.fault = &fault{status: status, errorType: errorType, remaining: n}
}

// BaseURL returns the index API root for an emulator served at serverURL.
func BaseURL(serverURL string) string {
	return strings.TrimSuffix(serverURL, "/") + "/precise_search/"
}

// EmbeddingsURL returns the embeddings endpoint for an emulator served at serverURL.
func EmbeddingsURL(serverURL string) string {
	return strings.TrimSuffix(serverURL, "/") + "/embeddings"
}

func (e *Emulator) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("request-id", id)
		next.ServeHTTP(w, r)
	})
}

func (e *Emulator) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		op := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			op = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.Requests.WithLabelValues(op, strconv.Itoa(status)).Inc()
		e.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", op),
			zap.Int("status", status),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", w.Header().Get("request-id")),
		)
	})
}

func (e *Emulator) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		f := e.fault
		if f != nil {
			f.remaining--
			if f.remaining <= 0 {
				e.fault = nil
			}
		}
		e.mu.Unlock()

		if f == nil {
			next.ServeHTTP(w, r)
			return
		}
		if f.errorType == "" {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(http.StatusText(f.status)))
			return
		}
		respondError(w, &apiError{status: f.status, kind: f.errorType, msg: "injected fault"})
	})
}

func (e *Emulator) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if e.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+e.apiKey {
			respondError(w, &apiError{status: http.StatusUnauthorized, kind: "AuthenticationError", msg: "invalid api key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
