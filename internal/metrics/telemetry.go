package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Throughput
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "precise_emulator_requests_total",
		Help: "Requests handled by the emulator, by operation and status code",
	}, []string{"op", "code"})

	EmbeddedTexts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "precise_emulator_embedded_texts_total",
		Help: "Texts encoded by the embeddings endpoint",
	})

	// Latency
	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "precise_emulator_search_duration_seconds",
		Help:    "Time taken to rank a search request",
		Buckets: prometheus.DefBuckets,
	})

	UpsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "precise_emulator_upsert_duration_seconds",
		Help:    "Time taken to apply an upsert batch",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
	})

	// State
	Records = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "precise_emulator_records",
		Help: "Records currently stored per index",
	}, []string{"index"})

	Indexes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "precise_emulator_indexes",
		Help: "Indexes currently known to the emulator",
	})
)
