package main

import (
	"context"
	"flag"
	"fmt"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"time"

	"vectorstack/config"
	"vectorstack/internal/adapter/analyzer"
	"vectorstack/internal/adapter/chunker"
	"vectorstack/internal/adapter/emulator"
	"vectorstack/internal/adapter/fs"
	"vectorstack/internal/adapter/store"
	"vectorstack/internal/domain"
	"vectorstack/internal/usecase"
	"vectorstack/precise"
)

func main() {
	dir := flag.String("dir", ".", "Project directory (config and files to ingest)")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	runs := flag.Int("n", 20, "Number of timed query repetitions")
	emulate := flag.Bool("emulate", false, "Ingest -dir into an in-process emulator instead of using the configured service")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./docs -q \"query\" [-emulate]")
		fmt.Println("\nReports:")
		fmt.Println("  1. Result quality (similarity of the top matches)")
		fmt.Println("  2. Query latency over -n repetitions (p50, p95, max)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fail("Error loading config", err)
	}
	ctx := context.Background()

	opts := []precise.Option{
		precise.WithBaseURL(cfg.API.BaseURL),
		precise.WithEmbeddingsURL(cfg.API.EmbeddingsURL),
		precise.WithTimeout(cfg.API.Timeout),
	}
	if *emulate {
		em := emulator.New(emulator.Options{Models: cfg.Emulator.Models})
		srv := httptest.NewServer(em.Handler())
		defer srv.Close()
		defer em.Close()
		opts = []precise.Option{
			precise.WithAPIKey("benchmark"),
			precise.WithBaseURL(emulator.BaseURL(srv.URL)),
			precise.WithEmbeddingsURL(emulator.EmbeddingsURL(srv.URL)),
		}
	} else if key := cfg.APIKey(); key != "" {
		opts = append(opts, precise.WithAPIKey(key))
	}

	client, err := precise.NewClient(opts...)
	if err != nil {
		fail("Client error", err)
	}
	if *emulate {
		if err := ingestInto(ctx, client, cfg, *dir); err != nil {
			fail("Ingest error", err)
		}
	}

	idx, err := client.Index(ctx, cfg.Index.Name)
	if err != nil {
		fail("Index error", err)
	}
	info := idx.Cached()
	if !info.HasEmbeddingModel() {
		fail("Benchmark setup", fmt.Errorf("index %q has no server-side embedding model", info.Name))
	}

	fmt.Println("PRECISESEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Index:   %s (%s, %s)\n", info.Name, info.Metric, info.FeaturesType)
	fmt.Printf("Model:   %s (%d dimensions)\n", info.EmbeddingModelName, info.Dimension)
	fmt.Printf("Records: %d\n\n", info.NumRecords)

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	retrieve := usecase.NewRetrieveUseCase(idx, info, nil, 0)
	latencies := make([]time.Duration, 0, *runs)
	var hits []domain.Hit
	for i := 0; i < max(*runs, 1); i++ {
		start := time.Now()
		hits, err = retrieve.Retrieve(ctx, *query, *topK, false)
		if err != nil {
			fail("Search error", err)
		}
		latencies = append(latencies, time.Since(start))
	}
	if len(hits) == 0 {
		fmt.Println("No results.")
		return
	}

	fmt.Printf("Top %d matches:\n\n", len(hits))
	totalScore := 0.0
	for i, h := range hits {
		preview := truncate(strings.ReplaceAll(h.Text, "\n", " "), 150)
		totalScore += h.Score

		fmt.Printf("%d. [%s %.3f] %s:L%d-%d\n", i+1, rating(h.Score), h.Score, h.Path, h.StartLine, h.EndLine)
		fmt.Printf("   %s\n\n", preview)
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY:\n")
	fmt.Printf("  Average similarity: %.3f\n", totalScore/float64(len(hits)))
	fmt.Printf("  Top-1 similarity:   %.3f\n", hits[0].Score)
	fmt.Printf("LATENCY (%d queries):\n", len(latencies))
	fmt.Printf("  p50: %s\n", percentile(latencies, 0.50))
	fmt.Printf("  p95: %s\n", percentile(latencies, 0.95))
	fmt.Printf("  max: %s\n", latencies[len(latencies)-1])
}

func ingestInto(ctx context.Context, client *precise.Client, cfg *config.Config, dir string) error {
	if _, err := client.CreateIndex(ctx, precise.CreateIndexRequest{
		Name:               cfg.Index.Name,
		Metric:             precise.Metric(cfg.Index.Metric),
		FeaturesType:       precise.FeaturesType(cfg.Index.FeaturesType),
		EmbeddingModelName: cfg.Index.EmbeddingModel,
		Dimension:          cfg.Index.Dimension,
	}); err != nil {
		return err
	}
	idx, err := client.Index(ctx, cfg.Index.Name)
	if err != nil {
		return err
	}
	tmp, err := os.MkdirTemp("", "precise-bench")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)
	st, err := store.NewBoltStore(tmp + "/state.db")
	if err != nil {
		return err
	}
	defer st.Close()

	tok := analyzer.NewTokenizer()
	ingest := usecase.NewIngestUseCase(idx, st,
		fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes),
		chunker.NewLineChunker(cfg.Ingest.ChunkTokens, cfg.Ingest.ChunkOverlap, tok),
		usecase.WithBatchSize(cfg.Ingest.BatchSize),
	)
	start := time.Now()
	stats, err := ingest.Ingest(ctx, dir, usecase.IngestOptions{})
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %d files (%d records) in %s\n\n", stats.FilesIngested, stats.Upserted, time.Since(start).Round(time.Millisecond))
	return nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func rating(score float64) string {
	switch {
	case score > 0.7:
		return "HIGH"
	case score > 0.5:
		return "GOOD"
	case score > 0.3:
		return "OK"
	}
	return "LOW"
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	i := int(float64(len(sorted)-1) * p)
	return sorted[i]
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
