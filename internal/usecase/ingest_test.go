package usecase

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vectorstack/internal/adapter/analyzer"
	"vectorstack/internal/adapter/cache"
	"vectorstack/internal/adapter/chunker"
	"vectorstack/internal/adapter/embedding"
	"vectorstack/internal/adapter/emulator"
	"vectorstack/internal/adapter/fs"
	"vectorstack/internal/adapter/store"
	"vectorstack/precise"
)

type fixture struct {
	client *precise.Client
	index  *precise.Index
	store  *store.BoltStore
	root   string
}

func newFixture(t *testing.T, req precise.CreateIndexRequest) *fixture {
	t.Helper()
	em := emulator.New(emulator.Options{Models: map[string]int{"vstackai-law-1": 64, "tiny": 32}})
	srv := httptest.NewServer(em.Handler())
	t.Cleanup(func() {
		srv.Close()
		em.Close()
	})

	client, err := precise.NewClient(
		precise.WithAPIKey("k"),
		precise.WithBaseURL(emulator.BaseURL(srv.URL)),
		precise.WithEmbeddingsURL(emulator.EmbeddingsURL(srv.URL)),
	)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := client.CreateIndex(ctx, req); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	idx, err := client.Index(ctx, req.Name)
	if err != nil {
		t.Fatal(err)
	}

	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	return &fixture{client: client, index: idx, store: st, root: t.TempDir()}
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (f *fixture) ingester(opts ...IngestOption) *IngestUseCase {
	tok := analyzer.NewTokenizer()
	return NewIngestUseCase(
		f.index,
		f.store,
		fs.NewWalker([]string{"**/*.md", "**/*.txt"}, nil),
		chunker.NewLineChunker(64, 8, tok),
		opts...,
	)
}

func (f *fixture) numRecords(t *testing.T) int {
	t.Helper()
	info, err := f.index.Info(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return info.NumRecords
}

func TestIngest_IncrementalSync(t *testing.T) {
	f := newFixture(t, precise.CreateIndexRequest{Name: "docs", EmbeddingModelName: "vstackai-law-1"})
	ctx := context.Background()
	f.write(t, "a.md", "Negligence creates liability for damages.\nCourts weigh the duty of care.")
	f.write(t, "b.txt", "Capital gains are taxed when assets are sold.")
	f.write(t, "skip.go", "package skip")

	changes := 0
	u := f.ingester(OnChange(func() { changes++ }))

	var progressed int
	stats, err := u.Ingest(ctx, f.root, IngestOptions{Progress: func(done, total int) { progressed = done }})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.FilesIngested != 2 || stats.Upserted != 2 || len(stats.Errors) != 0 {
		t.Fatalf("unexpected first run stats %+v", stats)
	}
	if progressed != 2 {
		t.Errorf("expected progress to reach 2, got %d", progressed)
	}
	if f.numRecords(t) != 2 {
		t.Errorf("expected 2 records in index, got %d", f.numRecords(t))
	}

	stats, err = u.Ingest(ctx, f.root, IngestOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesSkipped != 2 || stats.Upserted != 0 {
		t.Errorf("expected unchanged files to be skipped, got %+v", stats)
	}

	if err := os.Remove(filepath.Join(f.root, "b.txt")); err != nil {
		t.Fatal(err)
	}
	stats, err = u.Ingest(ctx, f.root, IngestOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesRemoved != 1 || stats.Deleted != 1 {
		t.Errorf("expected vanished file to be removed, got %+v", stats)
	}
	if f.numRecords(t) != 1 {
		t.Errorf("expected 1 record left, got %d", f.numRecords(t))
	}
	if changes != 2 {
		t.Errorf("expected 2 change notifications, got %d", changes)
	}

	stats, err = u.Ingest(ctx, f.root, IngestOptions{Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesIngested != 1 {
		t.Errorf("expected forced run to re-ingest, got %+v", stats)
	}
}

func TestIngest_ChangedFileDropsStaleRecords(t *testing.T) {
	f := newFixture(t, precise.CreateIndexRequest{Name: "docs", EmbeddingModelName: "vstackai-law-1"})
	ctx := context.Background()
	path := f.write(t, "a.md", "line one\nline two")
	u := f.ingester()

	if _, err := u.Ingest(ctx, f.root, IngestOptions{}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("line one\nline two\nline three"), 0644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	stats, err := u.Ingest(ctx, f.root, IngestOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesIngested != 1 || stats.Deleted != 1 {
		t.Errorf("expected old chunk to be replaced, got %+v", stats)
	}
	if f.numRecords(t) != 1 {
		t.Errorf("expected a single record after re-chunking, got %d", f.numRecords(t))
	}

	doc, ok, _ := f.store.GetDoc("a.md")
	if !ok || len(doc.ChunkIDs) != 1 {
		t.Errorf("expected manifest to track the new chunk, got %+v", doc)
	}
}

func TestIngest_ClientSideVectors(t *testing.T) {
	f := newFixture(t, precise.CreateIndexRequest{Name: "vecs", Dimension: 32, FeaturesType: precise.FeaturesHybrid})
	ctx := context.Background()
	f.write(t, "a.md", "sparse and dense retrieval together")

	if _, err := f.ingester().Ingest(ctx, f.root, IngestOptions{}); err == nil {
		t.Fatal("expected an error without an embedder")
	}

	emb, err := embedding.NewPreciseEmbedder(f.client, "tiny", "")
	if err != nil {
		t.Fatal(err)
	}
	stats, err := f.ingester(WithEmbedder(emb)).Ingest(ctx, f.root, IngestOptions{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.Upserted != 1 {
		t.Errorf("expected 1 record, got %+v", stats)
	}

	r := NewRetrieveUseCase(f.index, f.index.Cached(), emb, 0)
	hits, err := r.Retrieve(ctx, "dense retrieval", 5, false)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(hits) != 1 || hits[0].Path != "a.md" || hits[0].StartLine != 1 {
		t.Errorf("unexpected hits %+v", hits)
	}
}

func TestIngestFileAndRemoveFile(t *testing.T) {
	f := newFixture(t, precise.CreateIndexRequest{Name: "docs", EmbeddingModelName: "vstackai-law-1"})
	ctx := context.Background()
	u := f.ingester(WithIngestLogger(nil))

	path := f.write(t, "notes/new.md", "freshly written note")
	stats, err := u.IngestFile(ctx, f.root, path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if stats.FilesIngested != 1 || f.numRecords(t) != 1 {
		t.Errorf("expected file to be ingested, got %+v", stats)
	}

	ignored := f.write(t, "main.go", "package main")
	if stats, _ := u.IngestFile(ctx, f.root, ignored); stats.FilesSkipped != 1 {
		t.Errorf("expected non-matching file to be skipped, got %+v", stats)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	stats, err = u.RemoveFile(ctx, f.root, path)
	if err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	if stats.FilesRemoved != 1 || f.numRecords(t) != 0 {
		t.Errorf("expected records to be removed, got %+v", stats)
	}
	if _, ok, _ := f.store.GetDoc("notes/new.md"); ok {
		t.Error("expected manifest entry to be removed")
	}
}

func TestIngest_InvalidatesSearchCache(t *testing.T) {
	f := newFixture(t, precise.CreateIndexRequest{Name: "docs", EmbeddingModelName: "vstackai-law-1"})
	ctx := context.Background()

	qc := cache.NewQueryCache(10, time.Minute)
	searcher := cache.NewCachedSearcher("docs", f.index, qc)
	u := f.ingester(OnChange(qc.Invalidate))

	f.write(t, "a.md", "negligence and the duty of care")
	if _, err := u.Ingest(ctx, f.root, IngestOptions{}); err != nil {
		t.Fatal(err)
	}
	req := precise.SearchRequest{Text: "negligence", TopK: 5}
	results, err := searcher.Search(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	path := f.write(t, "b.md", "contributory negligence reduces damages")
	if _, err := u.IngestFile(ctx, f.root, path); err != nil {
		t.Fatal(err)
	}
	if qc.Size() != 0 {
		t.Errorf("expected cache to be emptied after ingest, has %d entries", qc.Size())
	}
	results, err = searcher.Search(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected fresh results with the new file, got %d", len(results))
	}
}
