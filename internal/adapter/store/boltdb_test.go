package store

import (
	"path/filepath"
	"testing"
	"time"

	"vectorstack/config"
	"vectorstack/internal/domain"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	st, err := NewBoltStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestBoltStore_DocRoundTrip(t *testing.T) {
	st := openTestStore(t)

	if _, ok, err := st.GetDoc("a.md"); err != nil || ok {
		t.Fatalf("expected missing doc, got ok=%v err=%v", ok, err)
	}

	doc := domain.Document{
		Path:     "a.md",
		ModTime:  time.Unix(1700000000, 0).UTC(),
		Size:     42,
		ChunkIDs: []string{"c1", "c2"},
	}
	if err := st.PutDoc(doc); err != nil {
		t.Fatalf("PutDoc: %v", err)
	}
	got, ok, err := st.GetDoc("a.md")
	if err != nil || !ok {
		t.Fatalf("GetDoc: ok=%v err=%v", ok, err)
	}
	if !got.ModTime.Equal(doc.ModTime) || got.Size != 42 || len(got.ChunkIDs) != 2 {
		t.Errorf("unexpected doc %+v", got)
	}

	if err := st.DeleteDoc("a.md"); err != nil {
		t.Fatalf("DeleteDoc: %v", err)
	}
	if _, ok, _ := st.GetDoc("a.md"); ok {
		t.Error("expected doc to be deleted")
	}
}

func TestBoltStore_ListAndClear(t *testing.T) {
	st := openTestStore(t)
	for _, p := range []string{"b.md", "a.md", "c/d.md"} {
		if err := st.PutDoc(domain.Document{Path: p}); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := st.ListDocs()
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 || docs[0].Path != "a.md" || docs[2].Path != "c/d.md" {
		t.Errorf("expected docs sorted by path, got %+v", docs)
	}

	if err := st.Clear(); err != nil {
		t.Fatal(err)
	}
	docs, _ = st.ListDocs()
	if len(docs) != 0 {
		t.Errorf("expected empty manifest after Clear, got %d", len(docs))
	}
}

func TestBoltStore_NeedsRebuild(t *testing.T) {
	st := openTestStore(t)
	cfg := config.DefaultConfig()

	if rebuild, _, err := st.NeedsRebuild(cfg); err != nil || rebuild {
		t.Fatalf("fresh store should not need a rebuild: %v %v", rebuild, err)
	}
	if err := st.MarkCurrent(cfg); err != nil {
		t.Fatal(err)
	}
	if rebuild, _, _ := st.NeedsRebuild(cfg); rebuild {
		t.Error("unchanged config should not need a rebuild")
	}

	cfg.Ingest.ChunkTokens = 999
	rebuild, reason, _ := st.NeedsRebuild(cfg)
	if !rebuild || reason == "" {
		t.Errorf("expected rebuild after chunking change, got %v %q", rebuild, reason)
	}

	if err := st.SetSchemaInfo(&SchemaInfo{Version: CurrentSchemaVersion + 1}); err != nil {
		t.Fatal(err)
	}
	if rebuild, _, _ := st.NeedsRebuild(config.DefaultConfig()); !rebuild {
		t.Error("expected rebuild for newer schema")
	}
}

func TestComputeConfigHash_IgnoresUnrelatedSettings(t *testing.T) {
	a := config.DefaultConfig()
	b := config.DefaultConfig()
	b.Search.TopK = 99
	b.Logging.Level = "debug"
	if ComputeConfigHash(a) != ComputeConfigHash(b) {
		t.Error("search and logging settings should not affect the hash")
	}
}
