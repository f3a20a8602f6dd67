package embedding

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"vectorstack/internal/adapter/emulator"
	"vectorstack/precise"
)

func newTestEmbedder(t *testing.T) *PreciseEmbedder {
	t.Helper()
	em := emulator.New(emulator.Options{Models: map[string]int{"tiny": 8}})
	srv := httptest.NewServer(em.Handler())
	t.Cleanup(srv.Close)

	client, err := precise.NewClient(
		precise.WithAPIKey("k"),
		precise.WithBaseURL(emulator.BaseURL(srv.URL)),
		precise.WithEmbeddingsURL(emulator.EmbeddingsURL(srv.URL)),
	)
	if err != nil {
		t.Fatal(err)
	}
	e, err := NewPreciseEmbedder(client, "tiny", "")
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestPreciseEmbedder_SplitsLargeInputs(t *testing.T) {
	e := newTestEmbedder(t)

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("text number %d", i)
	}
	vecs, err := e.Embed(context.Background(), texts, false)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 250 {
		t.Fatalf("expected 250 vectors, got %d", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 8 {
			t.Fatalf("vector %d has dimension %d", i, len(v))
		}
	}
	if e.ModelName() != "tiny" {
		t.Errorf("unexpected model name %q", e.ModelName())
	}
}

func TestPreciseEmbedder_Empty(t *testing.T) {
	e := newTestEmbedder(t)
	vecs, err := e.Embed(context.Background(), nil, true)
	if err != nil || vecs != nil {
		t.Errorf("expected nil, nil for no texts; got %v, %v", vecs, err)
	}
}

func TestNewPreciseEmbedder_RequiresModel(t *testing.T) {
	if _, err := NewPreciseEmbedder(nil, "", ""); err == nil {
		t.Error("expected error without a model")
	}
}
