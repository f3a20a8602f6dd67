package usecase

import (
	"testing"

	"vectorstack/internal/adapter/analyzer"
	"vectorstack/internal/domain"
)

func TestPackBudget(t *testing.T) {
	tok := analyzer.NewTokenizer()
	packUC := NewPackUseCase(tok)

	hits := []domain.Hit{
		{ID: "c1", Path: "a.md", StartLine: 1, EndLine: 1, Score: 1.0, Text: "short chunk of text"},
		{ID: "c2", Path: "b.md", StartLine: 20, EndLine: 30, Score: 0.9,
			Text: "another chunk with quite a lot more text here for testing the budget limits of packing"},
		{ID: "c3", Path: "c.md", StartLine: 1, EndLine: 2, Score: 0.5},
	}

	budget := tok.CountTokens(hits[0].Text) + 1
	packed := packUC.Pack("query", hits, budget)

	if packed.UsedTokens > budget {
		t.Errorf("used %d tokens, budget was %d", packed.UsedTokens, budget)
	}
	if len(packed.Snippets) != 1 || packed.Snippets[0].Path != "a.md" {
		t.Fatalf("expected only the short chunk, got %+v", packed.Snippets)
	}
	if packed.Snippets[0].Range != "L1-1" {
		t.Errorf("unexpected range %q", packed.Snippets[0].Range)
	}

	empty := packUC.Pack("query", nil, 100)
	if empty.Snippets == nil || len(empty.Snippets) != 0 {
		t.Errorf("expected empty non-nil snippets, got %+v", empty.Snippets)
	}
}

func TestMergeAdjacent(t *testing.T) {
	hits := []domain.Hit{
		{Path: "a.md", StartLine: 4, EndLine: 6, Score: 0.4, Text: "four\nfive\nsix"},
		{Path: "a.md", StartLine: 1, EndLine: 4, Score: 0.7, Text: "one\ntwo\nthree\nfour"},
		{Path: "a.md", StartLine: 10, EndLine: 10, Score: 0.9, Text: "ten"},
		{Path: "b.md", StartLine: 1, EndLine: 1, Score: 0.8, Text: "bee"},
	}

	merged := mergeAdjacent(hits)
	if len(merged) != 3 {
		t.Fatalf("expected 3 snippets, got %+v", merged)
	}
	if merged[0].Text != "ten" || merged[1].Path != "b.md" {
		t.Errorf("expected score order, got %+v", merged)
	}
	joined := merged[2]
	if joined.StartLine != 1 || joined.EndLine != 6 || joined.Score != 0.7 {
		t.Errorf("unexpected merge bounds %+v", joined)
	}
	if joined.Text != "one\ntwo\nthree\nfour\nfive\nsix" {
		t.Errorf("overlapping line duplicated: %q", joined.Text)
	}
}

func TestPackHitsWithoutLocation(t *testing.T) {
	packUC := NewPackUseCase(analyzer.NewTokenizer())

	hits := []domain.Hit{
		{ID: "tort-1", Score: 0.9, Text: "negligence requires a duty of care"},
		{ID: "tax-1", Score: 0.8, Text: "capital gains are taxed on sale"},
		{ID: "contract-1", Score: 0.7, Text: "offer acceptance and consideration"},
	}

	packed := packUC.Pack("q", hits, 1000)
	if len(packed.Snippets) != 3 {
		t.Fatalf("expected 3 snippets for 3 unrelated hits, got %d", len(packed.Snippets))
	}
	for i, s := range packed.Snippets {
		if s.ID != hits[i].ID || s.Text != hits[i].Text {
			t.Errorf("snippet %d: got %+v, want hit %s", i, s, hits[i].ID)
		}
		if s.Range != "" {
			t.Errorf("snippet %d: expected no range, got %q", i, s.Range)
		}
	}
}
