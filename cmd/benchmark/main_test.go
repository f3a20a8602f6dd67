package main

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 150); got != "short" {
		t.Errorf("expected short text unchanged, got %q", got)
	}

	long := strings.Repeat("ü", 200)
	got := truncate(long, 150)
	if !utf8.ValidString(got) {
		t.Fatalf("expected valid UTF-8, got %q", got)
	}
	if want := strings.Repeat("ü", 150) + "..."; got != want {
		t.Errorf("expected 150 runes plus ellipsis, got %d runes", utf8.RuneCountInString(got))
	}

	mixed := strings.Repeat("a", 149) + "日本"
	if got := truncate(mixed, 150); got != strings.Repeat("a", 149)+"日..." {
		t.Errorf("expected cut on a rune boundary, got %q", got)
	}
}
