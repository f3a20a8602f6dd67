package analyzer

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer splits text into normalized words using UAX#29 word boundaries.
type Tokenizer struct {
	stopwords map[string]struct{}
	minLen    int
}

// NewTokenizer creates a Tokenizer that drops English stopwords and
// single-character words from Tokenize output.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
		minLen:    2,
	}
}

// Words returns every word-like segment of text, NFKC-normalized and
// lowercased, in order. Whitespace and punctuation segments are skipped.
func (t *Tokenizer) Words(text string) []string {
	segs := words.FromString(normalize(text))
	var out []string
	for segs.Next() {
		seg := segs.Value()
		if isWord(seg) {
			out = append(out, seg)
		}
	}
	return out
}

// Tokenize returns the searchable terms of text.
func (t *Tokenizer) Tokenize(text string) []string {
	ws := t.Words(text)
	tokens := ws[:0]
	for _, w := range ws {
		if len([]rune(w)) < t.minLen {
			continue
		}
		if _, stop := t.stopwords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// CountTokens estimates the model token count of text, assuming an
// average of 1.3 subword tokens per word.
func (t *Tokenizer) CountTokens(text string) int {
	n := len(t.Words(text))
	if n == 0 {
		return 0
	}
	return int(float64(n) * 1.3)
}

func normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

func isWord(seg string) bool {
	for _, r := range seg {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
