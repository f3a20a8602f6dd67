package usecase

import (
	"fmt"
	"sort"
	"strings"

	"vectorstack/internal/domain"
	"vectorstack/internal/port"
)

// PackUseCase selects hits that fit a token budget and merges neighbouring
// chunks of the same file into single snippets.
type PackUseCase struct {
	counter port.TokenCounter
}

func NewPackUseCase(counter port.TokenCounter) *PackUseCase {
	return &PackUseCase{counter: counter}
}

// Pack greedily takes hits by score per token until budget is spent.
// Hits without source text are ignored.
func (u *PackUseCase) Pack(query string, hits []domain.Hit, budget int) domain.PackedContext {
	packed := domain.PackedContext{
		Query:        query,
		BudgetTokens: budget,
		Snippets:     []domain.Snippet{},
	}

	type ranked struct {
		hit     domain.Hit
		tokens  int
		utility float64
	}
	candidates := make([]ranked, 0, len(hits))
	for _, h := range hits {
		if h.Text == "" {
			continue
		}
		tokens := max(u.counter.CountTokens(h.Text), 1)
		candidates = append(candidates, ranked{hit: h, tokens: tokens, utility: h.Score / float64(tokens)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].utility > candidates[j].utility
	})

	var selected []domain.Hit
	used := 0
	for _, c := range candidates {
		if used+c.tokens > budget {
			continue
		}
		selected = append(selected, c.hit)
		used += c.tokens
	}

	for _, h := range mergeAdjacent(selected) {
		snippet := domain.Snippet{
			ID:    h.ID,
			Path:  h.Path,
			Score: h.Score,
			Text:  h.Text,
		}
		if h.StartLine > 0 {
			snippet.Range = fmt.Sprintf("L%d-%d", h.StartLine, h.EndLine)
		}
		packed.Snippets = append(packed.Snippets, snippet)
		packed.UsedTokens += u.counter.CountTokens(h.Text)
	}
	return packed
}

// mergeAdjacent joins hits of the same path whose line ranges touch or
// overlap. Overlapping lines are kept once. Hits without a source location
// pass through unmerged. The result is ordered by best score, then path
// and line.
func mergeAdjacent(hits []domain.Hit) []domain.Hit {
	byPath := make(map[string][]domain.Hit)
	var paths []string
	var out []domain.Hit
	for _, h := range hits {
		if h.Path == "" || h.StartLine <= 0 || h.EndLine < h.StartLine {
			out = append(out, h)
			continue
		}
		if _, ok := byPath[h.Path]; !ok {
			paths = append(paths, h.Path)
		}
		byPath[h.Path] = append(byPath[h.Path], h)
	}

	for _, path := range paths {
		group := byPath[path]
		sort.Slice(group, func(i, j int) bool { return group[i].StartLine < group[j].StartLine })

		cur := group[0]
		for _, next := range group[1:] {
			if next.StartLine > cur.EndLine+1 {
				out = append(out, cur)
				cur = next
				continue
			}
			if next.EndLine > cur.EndLine {
				lines := strings.Split(next.Text, "\n")
				skip := cur.EndLine - next.StartLine + 1
				if skip < len(lines) {
					cur.Text += "\n" + strings.Join(lines[skip:], "\n")
				}
				cur.EndLine = next.EndLine
			}
			cur.Score = max(cur.Score, next.Score)
			cur.ID = ""
		}
		out = append(out, cur)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].StartLine < out[j].StartLine
	})
	return out
}
