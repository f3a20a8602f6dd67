package retriever

import (
	"vectorstack/internal/domain"
	"vectorstack/internal/port"
)

// MMRReranker diversifies hits with Maximal Marginal Relevance over the
// token sets of their text. Overlapping chunks of one file tend to come
// back together; MMR spreads the selection across sources.
type MMRReranker struct {
	tokenizer    port.Tokenizer
	lambda       float64
	dedupJaccard float64
}

// NewMMRReranker returns a reranker. lambda weighs relevance against
// novelty; candidates whose Jaccard similarity to a selected hit exceeds
// dedupJaccard are dropped.
func NewMMRReranker(tokenizer port.Tokenizer, lambda, dedupJaccard float64) *MMRReranker {
	return &MMRReranker{
		tokenizer:    tokenizer,
		lambda:       lambda,
		dedupJaccard: dedupJaccard,
	}
}

// Rerank selects up to k hits.
// MMR(c) = λ * relevance(c) - (1-λ) * max_similarity(c, selected)
func (r *MMRReranker) Rerank(candidates []domain.Hit, k int) []domain.Hit {
	if len(candidates) == 0 {
		return nil
	}
	k = min(k, len(candidates))

	maxScore := candidates[0].Score
	for _, c := range candidates {
		maxScore = max(maxScore, c.Score)
	}
	if maxScore <= 0 {
		maxScore = 1
	}

	tokens := make([]map[string]struct{}, len(candidates))
	for i, c := range candidates {
		tokens[i] = tokenSet(r.tokenizer.Tokenize(c.Text))
	}

	selected := make([]int, 0, k)
	used := make([]bool, len(candidates))
	for len(selected) < k {
		bestIdx := -1
		bestMMR := -1e9

		for i, c := range candidates {
			if used[i] {
				continue
			}
			maxSim := 0.0
			for _, s := range selected {
				maxSim = max(maxSim, jaccard(tokens[i], tokens[s]))
			}
			if maxSim > r.dedupJaccard {
				continue
			}
			mmr := r.lambda*(c.Score/maxScore) - (1-r.lambda)*maxSim
			if mmr > bestMMR {
				bestMMR = mmr
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		selected = append(selected, bestIdx)
		used[bestIdx] = true
	}

	out := make([]domain.Hit, len(selected))
	for i, idx := range selected {
		out[i] = candidates[idx]
	}
	return out
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// jaccard treats two empty sets as different, so hits without text are
// never deduplicated against each other.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for t := range small {
		if _, ok := large[t]; ok {
			intersection++
		}
	}
	return float64(intersection) / float64(len(a)+len(b)-intersection)
}
