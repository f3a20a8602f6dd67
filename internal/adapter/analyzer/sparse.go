package analyzer

import "hash/fnv"

// SparseEncoder turns text into term-frequency sparse components. Each
// term is keyed by its 32-bit FNV-1a hash; components keep the order of
// first occurrence.
type SparseEncoder struct {
	tok *Tokenizer
}

func NewSparseEncoder(tok *Tokenizer) *SparseEncoder {
	if tok == nil {
		tok = NewTokenizer()
	}
	return &SparseEncoder{tok: tok}
}

func (e *SparseEncoder) Encode(text string) ([]uint32, []float32) {
	tokens := e.tok.Tokenize(text)
	pos := make(map[uint32]int, len(tokens))
	var indices []uint32
	var values []float32
	for _, t := range tokens {
		idx := TermIndex(t)
		if i, ok := pos[idx]; ok {
			values[i]++
			continue
		}
		pos[idx] = len(indices)
		indices = append(indices, idx)
		values = append(values, 1)
	}
	return indices, values
}

// TermIndex is the sparse dimension of a normalized term.
func TermIndex(term string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(term))
	return h.Sum32()
}
