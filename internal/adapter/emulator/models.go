package emulator

import (
	"encoding/base64"
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/x448/float16"

	"vectorstack/internal/adapter/analyzer"
)

// DefaultModels is the embedding model catalog served when Options.Models
// is empty: model name to output dimension.
var DefaultModels = map[string]int{
	"vstackai-law-1":  384,
	"vstackai-code-1": 256,
}

// encoder is a deterministic stand-in for a real embedding model. Dense
// vectors use signed feature hashing of word unigrams; sparse vectors are
// the term frequencies analyzer.SparseEncoder computes. Texts that share
// words get similar vectors.
type encoder struct {
	tok    *analyzer.Tokenizer
	sparse *analyzer.SparseEncoder
}

func newEncoder() *encoder {
	tok := analyzer.NewTokenizer()
	return &encoder{tok: tok, sparse: analyzer.NewSparseEncoder(tok)}
}

// Dense returns an L2-normalized vector of length dim.
func (e *encoder) Dense(text string, dim int) []float32 {
	vec := make([]float32, dim)
	if dim <= 0 {
		return vec
	}
	for _, w := range e.tok.Words(text) {
		h := hash64(w)
		slot := int(h % uint64(dim))
		if h&(1<<63) != 0 {
			vec[slot] -= 1
		} else {
			vec[slot] += 1
		}
	}
	normalizeL2(vec)
	return vec
}

// Sparse returns term-frequency components keyed by term hash.
func (e *encoder) Sparse(text string) ([]uint32, []float32) {
	return e.sparse.Encode(text)
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func normalizeL2(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}

// encodeFloat16 packs rows as little-endian IEEE half floats, base64 encoded.
func encodeFloat16(rows [][]float32) string {
	var n int
	for _, r := range rows {
		n += len(r)
	}
	buf := make([]byte, 0, n*2)
	for _, r := range rows {
		for _, x := range r {
			buf = binary.LittleEndian.AppendUint16(buf, float16.Fromfloat32(x).Bits())
		}
	}
	return base64.StdEncoding.EncodeToString(buf)
}
