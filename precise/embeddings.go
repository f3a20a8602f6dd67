package precise

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"net/http"

	"github.com/x448/float16"
)

// EmbedRequest asks the embeddings service to encode Texts with Model.
// IsQuery selects the query-side encoding for asymmetric models; Instruction
// is passed through to instruction-tuned models.
type EmbedRequest struct {
	Texts       []string
	Model       string
	IsQuery     bool
	Instruction string
}

// Embeddings holds one vector per input text, in input order.
type Embeddings struct {
	Model   string
	Vectors [][]float32
}

// Dimension returns the vector length, or 0 when empty.
func (e *Embeddings) Dimension() int {
	if e == nil || len(e.Vectors) == 0 {
		return 0
	}
	return len(e.Vectors[0])
}

func (e *Embeddings) String() string {
	if e == nil || len(e.Vectors) == 0 {
		return "Embeddings(no embeddings returned)"
	}
	return fmt.Sprintf("Embeddings(num_embeddings=%d, embedding_dims=%d)", len(e.Vectors), e.Dimension())
}

type embedInput struct {
	Texts       []string `json:"texts"`
	IsQuery     bool     `json:"is_query"`
	Instruction string   `json:"instruction"`
}

type embedRequestBody struct {
	Input  embedInput `json:"input"`
	APIKey string     `json:"api_key"`
	Model  string     `json:"model"`
}

type embedResponseBody struct {
	Output struct {
		Embeddings string `json:"embeddings"`
	} `json:"output"`
}

// Embed encodes texts into dense vectors.
func (c *Client) Embed(ctx context.Context, req EmbedRequest) (*Embeddings, error) {
	if len(req.Texts) == 0 {
		return nil, invalidArgf("texts must be a non-empty list of strings")
	}
	if req.Model == "" {
		return nil, invalidArgf("model is required")
	}

	body := embedRequestBody{
		Input: embedInput{
			Texts:       req.Texts,
			IsQuery:     req.IsQuery,
			Instruction: req.Instruction,
		},
		APIKey: c.apiKey,
		Model:  req.Model,
	}
	var out embedResponseBody
	if err := c.doJSON(ctx, "embed", http.MethodPost, c.embeddingsURL, body, &out); err != nil {
		return nil, err
	}

	vectors, err := decodeFloat16(out.Output.Embeddings, len(req.Texts))
	if err != nil {
		return nil, err
	}
	return &Embeddings{Model: req.Model, Vectors: vectors}, nil
}

// decodeFloat16 turns a base64 string of little-endian IEEE half floats
// into batch rows of equal length.
func decodeFloat16(encoded string, batch int) ([][]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode embeddings: %w", err)
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("embeddings payload has odd length %d", len(raw))
	}
	n := len(raw) / 2
	if batch <= 0 || n%batch != 0 {
		return nil, fmt.Errorf("cannot reshape %d values into %d embeddings", n, batch)
	}
	dim := n / batch

	vectors := make([][]float32, batch)
	for i := range vectors {
		row := make([]float32, dim)
		for j := range row {
			off := (i*dim + j) * 2
			row[j] = float16.Frombits(binary.LittleEndian.Uint16(raw[off:])).Float32()
		}
		vectors[i] = row
	}
	return vectors, nil
}
