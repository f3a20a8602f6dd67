package embedding

import (
	"context"
	"fmt"

	"vectorstack/precise"
)

const maxBatch = 100

// PreciseEmbedder computes vectors through the VectorStack embeddings
// endpoint. Large inputs are split into requests of at most 100 texts.
type PreciseEmbedder struct {
	client      *precise.Client
	model       string
	instruction string
}

func NewPreciseEmbedder(client *precise.Client, model, instruction string) (*PreciseEmbedder, error) {
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	return &PreciseEmbedder{
		client:      client,
		model:       model,
		instruction: instruction,
	}, nil
}

func (e *PreciseEmbedder) Embed(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxBatch {
		end := i + maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		emb, err := e.client.Embed(ctx, precise.EmbedRequest{
			Texts:       texts[i:end],
			Model:       e.model,
			IsQuery:     isQuery,
			Instruction: e.instruction,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding texts %d-%d: %w", i, end, err)
		}
		all = append(all, emb.Vectors...)
	}
	return all, nil
}

func (e *PreciseEmbedder) ModelName() string {
	return e.model
}

// Instruction is passed to instruction-tuned models with every request.
func (e *PreciseEmbedder) Instruction() string {
	return e.instruction
}
