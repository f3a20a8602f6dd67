package port

import "context"

// Embedder generates dense vectors for text.
type Embedder interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string, isQuery bool) ([][]float32, error)

	// ModelName returns the name of the embedding model.
	ModelName() string
}
