package port

import "vectorstack/internal/domain"

type Chunker interface {
	Chunk(path, content string) ([]domain.Chunk, error)
}
