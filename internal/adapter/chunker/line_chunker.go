package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"vectorstack/internal/domain"
	"vectorstack/internal/port"
)

// LineChunker splits a file into runs of whole lines that fit a token
// budget. Consecutive chunks share roughly overlap tokens of trailing lines.
type LineChunker struct {
	maxTokens int
	overlap   int
	counter   port.TokenCounter
}

func NewLineChunker(maxTokens, overlap int, counter port.TokenCounter) *LineChunker {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	if overlap < 0 || overlap >= maxTokens {
		overlap = 0
	}
	return &LineChunker{
		maxTokens: maxTokens,
		overlap:   overlap,
		counter:   counter,
	}
}

// Chunk never returns whitespace-only chunks. A single line larger than
// the budget becomes a chunk of its own.
func (c *LineChunker) Chunk(path, content string) ([]domain.Chunk, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	costs := make([]int, len(lines))
	for i, l := range lines {
		costs[i] = c.counter.CountTokens(l)
	}

	var chunks []domain.Chunk
	start := 0
	for start < len(lines) {
		end, used := start, 0
		for end < len(lines) {
			if used > 0 && used+costs[end] > c.maxTokens {
				break
			}
			used += costs[end]
			end++
		}
		if end == start {
			end++
		}

		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, domain.Chunk{
				ID:        ChunkID(path, start+1, end),
				Path:      path,
				StartLine: start + 1,
				EndLine:   end,
				Text:      text,
			})
		}
		if end >= len(lines) {
			break
		}

		next := end - c.overlapLines(costs, start, end)
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks, nil
}

func (c *LineChunker) overlapLines(costs []int, start, end int) int {
	if c.overlap == 0 {
		return 0
	}
	n, tokens := 0, 0
	for i := end - 1; i > start && tokens < c.overlap; i-- {
		tokens += costs[i]
		n++
	}
	return n
}

// ChunkID is stable for a path and 1-based inclusive line range, so
// re-ingesting an unchanged region overwrites the same record.
func ChunkID(path string, startLine, endLine int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d-%d", path, startLine, endLine)))
	return hex.EncodeToString(sum[:12])
}
