package domain

import "time"

// Document is a source file tracked by the ingest manifest.
type Document struct {
	Path     string    `json:"path"`
	ModTime  time.Time `json:"mod_time"`
	Size     int64     `json:"size"`
	ChunkIDs []string  `json:"chunk_ids"`
}

// Chunk is a line range of a document, upserted as one record.
type Chunk struct {
	ID        string
	Path      string
	StartLine int
	EndLine   int
	Text      string
}

// Metadata keys written on every ingested record.
const (
	MetaText      = "text"
	MetaPath      = "path"
	MetaStartLine = "start_line"
	MetaEndLine   = "end_line"
)

// Metadata returns the record metadata for c.
func (c Chunk) Metadata() map[string]any {
	return map[string]any{
		MetaText:      c.Text,
		MetaPath:      c.Path,
		MetaStartLine: c.StartLine,
		MetaEndLine:   c.EndLine,
	}
}

// Hit is a search result resolved back to its source location when the
// record carries ingest metadata.
type Hit struct {
	ID        string         `json:"id"`
	Score     float64        `json:"score"`
	Path      string         `json:"path,omitempty"`
	StartLine int            `json:"start_line,omitempty"`
	EndLine   int            `json:"end_line,omitempty"`
	Text      string         `json:"text,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IngestStats summarizes one ingest run.
type IngestStats struct {
	FilesIngested int      `json:"files_ingested"`
	FilesSkipped  int      `json:"files_skipped"`
	FilesRemoved  int      `json:"files_removed"`
	Upserted      int      `json:"records_upserted"`
	Deleted       int      `json:"records_deleted"`
	Errors        []string `json:"errors,omitempty"`
}

// Snippet is one contiguous excerpt of a packed context.
type Snippet struct {
	ID    string  `json:"id,omitempty"` // empty when several hits were merged
	Path  string  `json:"path,omitempty"`
	Range string  `json:"range,omitempty"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// PackedContext is a token-budgeted selection of hits, e.g. for a prompt.
type PackedContext struct {
	Query        string    `json:"query"`
	BudgetTokens int       `json:"budget_tokens"`
	UsedTokens   int       `json:"used_tokens"`
	Snippets     []Snippet `json:"snippets"`
}
