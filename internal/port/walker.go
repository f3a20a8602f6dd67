package port

import "time"

// FileWalker lists the files under a root that the ingest globs select.
type FileWalker interface {
	Walk(root string) ([]FileInfo, error)

	// Match reports whether a path relative to the walk root is selected.
	Match(relPath string) bool
}

type FileInfo struct {
	Path    string // absolute
	RelPath string // slash-separated, relative to the walk root
	ModTime time.Time
	Size    int64
}
