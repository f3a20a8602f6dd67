package fs

import (
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"vectorstack/internal/port"
)

// Walker selects files by doublestar include and exclude globs matched
// against slash-separated paths relative to the walk root.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk returns every selected regular file under root. Excluded
// directories are not descended into.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []port.FileInfo
	err = filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && w.excluded(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !w.Match(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, port.FileInfo{
			Path:    path,
			RelPath: rel,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
		return nil
	})
	return files, err
}

// Match reports whether relPath is included and not excluded.
func (w *Walker) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	return matchAny(w.includes, relPath) && !w.excluded(relPath)
}

func (w *Walker) excluded(relPath string) bool {
	return matchAny(w.excludes, relPath)
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

// ReadFile reads a whole file as text.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
