package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"vectorstack/internal/adapter/analyzer"
	"vectorstack/internal/adapter/fs"
	"vectorstack/internal/domain"
	"vectorstack/internal/logging"
	"vectorstack/internal/port"
	"vectorstack/precise"
)

// IngestUseCase keeps a remote index in sync with the files under a root.
type IngestUseCase struct {
	index     port.VectorIndex
	manifest  port.Manifest
	walker    port.FileWalker
	chunker   port.Chunker
	embedder  port.Embedder // required when the index has no embedding model
	sparse    *analyzer.SparseEncoder
	batchSize int
	logger    *zap.Logger
	onChange  func()
}

// IngestOption configures an IngestUseCase.
type IngestOption func(*IngestUseCase)

// WithEmbedder supplies client-side vectors for indexes without a model.
func WithEmbedder(e port.Embedder) IngestOption {
	return func(u *IngestUseCase) { u.embedder = e }
}

func WithBatchSize(n int) IngestOption {
	return func(u *IngestUseCase) { u.batchSize = n }
}

func WithIngestLogger(l *zap.Logger) IngestOption {
	return func(u *IngestUseCase) { u.logger = l }
}

// OnChange is called after the index was modified, e.g. to drop cached
// search results.
func OnChange(fn func()) IngestOption {
	return func(u *IngestUseCase) { u.onChange = fn }
}

func NewIngestUseCase(
	index port.VectorIndex,
	manifest port.Manifest,
	walker port.FileWalker,
	chunker port.Chunker,
	opts ...IngestOption,
) *IngestUseCase {
	u := &IngestUseCase{
		index:     index,
		manifest:  manifest,
		walker:    walker,
		chunker:   chunker,
		sparse:    analyzer.NewSparseEncoder(nil),
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = logging.OrNop(u.logger)
	return u
}

// IngestOptions control a single run.
type IngestOptions struct {
	// Force re-ingests files even when size and mod time are unchanged.
	Force bool
	// Progress is called after each upsert batch.
	Progress func(done, total int)
}

type pendingFile struct {
	file    port.FileInfo
	records []precise.Record
	stale   []string
}

// Ingest walks root, upserts records for new and changed files, and
// deletes the records of files that changed or disappeared.
func (u *IngestUseCase) Ingest(ctx context.Context, root string, opts IngestOptions) (*domain.IngestStats, error) {
	stats := &domain.IngestStats{}

	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	existing, err := u.manifest.ListDocs()
	if err != nil {
		return nil, fmt.Errorf("failed to list manifest: %w", err)
	}
	known := make(map[string]domain.Document, len(existing))
	for _, doc := range existing {
		known[doc.Path] = doc
	}

	seen := make(map[string]bool, len(files))
	var pending []pendingFile
	for _, file := range files {
		seen[file.RelPath] = true
		prev, ok := known[file.RelPath]
		if ok && !opts.Force && unchanged(prev, file) {
			stats.FilesSkipped++
			continue
		}
		p, err := u.prepare(file, prev.ChunkIDs)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", file.RelPath, err))
			continue
		}
		pending = append(pending, p)
	}

	if err := u.apply(ctx, pending, stats, opts.Progress); err != nil {
		return stats, err
	}

	for path, doc := range known {
		if seen[path] {
			continue
		}
		if err := u.remove(ctx, doc); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		stats.FilesRemoved++
		stats.Deleted += len(doc.ChunkIDs)
	}

	if stats.Upserted > 0 || stats.Deleted > 0 {
		u.changed()
	}
	u.logger.Info("ingest finished",
		zap.Int("ingested", stats.FilesIngested),
		zap.Int("skipped", stats.FilesSkipped),
		zap.Int("removed", stats.FilesRemoved),
		zap.Int("upserted", stats.Upserted),
		zap.Int("errors", len(stats.Errors)),
	)
	return stats, nil
}

// IngestFile re-ingests one file under root, e.g. after a watcher event.
func (u *IngestUseCase) IngestFile(ctx context.Context, root, path string) (*domain.IngestStats, error) {
	file, err := fileInfo(root, path)
	if err != nil {
		return nil, err
	}
	if !u.walker.Match(file.RelPath) {
		return &domain.IngestStats{FilesSkipped: 1}, nil
	}
	prev, _, err := u.manifest.GetDoc(file.RelPath)
	if err != nil {
		return nil, err
	}
	p, err := u.prepare(file, prev.ChunkIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.RelPath, err)
	}
	stats := &domain.IngestStats{}
	if err := u.apply(ctx, []pendingFile{p}, stats, nil); err != nil {
		return stats, err
	}
	u.changed()
	return stats, nil
}

// RemoveFile deletes the records of a file that no longer exists.
func (u *IngestUseCase) RemoveFile(ctx context.Context, root, path string) (*domain.IngestStats, error) {
	rel, err := relPath(root, path)
	if err != nil {
		return nil, err
	}
	doc, ok, err := u.manifest.GetDoc(rel)
	if err != nil || !ok {
		return &domain.IngestStats{}, err
	}
	if err := u.remove(ctx, doc); err != nil {
		return nil, err
	}
	u.changed()
	return &domain.IngestStats{FilesRemoved: 1, Deleted: len(doc.ChunkIDs)}, nil
}

func (u *IngestUseCase) prepare(file port.FileInfo, previous []string) (pendingFile, error) {
	content, err := fs.ReadFile(file.Path)
	if err != nil {
		return pendingFile{}, fmt.Errorf("failed to read file: %w", err)
	}
	chunks, err := u.chunker.Chunk(file.RelPath, content)
	if err != nil {
		return pendingFile{}, fmt.Errorf("failed to chunk content: %w", err)
	}

	// Client-side hybrid records need at least one sparse term.
	info := u.index.Cached()
	needTerms := info.IsHybrid() && !info.HasEmbeddingModel()

	records := make([]precise.Record, 0, len(chunks))
	current := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		if needTerms {
			if idx, _ := u.sparse.Encode(c.Text); len(idx) == 0 {
				continue
			}
		}
		records = append(records, precise.Record{ID: c.ID, Metadata: c.Metadata()})
		current[c.ID] = true
	}
	var stale []string
	for _, id := range previous {
		if !current[id] {
			stale = append(stale, id)
		}
	}
	return pendingFile{file: file, records: records, stale: stale}, nil
}

// apply upserts every pending record, then drops stale ids and updates the
// manifest. The manifest is only written once a file's records are stored.
func (u *IngestUseCase) apply(ctx context.Context, pending []pendingFile, stats *domain.IngestStats, progress func(done, total int)) error {
	var records []precise.Record
	for _, p := range pending {
		records = append(records, p.records...)
	}
	if len(records) > 0 {
		if err := u.vectorize(ctx, records); err != nil {
			return err
		}
		n, err := u.index.UpsertBatches(ctx, records, u.batchSize, progress)
		stats.Upserted += n
		if err != nil {
			return err
		}
	}

	for _, p := range pending {
		if err := u.deleteIDs(ctx, p.stale); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: removing stale records: %v", p.file.RelPath, err))
			continue
		}
		stats.Deleted += len(p.stale)

		ids := make([]string, len(p.records))
		for i, r := range p.records {
			ids[i] = r.ID
		}
		doc := domain.Document{
			Path:     p.file.RelPath,
			ModTime:  p.file.ModTime,
			Size:     p.file.Size,
			ChunkIDs: ids,
		}
		if err := u.manifest.PutDoc(doc); err != nil {
			return fmt.Errorf("failed to update manifest: %w", err)
		}
		stats.FilesIngested++
	}
	return nil
}

// vectorize fills in client-side vectors when the index does not embed
// text itself.
func (u *IngestUseCase) vectorize(ctx context.Context, records []precise.Record) error {
	info := u.index.Cached()
	if info.HasEmbeddingModel() {
		return nil
	}
	if u.embedder == nil {
		return fmt.Errorf("index %q has no embedding model; configure ingest.embedding_model", info.Name)
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i], _ = r.Text()
	}
	vectors, err := u.embedder.Embed(ctx, texts, false)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	for i := range records {
		if len(vectors[i]) != info.Dimension {
			return fmt.Errorf("embedding model %s returned %d dimensions, index %q expects %d",
				u.embedder.ModelName(), len(vectors[i]), info.Name, info.Dimension)
		}
		records[i].Vector = vectors[i]
		if info.IsHybrid() {
			records[i].SparseIndices, records[i].SparseValues = u.sparse.Encode(texts[i])
		}
	}
	return nil
}

func (u *IngestUseCase) remove(ctx context.Context, doc domain.Document) error {
	if err := u.deleteIDs(ctx, doc.ChunkIDs); err != nil {
		return err
	}
	return u.manifest.DeleteDoc(doc.Path)
}

// deleteIDs removes ids from the index. Deletion is all-or-nothing on the
// server, so when some ids are already gone the rest are removed one by one.
func (u *IngestUseCase) deleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := u.index.DeleteVectors(ctx, ids)
	if !errors.Is(err, precise.ErrNotFound) {
		return err
	}
	u.logger.Debug("some records already gone, deleting individually", zap.Int("ids", len(ids)))
	for _, id := range ids {
		if err := u.index.DeleteVectors(ctx, []string{id}); err != nil && !errors.Is(err, precise.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (u *IngestUseCase) changed() {
	if u.onChange != nil {
		u.onChange()
	}
}

func unchanged(doc domain.Document, file port.FileInfo) bool {
	return doc.Size == file.Size && doc.ModTime.Equal(file.ModTime)
}

func relPath(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func fileInfo(root, path string) (port.FileInfo, error) {
	rel, err := relPath(root, path)
	if err != nil {
		return port.FileInfo{}, err
	}
	abs, _ := filepath.Abs(path)
	st, err := os.Stat(abs)
	if err != nil {
		return port.FileInfo{}, err
	}
	return port.FileInfo{Path: abs, RelPath: rel, ModTime: st.ModTime(), Size: st.Size()}, nil
}
