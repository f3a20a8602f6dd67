package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vectorstack/internal/adapter/fs"
	"vectorstack/internal/usecase"
	"vectorstack/internal/watcher"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Keep the index in sync with a directory",
	Long: `Ingest path once, then watch it and re-ingest files as they are written,
removing the records of deleted files. Stops on Ctrl-C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 400*time.Millisecond, "quiet period before a changed file is re-ingested")
}

func runWatch(cmd *cobra.Command, args []string) error {
	env, err := newIngestEnv(cmd, args)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	w, err := env.watch(ctx, watchDebounce)
	if err != nil {
		return err
	}
	defer w.Stop()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", env.root)
	<-ctx.Done()
	return nil
}

// watch syncs the root once, then re-ingests files as they change until
// ctx is done or the returned watcher is stopped.
func (e *ingestEnv) watch(ctx context.Context, debounce time.Duration) (*watcher.Watcher, error) {
	stats, err := e.ingest.Ingest(ctx, e.root, usecase.IngestOptions{})
	if err != nil {
		return nil, fmt.Errorf("initial ingest failed: %w", err)
	}
	if err := e.state.MarkCurrent(cfg); err != nil {
		return nil, err
	}
	fmt.Printf("Initial sync: %d ingested, %d unchanged, %d removed\n",
		stats.FilesIngested, stats.FilesSkipped, stats.FilesRemoved)

	onChange := func(path string) {
		st, err := e.ingest.IngestFile(ctx, e.root, path)
		if err != nil {
			logger.Warn("re-ingest failed", zap.String("path", path), zap.Error(err))
			return
		}
		if st.FilesIngested > 0 {
			logger.Info("file re-ingested", zap.String("path", path), zap.Int("records", st.Upserted))
		}
	}
	onRemove := func(path string) {
		st, err := e.ingest.RemoveFile(ctx, e.root, path)
		if err != nil {
			logger.Warn("remove failed", zap.String("path", path), zap.Error(err))
			return
		}
		if st.FilesRemoved > 0 {
			logger.Info("file removed", zap.String("path", path), zap.Int("records", st.Deleted))
		}
	}

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	w, err := watcher.New(e.root, walker.Match, onChange, onRemove,
		watcher.WithLogger(logger),
		watcher.WithDebounce(debounce),
	)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	return w, nil
}
