package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"vectorstack/internal/adapter/analyzer"
	"vectorstack/internal/adapter/chunker"
	"vectorstack/internal/adapter/fs"
	"vectorstack/internal/adapter/store"
	"vectorstack/internal/port"
	"vectorstack/internal/usecase"
	"vectorstack/precise"
)

var (
	upsertForce bool
	upsertReset bool
)

var upsertCmd = &cobra.Command{
	Use:   "upsert [path]",
	Short: "Ingest files into the index",
	Long: `Chunk the files under path and upsert them into the configured index.
Unchanged files are skipped; records of changed and deleted files are
removed. The ingest manifest is stored in .precise/state.db.

Examples:
  precise upsert .              # Ingest the current directory
  precise upsert docs --force   # Re-ingest every file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpsert,
}

func init() {
	rootCmd.AddCommand(upsertCmd)
	upsertCmd.Flags().BoolVar(&upsertForce, "force", false, "re-ingest files even when unchanged")
	upsertCmd.Flags().BoolVar(&upsertReset, "reset", false, "forget the local manifest before ingesting")
}

// ingestEnv bundles what ingesting commands share.
type ingestEnv struct {
	client   *precise.Client
	index    *precise.Index
	state    *store.BoltStore
	embedder port.Embedder
	ingest   *usecase.IngestUseCase
	root     string
}

func (e *ingestEnv) Close() error {
	return e.state.Close()
}

func newIngestEnv(cmd *cobra.Command, args []string, opts ...usecase.IngestOption) (*ingestEnv, error) {
	root := GetRootDir()
	if len(args) > 0 {
		var err error
		root, err = filepath.Abs(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	client, err := newClient()
	if err != nil {
		return nil, err
	}
	idx, err := openIndex(cmd.Context(), client, "")
	if err != nil {
		return nil, fmt.Errorf("failed to open index %q: %w", cfg.Index.Name, err)
	}
	st, err := openState()
	if err != nil {
		return nil, err
	}
	emb, err := newEmbedder(client, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	tokenizer := analyzer.NewTokenizer()
	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	chk := chunker.NewLineChunker(cfg.Ingest.ChunkTokens, cfg.Ingest.ChunkOverlap, tokenizer)

	opts = append([]usecase.IngestOption{
		usecase.WithBatchSize(cfg.Ingest.BatchSize),
		usecase.WithIngestLogger(logger),
	}, opts...)
	if emb != nil {
		opts = append(opts, usecase.WithEmbedder(emb))
	}

	return &ingestEnv{
		client:   client,
		index:    idx,
		state:    st,
		embedder: emb,
		ingest:   usecase.NewIngestUseCase(idx, st, walker, chk, opts...),
		root:     root,
	}, nil
}

func runUpsert(cmd *cobra.Command, args []string) error {
	env, err := newIngestEnv(cmd, args)
	if err != nil {
		return err
	}
	defer env.Close()

	force := upsertForce
	if upsertReset {
		fmt.Println("Clearing local manifest...")
		if err := env.state.Clear(); err != nil {
			return fmt.Errorf("failed to clear manifest: %w", err)
		}
	}
	rebuild, reason, err := env.state.NeedsRebuild(cfg)
	if err != nil {
		return fmt.Errorf("failed to check manifest: %w", err)
	}
	if rebuild {
		fmt.Printf("Full re-ingest required: %s\n", reason)
		force = true
	}

	fmt.Printf("Scanning %s...\n", env.root)

	var (
		bar       *progressbar.ProgressBar
		barMu     sync.Mutex
		startTime time.Time
	)
	progress := func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Upserting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		_ = bar.Set(done)

		if done > 0 && done < total {
			rate := float64(done) / time.Since(startTime).Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Upserting[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	stats, err := env.ingest.Ingest(cmd.Context(), env.root, usecase.IngestOptions{
		Force:    force,
		Progress: progress,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	if err := env.state.MarkCurrent(cfg); err != nil {
		return fmt.Errorf("failed to update manifest info: %w", err)
	}

	fmt.Printf("\nIngest complete (index %q):\n", env.index.Name())
	fmt.Printf("  Files ingested:   %d\n", stats.FilesIngested)
	fmt.Printf("  Files skipped:    %d (unchanged)\n", stats.FilesSkipped)
	fmt.Printf("  Files removed:    %d\n", stats.FilesRemoved)
	fmt.Printf("  Records upserted: %d\n", stats.Upserted)
	fmt.Printf("  Records deleted:  %d\n", stats.Deleted)

	if len(stats.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range stats.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
