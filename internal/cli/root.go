package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vectorstack/config"
	"vectorstack/internal/adapter/cache"
	"vectorstack/internal/adapter/embedding"
	"vectorstack/internal/adapter/store"
	"vectorstack/internal/logging"
	"vectorstack/internal/port"
	"vectorstack/precise"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	apiKey   string
	logLevel string
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "precise",
	Short: "Manage VectorStack PreciseSearch indexes",
	Long: `precise creates and manages PreciseSearch vector indexes, keeps them in sync
with files on disk and runs semantic queries against them.

Example usage:
  precise index create            # Create the configured index
  precise upsert .                # Ingest the current directory
  precise query -q "negligence"   # Search the index
  precise emulator                # Run a local stand-in for the service`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		logger, err = logging.New(level)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./precise.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "project directory holding .precise state (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (default is $VECTORSTACKAI_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func GetRootDir() string {
	return rootDir
}

// newClient builds a service client from flags and config.
func newClient() (*precise.Client, error) {
	key := apiKey
	if key == "" {
		key = cfg.APIKey()
	}
	opts := []precise.Option{
		precise.WithBaseURL(cfg.API.BaseURL),
		precise.WithEmbeddingsURL(cfg.API.EmbeddingsURL),
		precise.WithTimeout(cfg.API.Timeout),
		precise.WithMaxRetries(cfg.API.MaxRetries),
		precise.WithLogger(logger),
	}
	if key != "" {
		opts = append(opts, precise.WithAPIKey(key))
	}
	return precise.NewClient(opts...)
}

// openIndex connects to the configured index, or to name when set.
func openIndex(ctx context.Context, client *precise.Client, name string) (*precise.Index, error) {
	if name == "" {
		name = cfg.Index.Name
	}
	return client.Index(ctx, name)
}

// openState opens the local state database under the project directory.
func openState() (*store.BoltStore, error) {
	if err := config.EnsureDir(rootDir); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", config.Dir, err)
	}
	st, err := store.NewBoltStore(config.CacheDBPath(rootDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return st, nil
}

// newEmbedder returns the client-side embedder for indexes without a
// model, or nil when none is configured. Vectors are cached in st when the
// cache is enabled.
func newEmbedder(client *precise.Client, st *store.BoltStore) (port.Embedder, error) {
	if cfg.Ingest.EmbeddingModel == "" {
		return nil, nil
	}
	emb, err := embedding.NewPreciseEmbedder(client, cfg.Ingest.EmbeddingModel, "")
	if err != nil {
		return nil, err
	}
	if !cfg.Cache.Enabled || st == nil {
		return emb, nil
	}
	ec, err := cache.NewBoltEmbeddingCache(st.DB())
	if err != nil {
		return nil, err
	}
	return cache.NewCachedEmbedder(emb, ec, emb.Instruction()), nil
}
