package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Dir is the per-project state directory.
const Dir = ".precise"

// Config holds all configuration for the precise tool.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Index    IndexConfig    `yaml:"index"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Search   SearchConfig   `yaml:"search"`
	Cache    CacheConfig    `yaml:"cache"`
	Emulator EmulatorConfig `yaml:"emulator"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig holds connection settings for the hosted service.
type APIConfig struct {
	APIKeyEnv     string        `yaml:"api_key_env"`
	BaseURL       string        `yaml:"base_url"`
	EmbeddingsURL string        `yaml:"embeddings_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
}

// IndexConfig describes the index the CLI works against.
type IndexConfig struct {
	Name           string `yaml:"name"`
	Metric         string `yaml:"metric"`        // "cosine" or "dotproduct"
	FeaturesType   string `yaml:"features_type"` // "dense" or "hybrid"
	EmbeddingModel string `yaml:"embedding_model"`
	Dimension      int    `yaml:"dimension"` // only when embedding_model is "none"
}

// IngestConfig holds file walking and chunking settings.
type IngestConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	ChunkTokens  int      `yaml:"chunk_tokens"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	BatchSize    int      `yaml:"batch_size"`
	// EmbeddingModel computes vectors client-side for indexes without a
	// server-side model.
	EmbeddingModel string `yaml:"embedding_model"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	TopK           int     `yaml:"top_k"`
	ReturnMetadata bool    `yaml:"return_metadata"`
	MinScore       float64 `yaml:"min_score"` // 0 = disabled
	MMRLambda      float64 `yaml:"mmr_lambda"`
	DedupJaccard   float64 `yaml:"dedup_jaccard"`
}

// CacheConfig controls the local query and embedding caches.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled"`
	QueryCacheSize int           `yaml:"query_cache_size"`
	QueryCacheTTL  time.Duration `yaml:"query_cache_ttl"`
}

// EmulatorConfig configures `precise emulator`.
type EmulatorConfig struct {
	Addr            string         `yaml:"addr"`
	TransitionDelay time.Duration  `yaml:"transition_delay"`
	Models          map[string]int `yaml:"models"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			APIKeyEnv:     "VECTORSTACKAI_API_KEY",
			BaseURL:       "https://api.vectorstack.ai/precise_search/",
			EmbeddingsURL: "https://api.vectorstack.ai/embeddings",
			Timeout:       30 * time.Second,
			MaxRetries:    3,
		},
		Index: IndexConfig{
			Name:           "docs",
			Metric:         "cosine",
			FeaturesType:   "dense",
			EmbeddingModel: "vstackai-law-1",
		},
		Ingest: IngestConfig{
			Includes:     []string{"**/*.md", "**/*.txt", "**/*.rst", "**/*.go", "**/*.py", "**/*.js", "**/*.ts", "**/*.java", "**/*.rs"},
			Excludes:     []string{"**/node_modules/**", "**/vendor/**", "**/.git/**", "**/.precise/**", "**/dist/**", "**/build/**", "**/__pycache__/**", "**/*.min.js"},
			ChunkTokens:  256,
			ChunkOverlap: 32,
			BatchSize:    100,
		},
		Search: SearchConfig{
			TopK:           10,
			ReturnMetadata: true,
			MMRLambda:      0.7,
			DedupJaccard:   0.8,
		},
		Cache: CacheConfig{
			Enabled:        true,
			QueryCacheSize: 256,
			QueryCacheTTL:  5 * time.Minute,
		},
		Emulator: EmulatorConfig{
			Addr:            "127.0.0.1:8765",
			TransitionDelay: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// APIKey resolves the API key from the configured environment variable.
func (c *Config) APIKey() string {
	if c.API.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.API.APIKeyEnv)
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads precise.yaml, then .precise/config.yaml, from dir.
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "precise.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, Dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CacheDBPath returns the path of the local state database holding the
// embedding cache and the ingest manifest.
func CacheDBPath(dir string) string {
	return filepath.Join(dir, Dir, "state.db")
}

// EnsureDir ensures the .precise directory exists.
func EnsureDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, Dir), 0755)
}
