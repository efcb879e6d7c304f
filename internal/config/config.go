// Package config loads and validates engine configuration from YAML
// files and RECALL_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	enginerrors "github.com/finsightlab/recall/internal/errors"
)

// Config is the root configuration for the retrieval engine.
type Config struct {
	DataDir    string           `yaml:"data_dir"`
	Search     SearchConfig     `yaml:"search"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Cache      CacheConfig      `yaml:"cache"`
	Rerank     RerankConfig     `yaml:"rerank"`
	Confidence ConfidenceConfig `yaml:"confidence"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SearchConfig controls hybrid retrieval behavior.
type SearchConfig struct {
	// SemanticWeight and LexicalWeight must sum to 1.0.
	SemanticWeight float64 `yaml:"semantic_weight"`
	LexicalWeight  float64 `yaml:"lexical_weight"`

	// Retrieval depths per query complexity tier.
	SimpleDepth  int `yaml:"simple_depth"`
	MediumDepth  int `yaml:"medium_depth"`
	ComplexDepth int `yaml:"complex_depth"`

	// DefaultTopK is used when a query does not specify a result count.
	DefaultTopK int `yaml:"default_top_k"`

	// Timeout bounds a single query end to end.
	Timeout time.Duration `yaml:"timeout"`
}

// ChunkingConfig controls document segmentation.
type ChunkingConfig struct {
	TargetSize  int `yaml:"target_size"`
	OverlapSize int `yaml:"overlap_size"`
	MinSize     int `yaml:"min_size"`
}

// CacheConfig controls the query result cache.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// RerankConfig controls deterministic result reranking.
type RerankConfig struct {
	ExactPhraseBoost  float64 `yaml:"exact_phrase_boost"`
	HeadingBoost      float64 `yaml:"heading_boost"`
	OverlongPenalty   float64 `yaml:"overlong_penalty"`
	OverlongThreshold int     `yaml:"overlong_threshold"`
}

// ConfidenceConfig controls result confidence scoring.
type ConfidenceConfig struct {
	// LowThreshold marks results below it as low confidence.
	LowThreshold float64 `yaml:"low_threshold"`

	// StrongScoreFloor is the fused score above which a result counts
	// as strong support for the confidence estimate.
	StrongScoreFloor float64 `yaml:"strong_score_floor"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "static" or "ollama".
	Provider   string `yaml:"provider"`
	Dimensions int    `yaml:"dimensions"`
	OllamaHost string `yaml:"ollama_host"`
	Model      string `yaml:"model"`
	MaxRetries int    `yaml:"max_retries"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	FilePath  string `yaml:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Search: SearchConfig{
			SemanticWeight: 0.7,
			LexicalWeight:  0.3,
			SimpleDepth:    3,
			MediumDepth:    5,
			ComplexDepth:   10,
			DefaultTopK:    5,
			Timeout:        10 * time.Second,
		},
		Chunking: ChunkingConfig{
			TargetSize:  1000,
			OverlapSize: 200,
			MinSize:     100,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        time.Hour,
			MaxEntries: 1024,
		},
		Rerank: RerankConfig{
			ExactPhraseBoost:  1.3,
			HeadingBoost:      1.2,
			OverlongPenalty:   0.9,
			OverlongThreshold: 2000,
		},
		Confidence: ConfidenceConfig{
			LowThreshold:     0.6,
			StrongScoreFloor: 0.5,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Dimensions: 256,
			OllamaHost: "http://localhost:11434",
			Model:      "nomic-embed-text",
			MaxRetries: 3,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
	}
}

// Load reads configuration from path, applies environment overrides,
// and validates the result. An empty path returns defaults with
// environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, enginerrors.New(enginerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("parse config file %s: %v", path, err), nil)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	sum := c.Search.SemanticWeight + c.Search.LexicalWeight
	if sum < 0.999 || sum > 1.001 {
		return enginerrors.New(enginerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("search weights must sum to 1.0, got %.3f", sum), nil)
	}
	if c.Search.SemanticWeight < 0 || c.Search.LexicalWeight < 0 {
		return enginerrors.New(enginerrors.ErrCodeConfigInvalid, "search weights must be non-negative", nil)
	}
	if c.Search.SimpleDepth <= 0 || c.Search.MediumDepth <= 0 || c.Search.ComplexDepth <= 0 {
		return enginerrors.New(enginerrors.ErrCodeConfigInvalid, "retrieval depths must be positive", nil)
	}
	if c.Chunking.TargetSize <= 0 {
		return enginerrors.New(enginerrors.ErrCodeConfigInvalid, "chunking target_size must be positive", nil)
	}
	if c.Chunking.OverlapSize < 0 || c.Chunking.OverlapSize >= c.Chunking.TargetSize {
		return enginerrors.New(enginerrors.ErrCodeConfigInvalid, "chunking overlap_size must be smaller than target_size", nil)
	}
	if c.Chunking.MinSize < 0 || c.Chunking.MinSize > c.Chunking.TargetSize {
		return enginerrors.New(enginerrors.ErrCodeConfigInvalid, "chunking min_size must not exceed target_size", nil)
	}
	if c.Cache.TTL <= 0 {
		return enginerrors.New(enginerrors.ErrCodeConfigInvalid, "cache ttl must be positive", nil)
	}
	if c.Cache.MaxEntries <= 0 {
		return enginerrors.New(enginerrors.ErrCodeConfigInvalid, "cache max_entries must be positive", nil)
	}
	if c.Rerank.ExactPhraseBoost <= 0 || c.Rerank.HeadingBoost <= 0 || c.Rerank.OverlongPenalty <= 0 {
		return enginerrors.New(enginerrors.ErrCodeConfigInvalid, "rerank factors must be positive", nil)
	}
	if c.Confidence.LowThreshold < 0 || c.Confidence.LowThreshold > 1 {
		return enginerrors.New(enginerrors.ErrCodeConfigInvalid, "confidence low_threshold must be in [0, 1]", nil)
	}
	switch c.Embeddings.Provider {
	case "static", "ollama":
	default:
		return enginerrors.New(enginerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown embeddings provider %q", c.Embeddings.Provider), nil)
	}
	if c.Embeddings.Dimensions <= 0 {
		return enginerrors.New(enginerrors.ErrCodeConfigInvalid, "embeddings dimensions must be positive", nil)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RECALL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("RECALL_SEMANTIC_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.SemanticWeight = f
			cfg.Search.LexicalWeight = 1 - f
		}
	}
	if v := os.Getenv("RECALL_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("RECALL_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v := os.Getenv("RECALL_EMBEDDINGS_PROVIDER"); v != "" {
		cfg.Embeddings.Provider = v
	}
	if v := os.Getenv("RECALL_OLLAMA_HOST"); v != "" {
		cfg.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("RECALL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RECALL_LOG_FILE"); v != "" {
		cfg.Logging.FilePath = v
	}
	if v := os.Getenv("RECALL_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.Timeout = d
		}
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".recall"
	}
	return filepath.Join(home, ".recall")
}
