// Package config provides configuration loading and structs for the guia server and CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/guia/internal/embedding"
	"github.com/hyperjump/guia/internal/generation"
	"github.com/hyperjump/guia/internal/ranking"
	"github.com/hyperjump/guia/internal/retrieval"
	"github.com/hyperjump/guia/internal/turn"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool                  `yaml:"debug"`
	Server     ServerConfig          `yaml:"server"`
	Storage    StorageConfig         `yaml:"storage"`
	Embedding  EmbeddingConfig       `yaml:"embedding"`
	Retrieval  retrieval.Config      `yaml:"retrieval"`
	Ranking    ranking.RankingConfig `yaml:"ranking"`
	Relevance  RelevanceConfig       `yaml:"relevance"`
	Session    SessionConfig         `yaml:"session"`
	Generation GenerationConfig      `yaml:"generation"`
	Intent     IntentConfig          `yaml:"intent"`
	Topics     TopicsConfig          `yaml:"topics"`
	Ingest     IngestConfig          `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds paths for the database and indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// Embedding providers.
const (
	ProviderMock   = "mock"
	ProviderOllama = "ollama"
	ProviderStatic = "static"
)

// EmbeddingConfig selects and configures the embedder.
type EmbeddingConfig struct {
	Provider  string                 `yaml:"provider"`
	Ollama    embedding.OllamaConfig `yaml:"ollama"`
	CacheSize int                    `yaml:"cache_size"`
	// Dimensions applies to the mock provider; Ollama reads its own.
	Dimensions int `yaml:"dimensions"`
}

// Dims returns the vector dimensions of the selected provider.
func (e EmbeddingConfig) Dims() int {
	if e.Provider == ProviderOllama {
		return e.Ollama.Dimensions
	}
	return e.Dimensions
}

// RelevanceConfig holds the relevance gate thresholds.
type RelevanceConfig struct {
	Threshold       float64 `yaml:"threshold"`
	StrictThreshold float64 `yaml:"strict_threshold"`
}

// SessionConfig holds session lifetime and per-turn limits.
type SessionConfig struct {
	TTL              time.Duration `yaml:"ttl"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	HistoryWindow    int           `yaml:"history_window"`
	TurnTimeout      time.Duration `yaml:"turn_timeout"`
	CandidateLimit   int           `yaml:"candidate_limit"`
	SuggestedTopics  int           `yaml:"suggested_topics"`
	RetrievalTimeout time.Duration `yaml:"retrieval_timeout"`
}

// GenerationConfig selects the generation providers. With provider "ollama" the static
// generator is kept as the failover.
type GenerationConfig struct {
	Provider string                  `yaml:"provider"`
	Ollama   generation.OllamaConfig `yaml:"ollama"`
}

// IntentConfig configures the classifier vocabulary.
type IntentConfig struct {
	// VocabularyPath is an optional YAML file with extra topic terms, reloaded on change.
	VocabularyPath string `yaml:"vocabulary_path"`
	MaxDistance    *int   `yaml:"max_distance"`
	Watch          bool   `yaml:"watch"`
}

// TopicsConfig configures the topic index cache.
type TopicsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// IngestConfig configures fragmenting of materials.
type IngestConfig struct {
	MaxWords     int `yaml:"max_words"`
	OverlapWords int `yaml:"overlap_words"`
	// Manifests are re-ingested when they change while the server runs.
	Manifests []string `yaml:"manifests"`
	Watch     bool     `yaml:"watch"`
}

// Load reads and parses the config file at path, applies defaults, expands paths and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Intent.VocabularyPath = expandPath(cfg.Intent.VocabularyPath, configDir)
	for i := range cfg.Ingest.Manifests {
		cfg.Ingest.Manifests[i] = expandPath(cfg.Ingest.Manifests[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch c.Embedding.Provider {
	case ProviderMock, ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("embedding.provider must be %q or %q, got %q", ProviderMock, ProviderOllama, c.Embedding.Provider))
	}
	if c.Embedding.Dims() <= 0 {
		errs = append(errs, errors.New("embedding dimensions must be positive"))
	}
	switch c.Generation.Provider {
	case ProviderStatic, ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("generation.provider must be %q or %q, got %q", ProviderStatic, ProviderOllama, c.Generation.Provider))
	}
	if err := c.Retrieval.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Ranking.Validate(); err != nil {
		errs = append(errs, err)
	}
	for name, v := range map[string]float64{
		"relevance.threshold":        c.Relevance.Threshold,
		"relevance.strict_threshold": c.Relevance.StrictThreshold,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0,1], got %v", name, v))
		}
	}
	if c.Session.HistoryWindow <= 0 {
		errs = append(errs, fmt.Errorf("session.history_window must be positive, got %d", c.Session.HistoryWindow))
	}
	if c.Session.TTL <= 0 || c.Session.SweepInterval <= 0 || c.Session.TurnTimeout <= 0 {
		errs = append(errs, errors.New("session durations must be positive"))
	}
	if c.Ingest.OverlapWords >= c.Ingest.MaxWords {
		errs = append(errs, fmt.Errorf("ingest.overlap_words (%d) must be below max_words (%d)", c.Ingest.OverlapWords, c.Ingest.MaxWords))
	}
	if c.Intent.Watch && c.Intent.VocabularyPath == "" {
		errs = append(errs, errors.New("intent.watch requires intent.vocabulary_path"))
	}
	return errors.Join(errs...)
}

// TurnConfig maps the session and relevance sections onto the orchestrator settings.
func (c *Config) TurnConfig() turn.Config {
	return turn.Config{
		Threshold:         c.Relevance.Threshold,
		StrictThreshold:   c.Relevance.StrictThreshold,
		SelectCount:       c.Ranking.SelectCount,
		CandidateLimit:    c.Session.CandidateLimit,
		HistoryWindow:     c.Session.HistoryWindow,
		RetrievalTimeout:  c.Session.RetrievalTimeout,
		GenerationTimeout: c.Session.TurnTimeout,
		SuggestedTopics:   c.Session.SuggestedTopics,
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. ":memory:" and "" are kept as is.
func expandPath(path string, configDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
