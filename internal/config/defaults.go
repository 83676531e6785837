package config

import (
	"time"

	"github.com/hyperjump/guia/internal/relevance"
	"github.com/hyperjump/guia/internal/session"
	"github.com/hyperjump/guia/internal/topics"
	"github.com/hyperjump/guia/internal/turn"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".local/share/guia/guia.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = ".local/share/guia/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = ".local/share/guia/vectors.gvi"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderMock
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.Ollama.Dimensions == 0 {
		cfg.Embedding.Ollama.Dimensions = 768
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	cfg.Retrieval.ApplyDefaults()
	cfg.Ranking.ApplyDefaults()
	if cfg.Relevance.Threshold == 0 {
		cfg.Relevance.Threshold = relevance.DefaultThreshold
	}
	if cfg.Relevance.StrictThreshold == 0 {
		cfg.Relevance.StrictThreshold = relevance.StrictThreshold
	}

	td := turn.DefaultConfig()
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = session.DefaultTTL
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = session.DefaultSweepInterval
	}
	if cfg.Session.HistoryWindow == 0 {
		cfg.Session.HistoryWindow = session.DefaultHistoryWindow
	}
	if cfg.Session.TurnTimeout == 0 {
		cfg.Session.TurnTimeout = td.GenerationTimeout
	}
	if cfg.Session.RetrievalTimeout == 0 {
		cfg.Session.RetrievalTimeout = td.RetrievalTimeout
	}
	if cfg.Session.CandidateLimit == 0 {
		cfg.Session.CandidateLimit = td.CandidateLimit
	}
	if cfg.Session.SuggestedTopics == 0 {
		cfg.Session.SuggestedTopics = td.SuggestedTopics
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = ProviderStatic
	}
	if cfg.Topics.CacheTTL == 0 {
		cfg.Topics.CacheTTL = topics.DefaultTTL
	}
	if cfg.Ingest.MaxWords == 0 {
		cfg.Ingest.MaxWords = 120
	}
	if cfg.Ingest.OverlapWords == 0 {
		cfg.Ingest.OverlapWords = 20
	}
}
