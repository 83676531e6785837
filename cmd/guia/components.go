package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/guia/internal/config"
	"github.com/hyperjump/guia/internal/embedding"
	"github.com/hyperjump/guia/internal/generation"
	"github.com/hyperjump/guia/internal/indexer"
	"github.com/hyperjump/guia/internal/intent"
	"github.com/hyperjump/guia/internal/keyword"
	"github.com/hyperjump/guia/internal/ranking"
	"github.com/hyperjump/guia/internal/retrieval"
	"github.com/hyperjump/guia/internal/session"
	"github.com/hyperjump/guia/internal/storage"
	"github.com/hyperjump/guia/internal/topics"
	"github.com/hyperjump/guia/internal/turn"
	"github.com/hyperjump/guia/internal/vector"
)

// Components holds the wired application.
type Components struct {
	Config       *config.Config
	Storage      *storage.SQLiteStorage
	Embedder     embedding.Embedder
	VectorIndex  vector.Index
	KeywordIndex *keyword.BleveIndex
	Engine       *retrieval.Engine
	Indexer      *indexer.Indexer
	Vocabulary   *intent.Vocabulary
	Topics       *topics.Catalog
	Sessions     *session.Store
	Orchestrator *turn.Orchestrator

	logger    *zap.Logger
	saveMu    sync.Mutex
	closeOnce sync.Once
}

// Close releases all resources. The vector index is saved whenever the material set
// changes, not here.
func (c *Components) Close() {
	c.closeOnce.Do(func() {
		if c.KeywordIndex != nil {
			_ = c.KeywordIndex.Close()
		}
		if c.VectorIndex != nil {
			_ = c.VectorIndex.Close()
		}
		if c.Embedder != nil {
			_ = c.Embedder.Close()
		}
		if c.Storage != nil {
			_ = c.Storage.Close()
		}
	})
}

// SaveVectors writes the vector index to its configured path.
func (c *Components) SaveVectors() error {
	path := c.Config.Storage.VectorIndexPath
	if path == "" || c.VectorIndex == nil {
		return nil
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return c.VectorIndex.Save(path)
}

// initializeComponents opens storage and indexes and wires retrieval, ingestion and the
// conversation core.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Config: cfg, logger: logger}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	c.Embedder = newEmbedder(cfg.Embedding)

	vectorIndex, err := vector.NewIndex(vector.KindMemory, cfg.Embedding.Dims())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	c.VectorIndex = vectorIndex
	if cfg.Storage.VectorIndexPath != "" {
		if err := vectorIndex.Load(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index load skipped (re-run ingest)", zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath, keyword.Options{})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = keywordIndex

	if n, err := store.CountFragments(context.Background()); err == nil && int64(vectorIndex.Size()) != n {
		logger.Warn("vector index out of sync with storage (re-run ingest)",
			zap.Int64("fragments", n),
			zap.Int("vectors", vectorIndex.Size()))
	}

	c.Engine = retrieval.NewEngine(store, c.Embedder, vectorIndex, keywordIndex, cfg.Retrieval, logger)
	c.Indexer = indexer.New(store, c.Embedder, vectorIndex, keywordIndex,
		indexer.WithLogger(logger),
		indexer.WithChunker(indexer.NewChunker(cfg.Ingest.MaxWords, cfg.Ingest.OverlapWords)),
	)

	var vocabOpts []intent.VocabularyOption
	if cfg.Intent.MaxDistance != nil {
		vocabOpts = append(vocabOpts, intent.WithMaxDistance(*cfg.Intent.MaxDistance))
	}
	c.Vocabulary = intent.NewVocabulary(intent.SeedTopics, vocabOpts...)
	c.Topics = topics.NewCatalog(store,
		topics.WithTTL(cfg.Topics.CacheTTL),
		topics.WithSeed(c.Vocabulary),
		topics.WithLogger(logger),
	)
	c.RefreshVocabulary(context.Background())

	c.Sessions = session.NewStore(session.WithTTL(cfg.Session.TTL), session.WithLogger(logger))
	orch, err := turn.New(turn.Deps{
		Store:      c.Sessions,
		Classifier: intent.NewClassifier(c.Vocabulary, logger),
		Ranker:     ranking.NewRanker(&cfg.Ranking),
		Retriever:  c.Engine,
		Generator:  newGenerator(cfg.Generation, logger),
		Topics:     c.Topics,
		Logger:     logger,
	}, cfg.TurnConfig())
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Orchestrator = orch
	return c, nil
}

// RefreshVocabulary rebuilds the classifier vocabulary from the seed list, the optional
// vocabulary file and the topics of the indexed materials.
func (c *Components) RefreshVocabulary(ctx context.Context) {
	var fileTerms []string
	if path := c.Config.Intent.VocabularyPath; path != "" {
		terms, err := intent.LoadTerms(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			c.logger.Debug("vocabulary file not found", zap.String("path", path))
		case err != nil:
			c.logger.Warn("vocabulary file not loaded", zap.String("path", path), zap.Error(err))
		default:
			fileTerms = terms
		}
	}
	var indexed []string
	if list, err := c.Storage.ListTopics(ctx); err != nil {
		c.logger.Warn("topic index unavailable for vocabulary", zap.Error(err))
	} else {
		indexed = topics.Names(list)
	}
	c.Vocabulary.Replace(intent.MergeTerms(intent.SeedTopics, fileTerms, indexed))
	c.logger.Debug("vocabulary refreshed",
		zap.Int("terms", c.Vocabulary.Len()),
		zap.Int("file_terms", len(fileTerms)),
		zap.Int("indexed_topics", len(indexed)))
}

// IngestManifest indexes the manifest at path and refreshes everything derived from
// the material set.
func (c *Components) IngestManifest(ctx context.Context, path string) (indexer.Stats, error) {
	m, err := indexer.LoadManifest(path)
	if err != nil {
		return indexer.Stats{}, err
	}
	stats, err := c.Indexer.IndexManifest(ctx, m, filepath.Dir(path))
	c.materialsChanged(ctx)
	return stats, err
}

// DeleteMaterial removes one source document.
func (c *Components) DeleteMaterial(ctx context.Context, key string) error {
	if err := c.Indexer.DeleteDocument(ctx, key); err != nil {
		return err
	}
	c.materialsChanged(ctx)
	return nil
}

// IndexMaterial indexes one material and refreshes derived state.
func (c *Components) IndexMaterial(ctx context.Context, m *indexer.Material, baseDir string) (int, error) {
	n, err := c.Indexer.IndexMaterial(ctx, m, baseDir)
	if err != nil {
		return 0, err
	}
	c.materialsChanged(ctx)
	return n, nil
}

// DeleteDocument implements server.Ingester.
func (c *Components) DeleteDocument(ctx context.Context, key string) error {
	return c.DeleteMaterial(ctx, key)
}

func (c *Components) materialsChanged(ctx context.Context) {
	c.Topics.Invalidate()
	c.RefreshVocabulary(ctx)
	if err := c.SaveVectors(); err != nil {
		c.logger.Warn("vector index save failed", zap.Error(err))
	}
}

func newEmbedder(cfg config.EmbeddingConfig) embedding.Embedder {
	var e embedding.Embedder
	switch cfg.Provider {
	case config.ProviderOllama:
		e = embedding.NewOllamaEmbedder(cfg.Ollama)
	default:
		e = embedding.NewMockEmbedder(cfg.Dimensions)
	}
	return embedding.NewCachedEmbedder(e, cfg.CacheSize)
}

// newGenerator returns the static generator, or Ollama with the static generator as
// failover.
func newGenerator(cfg config.GenerationConfig, logger *zap.Logger) generation.Generator {
	static := generation.NewStaticGenerator()
	if cfg.Provider != config.ProviderOllama {
		return static
	}
	return generation.NewChain(logger, generation.NewOllamaGenerator(cfg.Ollama), static)
}
