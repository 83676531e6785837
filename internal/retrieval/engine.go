// Package retrieval finds candidate fragments for an utterance by fusing a semantic
// (vector) leg with a lexical (Bleve) leg.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/guia/internal/embedding"
	"github.com/hyperjump/guia/internal/keyword"
	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/internal/storage"
	"github.com/hyperjump/guia/internal/vector"
	"github.com/hyperjump/guia/pkg/utils"
)

// Config tunes hybrid retrieval.
type Config struct {
	TopKCandidates int     `yaml:"top_k_candidates"` // per leg, default 50
	KeywordWeight  float64 `yaml:"keyword_weight"`   // default 0.3
	SemanticWeight float64 `yaml:"semantic_weight"`  // default 0.7
	MinScore       float64 `yaml:"min_score"`        // fused hits below are dropped, default 0
}

// DefaultConfig returns the default retrieval configuration.
func DefaultConfig() Config {
	return Config{TopKCandidates: 50, KeywordWeight: 0.3, SemanticWeight: 0.7}
}

// ApplyDefaults fills zero fields. Weights are defaulted together when both are zero.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.TopKCandidates <= 0 {
		c.TopKCandidates = d.TopKCandidates
	}
	if c.KeywordWeight == 0 && c.SemanticWeight == 0 {
		c.KeywordWeight, c.SemanticWeight = d.KeywordWeight, d.SemanticWeight
	}
}

// Validate checks that the weights form a convex combination.
func (c *Config) Validate() error {
	if c.KeywordWeight < 0 || c.SemanticWeight < 0 {
		return fmt.Errorf("retrieval weights must be non-negative")
	}
	if sum := c.KeywordWeight + c.SemanticWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("retrieval weights must sum to 1, got %.3f", sum)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("retrieval min_score must be in [0,1], got %.3f", c.MinScore)
	}
	return nil
}

// Engine runs hybrid search over the indexed fragments.
type Engine struct {
	storage  storage.Storage
	embedder embedding.Embedder
	vectors  vector.Index
	keywords keyword.Index
	cfg      Config
	logger   *zap.Logger
}

// NewEngine creates a retrieval engine. keywords may be nil to run the semantic leg only.
func NewEngine(
	store storage.Storage,
	embedder embedding.Embedder,
	vectors vector.Index,
	keywords keyword.Index,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	cfg.ApplyDefaults()
	return &Engine{
		storage:  store,
		embedder: embedder,
		vectors:  vectors,
		keywords: keywords,
		cfg:      cfg,
		logger:   utils.LoggerOrNop(logger),
	}
}

// Search returns up to limit fragments for query, ordered by fused score. Each fragment's
// VectorScore carries the fused similarity in [0, 1]. Only fragments whose source passes
// filters are returned.
func (e *Engine) Search(ctx context.Context, query string, limit int, filters models.SearchFilters) ([]models.Fragment, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty query")
	}
	if limit <= 0 {
		return nil, nil
	}
	start := time.Now()

	var accept func(string) bool
	if !filters.IsEmpty() {
		allowed, err := e.storage.FragmentIDs(ctx, filters)
		if err != nil {
			return nil, fmt.Errorf("resolve filters: %w", err)
		}
		if len(allowed) == 0 {
			return nil, nil
		}
		accept = func(id string) bool {
			_, ok := allowed[id]
			return ok
		}
	}

	var (
		keywordHits  []keyword.Hit
		semanticHits []vector.Hit
	)
	g, gctx := errgroup.WithContext(ctx)
	if e.keywords != nil && e.cfg.KeywordWeight > 0 {
		g.Go(func() error {
			hits, err := e.keywords.Search(gctx, query, e.cfg.TopKCandidates, filters)
			if err != nil {
				return fmt.Errorf("keyword search failed: %w", err)
			}
			keywordHits = hits
			return nil
		})
	}
	if e.cfg.SemanticWeight > 0 {
		g.Go(func() error {
			queryVec, err := e.embedder.Embed(gctx, query)
			if err != nil {
				return fmt.Errorf("embedding failed: %w", err)
			}
			hits, err := e.vectors.Search(gctx, queryVec, e.cfg.TopKCandidates, accept)
			if err != nil {
				return fmt.Errorf("vector search failed: %w", err)
			}
			semanticHits = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := Fuse(NormalizeKeywordScores(keywordHits), SemanticScores(semanticHits), e.cfg.KeywordWeight, e.cfg.SemanticWeight)
	scores := make(map[string]float64, len(fused))
	ids := make([]string, 0, min(limit, len(fused)))
	for _, h := range fused {
		if len(ids) == limit {
			break
		}
		if h.Score < e.cfg.MinScore || h.Score <= 0 {
			continue
		}
		scores[h.ID] = h.Score
		ids = append(ids, h.ID)
	}

	fragments, err := e.storage.GetFragments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load fragments: %w", err)
	}
	out := fragments[:0]
	for _, f := range fragments {
		// the keyword leg filters on its own copy of the source metadata
		if !filters.Matches(&f) {
			continue
		}
		f.VectorScore = utils.Clamp01(scores[f.ID])
		out = append(out, f)
	}

	e.logger.Debug("retrieval",
		zap.String("query", query),
		zap.Int("keyword_hits", len(keywordHits)),
		zap.Int("semantic_hits", len(semanticHits)),
		zap.Int("returned", len(out)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}
