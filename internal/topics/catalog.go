// Package topics serves the topic index: topics aggregated from the ingested materials,
// cached for a while, with a static seed list when the store has none.
package topics

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/pkg/utils"
)

// DefaultTTL is how long a topic listing is served from cache.
const DefaultTTL = 5 * time.Minute

const cacheKey = "topics"

// Source aggregates topics from stored materials.
type Source interface {
	ListTopics(ctx context.Context) ([]models.Topic, error)
}

// SeedTerms provides fallback topic names.
type SeedTerms interface {
	Terms() []string
}

// Catalog implements the topic index on top of a Source.
type Catalog struct {
	source Source
	seed   SeedTerms
	cache  *cache.Cache
	group  singleflight.Group
	logger *zap.Logger
}

// Option configures a Catalog.
type Option func(*catalogOptions)

type catalogOptions struct {
	ttl    time.Duration
	seed   SeedTerms
	logger *zap.Logger
}

// WithTTL sets the cache lifetime of a listing.
func WithTTL(ttl time.Duration) Option {
	return func(o *catalogOptions) { o.ttl = ttl }
}

// WithSeed sets the fallback used when the source fails or has no topics.
func WithSeed(seed SeedTerms) Option {
	return func(o *catalogOptions) { o.seed = seed }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *catalogOptions) { o.logger = l }
}

// NewCatalog creates a catalog over source. source may be nil, in which case only the seed is served.
func NewCatalog(source Source, opts ...Option) *Catalog {
	o := catalogOptions{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = DefaultTTL
	}
	return &Catalog{
		source: source,
		seed:   o.seed,
		cache:  cache.New(o.ttl, 2*o.ttl),
		logger: utils.LoggerOrNop(o.logger),
	}
}

// ListTopics returns the topic index. Concurrent misses share one source query. When the
// source fails or is empty the seed terms are returned as topics without counts; only
// source results are cached.
func (c *Catalog) ListTopics(ctx context.Context) ([]models.Topic, error) {
	if v, ok := c.cache.Get(cacheKey); ok {
		return cloneTopics(v.([]models.Topic)), nil
	}

	v, err, _ := c.group.Do(cacheKey, func() (any, error) {
		if c.source == nil {
			return nil, nil
		}
		topics, err := c.source.ListTopics(ctx)
		if err != nil {
			return nil, err
		}
		if len(topics) > 0 {
			c.cache.SetDefault(cacheKey, topics)
		}
		return topics, nil
	})
	var topics []models.Topic
	if v != nil {
		topics = v.([]models.Topic)
	}
	if err == nil && len(topics) > 0 {
		return cloneTopics(topics), nil
	}

	fallback := c.seedTopics()
	if len(fallback) == 0 {
		if err != nil {
			return nil, err
		}
		return nil, errors.New("no topics available")
	}
	if err != nil {
		c.logger.Warn("topic source failed, serving seed topics", zap.Error(err))
	}
	return fallback, nil
}

// Invalidate drops the cached listing, e.g. after an ingestion.
func (c *Catalog) Invalidate() {
	c.cache.Delete(cacheKey)
}

func (c *Catalog) seedTopics() []models.Topic {
	if c.seed == nil {
		return nil
	}
	terms := c.seed.Terms()
	out := make([]models.Topic, len(terms))
	for i, t := range terms {
		out[i] = models.Topic{Name: t}
	}
	return out
}

func cloneTopics(in []models.Topic) []models.Topic {
	out := make([]models.Topic, len(in))
	for i, t := range in {
		t.MediaTypes = append([]string(nil), t.MediaTypes...)
		t.ExampleDocuments = append([]string(nil), t.ExampleDocuments...)
		out[i] = t
	}
	return out
}

// Names returns the topic names of topics, in order.
func Names(topics []models.Topic) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = t.Name
	}
	return out
}
