package indexer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/guia/internal/docid"
	"github.com/hyperjump/guia/internal/embedding"
	"github.com/hyperjump/guia/internal/keyword"
	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/internal/storage"
	"github.com/hyperjump/guia/internal/vector"
	"github.com/hyperjump/guia/pkg/utils"
)

// Indexer writes materials into storage, the vector index and the keyword index.
type Indexer struct {
	storage  storage.Storage
	embedder embedding.Embedder
	vectors  vector.Index
	keywords keyword.Index
	chunker  *Chunker
	logger   *zap.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger for ingestion events.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithChunker replaces the default chunker (120 words, 20 overlap).
func WithChunker(c *Chunker) Option {
	return func(idx *Indexer) { idx.chunker = c }
}

// New creates an indexer with the given dependencies.
func New(
	store storage.Storage,
	embedder embedding.Embedder,
	vectors vector.Index,
	keywords keyword.Index,
	opts ...Option,
) *Indexer {
	idx := &Indexer{
		storage:  store,
		embedder: embedder,
		vectors:  vectors,
		keywords: keywords,
		chunker:  NewChunker(120, 20),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.LoggerOrNop(idx.logger)
	return idx
}

// Stats summarizes an ingestion run.
type Stats struct {
	Documents int `json:"documents"`
	Fragments int `json:"fragments"`
	Failed    int `json:"failed"`
}

// IndexManifest ingests every material. A failing material is logged and skipped;
// the joined errors are returned with the stats of what succeeded.
func (idx *Indexer) IndexManifest(ctx context.Context, m *Manifest, baseDir string) (Stats, error) {
	var (
		stats Stats
		errs  []error
	)
	for i := range m.Materials {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		n, err := idx.IndexMaterial(ctx, &m.Materials[i], baseDir)
		if err != nil {
			stats.Failed++
			errs = append(errs, err)
			idx.logger.Warn("material not indexed",
				zap.String("source", m.Materials[i].Source().Key()),
				zap.Error(err),
			)
			continue
		}
		stats.Documents++
		stats.Fragments += n
	}
	return stats, errors.Join(errs...)
}

// IndexMaterial splits, embeds and stores one material, replacing any earlier version of the
// same source document. It returns the number of fragments written.
func (idx *Indexer) IndexMaterial(ctx context.Context, m *Material, baseDir string) (int, error) {
	src := m.Source()
	key := src.Key()
	docID := docid.ForSource(key)

	var fragments []models.Fragment
	for _, part := range m.parts() {
		text, err := readText(part, baseDir)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		for _, chunk := range idx.chunker.Chunk(Preprocess(text)) {
			f := models.Fragment{
				ID:            docid.Fragment(docID, len(fragments)),
				Content:       chunk,
				Source:        src,
				SequenceIndex: len(fragments),
			}
			f.Source.PageNumber = part.Page
			f.Source.SectionLabel = part.Label
			fragments = append(fragments, f)
		}
	}
	if len(fragments) == 0 {
		return 0, fmt.Errorf("%s: no text to index", key)
	}
	for i := range fragments {
		fragments[i].DocumentFragments = len(fragments)
	}

	texts := make([]string, len(fragments))
	ids := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i], ids[i] = f.Content, f.ID
	}
	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to generate embeddings: %w", key, err)
	}

	stale, err := idx.staleFragments(ctx, key, len(fragments))
	if err != nil {
		return 0, err
	}
	if err := idx.storage.SaveDocument(ctx, &models.Document{Source: src}, fragments); err != nil {
		return 0, fmt.Errorf("%s: failed to store document: %w", key, err)
	}
	if err := idx.vectors.Upsert(ctx, ids, vectors); err != nil {
		return 0, fmt.Errorf("%s: failed to index vectors: %w", key, err)
	}
	if err := idx.keywords.Index(ctx, fragments); err != nil {
		return 0, fmt.Errorf("%s: failed to index keywords: %w", key, err)
	}
	if len(stale) > 0 {
		if err := idx.removeFromIndexes(ctx, stale); err != nil {
			return 0, err
		}
	}

	idx.logger.Debug("material indexed",
		zap.String("source", key),
		zap.String("doc_id", docID),
		zap.Int("fragments", len(fragments)),
		zap.Int("stale", len(stale)),
	)
	return len(fragments), nil
}

// staleFragments returns the IDs of stored fragments of key beyond the new fragment count.
func (idx *Indexer) staleFragments(ctx context.Context, key string, keep int) ([]string, error) {
	existing, err := idx.storage.FragmentsByDocument(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load fragments: %w", key, err)
	}
	var stale []string
	for _, f := range existing {
		if f.SequenceIndex >= keep {
			stale = append(stale, f.ID)
		}
	}
	return stale, nil
}

func (idx *Indexer) removeFromIndexes(ctx context.Context, ids []string) error {
	if err := idx.vectors.Remove(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete from vector index: %w", err)
	}
	if err := idx.keywords.Delete(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	return nil
}

// DeleteDocument removes a source document from storage and both indexes.
func (idx *Indexer) DeleteDocument(ctx context.Context, key string) error {
	fragments, err := idx.storage.FragmentsByDocument(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get fragments: %w", err)
	}
	ids := make([]string, len(fragments))
	for i, f := range fragments {
		ids[i] = f.ID
	}
	if err := idx.removeFromIndexes(ctx, ids); err != nil {
		return err
	}
	if err := idx.storage.DeleteDocument(ctx, key); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	idx.logger.Debug("document deleted", zap.String("source", key), zap.Int("fragments", len(ids)))
	return nil
}
