// Package keyword provides the lexical leg of retrieval: a Bleve index over fragment text,
// tags and source names.
package keyword

import (
	"context"

	"github.com/hyperjump/guia/internal/models"
)

// Index defines keyword indexing and search over fragments.
type Index interface {
	Index(ctx context.Context, fragments []models.Fragment) error
	Search(ctx context.Context, query string, limit int, filters models.SearchFilters) ([]Hit, error)
	Delete(ctx context.Context, ids []string) error
	DocCount() (uint64, error)
	Close() error
}

// Hit is a single keyword search result. Score is the raw Bleve score.
type Hit struct {
	ID    string
	Score float64
}

// Options tune keyword search. Zero values select the defaults.
type Options struct {
	// SourceBoost multiplies matches in the source name field (default 2).
	SourceBoost float64
	// Fuzziness is the edit distance allowed per query term for words of five or more
	// letters (default 1, negative disables fuzzy matching).
	Fuzziness int
}

func (o Options) withDefaults() Options {
	if o.SourceBoost <= 0 {
		o.SourceBoost = 2
	}
	if o.Fuzziness == 0 {
		o.Fuzziness = 1
	}
	if o.Fuzziness < 0 {
		o.Fuzziness = 0
	}
	return o
}
