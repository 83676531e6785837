// Package ranking provides multi-factor scoring, deduplication, and diversity-aware
// selection of retrieved fragments.
package ranking

import "github.com/hyperjump/guia/internal/models"

// AnalyzedQuery holds the parsed form of a query.
type AnalyzedQuery struct {
	// Original is the original query string.
	Original string
	// Terms are the accent-folded query words longer than two runes, stop-words removed.
	Terms []string
}

// ScoringContext provides everything a scorer needs for one fragment.
type ScoringContext struct {
	Query    *AnalyzedQuery
	Fragment *models.Fragment
}

// Scorer is the interface for all scoring components. Scores lie in [0, 1].
type Scorer interface {
	// Score calculates the component score for the fragment in ctx.
	Score(ctx *ScoringContext) float64
	// Name returns the name of the scorer for debugging/logging.
	Name() string
}
