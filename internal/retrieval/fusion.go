package retrieval

import (
	"sort"

	"github.com/hyperjump/guia/internal/keyword"
	"github.com/hyperjump/guia/internal/vector"
)

// FusedHit holds a fragment ID with its fused and per-leg scores, all in [0, 1].
type FusedHit struct {
	ID            string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores divides keyword scores by the best one.
func NormalizeKeywordScores(hits []keyword.Hit) map[string]float64 {
	normalized := make(map[string]float64, len(hits))
	var maxScore float64
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	for _, h := range hits {
		if maxScore > 0 {
			normalized[h.ID] = h.Score / maxScore
		} else {
			normalized[h.ID] = 0
		}
	}
	return normalized
}

// SemanticScores maps vector hits by ID. Vector scores are already clipped cosines.
func SemanticScores(hits []vector.Hit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	for _, h := range hits {
		out[h.ID] = h.Score
	}
	return out
}

// Fuse merges keyword and semantic scores with the given weights and returns the hits
// sorted by descending fused score, ties broken by ID.
func Fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []FusedHit {
	byID := make(map[string]*FusedHit, len(keywordScores)+len(semanticScores))
	for id, score := range keywordScores {
		byID[id] = &FusedHit{ID: id, KeywordScore: score}
	}
	for id, score := range semanticScores {
		if h, ok := byID[id]; ok {
			h.SemanticScore = score
			continue
		}
		byID[id] = &FusedHit{ID: id, SemanticScore: score}
	}

	out := make([]FusedHit, 0, len(byID))
	for _, h := range byID {
		h.Score = keywordWeight*h.KeywordScore + semanticWeight*h.SemanticScore
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
