package ranking

import (
	"strings"

	"github.com/hyperjump/guia/pkg/utils"
)

// MetadataScorer scores fragments by overlap between query terms and the
// source document's tags, file name and media type.
type MetadataScorer struct {
	config *RankingConfig
}

// NewMetadataScorer creates a new MetadataScorer with the given config.
func NewMetadataScorer(config *RankingConfig) *MetadataScorer {
	return &MetadataScorer{config: config}
}

// Name returns the scorer name.
func (s *MetadataScorer) Name() string {
	return "metadata"
}

// Score calculates the metadata match score, capped at 1.0.
func (s *MetadataScorer) Score(ctx *ScoringContext) float64 {
	if ctx.Query == nil || ctx.Fragment == nil || len(ctx.Query.Terms) == 0 {
		return 0
	}
	src := ctx.Fragment.Source

	tagWords := make(map[string]bool)
	for _, tag := range src.Tags {
		for _, w := range utils.Words(tag) {
			tagWords[w] = true
		}
	}
	nameWords := make(map[string]bool)
	for _, w := range utils.Words(src.FileName()) {
		nameWords[w] = true
	}
	for _, w := range utils.Words(src.DisplayName) {
		nameWords[w] = true
	}
	mediaType := utils.FoldAccents(src.MediaType)

	score := 0.0
	for _, term := range ctx.Query.Terms {
		if tagWords[term] {
			score += s.config.TagMatchScore
		}
		if nameWords[term] {
			score += s.config.FileNameMatchScore
		}
		if mediaType != "" && strings.Contains(mediaType, term) {
			score += s.config.TypeMatchScore
		}
		if score >= 1 {
			return 1
		}
	}
	return clip(score)
}

func clip(v float64) float64 {
	return utils.Clamp01(v)
}
