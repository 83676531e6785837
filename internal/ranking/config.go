package ranking

import (
	"fmt"
	"math"
)

// RankingConfig holds all configuration for the fragment ranker.
type RankingConfig struct {
	// Component weights; they must sum to 1.0.
	VectorWeight       float64 `yaml:"vector_weight"`       // default: 0.40
	CompletenessWeight float64 `yaml:"completeness_weight"` // default: 0.25
	PositionWeight     float64 `yaml:"position_weight"`     // default: 0.15
	MetadataWeight     float64 `yaml:"metadata_weight"`     // default: 0.20

	// Completeness scoring
	CompletenessIncrement float64 `yaml:"completeness_increment"` // default: 0.25
	MinWords              int     `yaml:"min_words"`              // default: 30
	MaxWords              int     `yaml:"max_words"`              // default: 300
	MinSentenceWords      int     `yaml:"min_sentence_words"`     // default: 3

	// Metadata scoring
	TagMatchScore      float64 `yaml:"tag_match_score"`       // default: 0.3
	FileNameMatchScore float64 `yaml:"file_name_match_score"` // default: 0.2
	TypeMatchScore     float64 `yaml:"type_match_score"`      // default: 0.1

	// Deduplication and selection
	DuplicateThreshold float64 `yaml:"duplicate_threshold"` // default: 0.85
	PerDocumentCap     int     `yaml:"per_document_cap"`    // default: 3
	SelectCount        int     `yaml:"select_count"`        // default: 5
}

// DefaultRankingConfig returns the default ranking configuration.
func DefaultRankingConfig() *RankingConfig {
	return &RankingConfig{
		VectorWeight:       0.40,
		CompletenessWeight: 0.25,
		PositionWeight:     0.15,
		MetadataWeight:     0.20,

		CompletenessIncrement: 0.25,
		MinWords:              30,
		MaxWords:              300,
		MinSentenceWords:      3,

		TagMatchScore:      0.3,
		FileNameMatchScore: 0.2,
		TypeMatchScore:     0.1,

		DuplicateThreshold: 0.85,
		PerDocumentCap:     3,
		SelectCount:        5,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *RankingConfig) ApplyDefaults() {
	defaults := DefaultRankingConfig()

	// Weights are only meaningful as a set.
	if c.VectorWeight == 0 && c.CompletenessWeight == 0 && c.PositionWeight == 0 && c.MetadataWeight == 0 {
		c.VectorWeight = defaults.VectorWeight
		c.CompletenessWeight = defaults.CompletenessWeight
		c.PositionWeight = defaults.PositionWeight
		c.MetadataWeight = defaults.MetadataWeight
	}

	if c.CompletenessIncrement == 0 {
		c.CompletenessIncrement = defaults.CompletenessIncrement
	}
	if c.MinWords == 0 {
		c.MinWords = defaults.MinWords
	}
	if c.MaxWords == 0 {
		c.MaxWords = defaults.MaxWords
	}
	if c.MinSentenceWords == 0 {
		c.MinSentenceWords = defaults.MinSentenceWords
	}

	if c.TagMatchScore == 0 {
		c.TagMatchScore = defaults.TagMatchScore
	}
	if c.FileNameMatchScore == 0 {
		c.FileNameMatchScore = defaults.FileNameMatchScore
	}
	if c.TypeMatchScore == 0 {
		c.TypeMatchScore = defaults.TypeMatchScore
	}

	if c.DuplicateThreshold == 0 {
		c.DuplicateThreshold = defaults.DuplicateThreshold
	}
	if c.PerDocumentCap == 0 {
		c.PerDocumentCap = defaults.PerDocumentCap
	}
	if c.SelectCount == 0 {
		c.SelectCount = defaults.SelectCount
	}
}

// Validate reports configuration that would break the [0,1] score invariant.
func (c *RankingConfig) Validate() error {
	weights := []float64{c.VectorWeight, c.CompletenessWeight, c.PositionWeight, c.MetadataWeight}
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("ranking weights must be non-negative, got %v", weights)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("ranking weights must sum to 1.0, got %.4f", sum)
	}
	if c.MinWords > c.MaxWords {
		return fmt.Errorf("min_words (%d) exceeds max_words (%d)", c.MinWords, c.MaxWords)
	}
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		return fmt.Errorf("duplicate_threshold must be in (0,1], got %v", c.DuplicateThreshold)
	}
	if c.PerDocumentCap < 1 {
		return fmt.Errorf("per_document_cap must be positive, got %d", c.PerDocumentCap)
	}
	return nil
}
