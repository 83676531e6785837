package ranking

// neutralPositionScore is used when the fragment count of the source document is unknown.
const neutralPositionScore = 0.8

// PositionScorer rewards fragments from the early-to-middle part of their document,
// where definitions tend to cluster.
type PositionScorer struct {
	config *RankingConfig
}

// NewPositionScorer creates a new PositionScorer with the given config.
func NewPositionScorer(config *RankingConfig) *PositionScorer {
	return &PositionScorer{config: config}
}

// Name returns the scorer name.
func (s *PositionScorer) Name() string {
	return "position"
}

// Score maps the relative position of the fragment to a fixed band.
func (s *PositionScorer) Score(ctx *ScoringContext) float64 {
	if ctx.Fragment == nil {
		return 0
	}
	total := ctx.Fragment.DocumentFragments
	if total <= 0 {
		return neutralPositionScore
	}
	seq := ctx.Fragment.SequenceIndex
	if seq < 0 {
		seq = 0
	}
	rel := float64(seq) / float64(total)

	switch {
	case rel <= 0.1:
		return 0.9
	case rel <= 0.5:
		return 1.0
	case rel <= 0.8:
		return 0.8
	default:
		return 0.6
	}
}
