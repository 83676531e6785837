package ranking

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var sentenceSpanRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// CompletenessScorer rewards fragments that read as self-contained prose.
type CompletenessScorer struct {
	config *RankingConfig
}

// NewCompletenessScorer creates a new CompletenessScorer with the given config.
func NewCompletenessScorer(config *RankingConfig) *CompletenessScorer {
	return &CompletenessScorer{config: config}
}

// Name returns the scorer name.
func (s *CompletenessScorer) Name() string {
	return "completeness"
}

// Score adds one increment per satisfied condition: capital first letter,
// terminal punctuation, at least two sentence-like spans, and a word count
// inside [MinWords, MaxWords].
func (s *CompletenessScorer) Score(ctx *ScoringContext) float64 {
	if ctx.Fragment == nil {
		return 0
	}
	content := strings.TrimSpace(ctx.Fragment.Content)
	if content == "" {
		return 0
	}

	score := 0.0
	if startsCapitalized(content) {
		score += s.config.CompletenessIncrement
	}
	if endsWithTerminal(content) {
		score += s.config.CompletenessIncrement
	}
	if s.sentenceSpans(content) >= 2 {
		score += s.config.CompletenessIncrement
	}
	words := len(strings.Fields(content))
	if words >= s.config.MinWords && words <= s.config.MaxWords {
		score += s.config.CompletenessIncrement
	}
	return clip(score)
}

func (s *CompletenessScorer) sentenceSpans(content string) int {
	n := 0
	for _, span := range sentenceSpanRe.FindAllString(content, -1) {
		if len(strings.Fields(span)) >= s.config.MinSentenceWords {
			n++
		}
	}
	return n
}

func startsCapitalized(content string) bool {
	// Skip leading quotes and list markers.
	trimmed := strings.TrimLeftFunc(content, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	r, _ := utf8.DecodeRuneInString(trimmed)
	return r != utf8.RuneError && unicode.IsUpper(r)
}

func endsWithTerminal(content string) bool {
	trimmed := strings.TrimRight(content, "\"')]”’» \t\n")
	if trimmed == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(trimmed)
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}
