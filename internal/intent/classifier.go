// Package intent classifies user utterances with an ordered rule table.
package intent

import (
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/pkg/utils"
)

// Confidence assigned by each rule.
const (
	ConfidenceChoice       = 0.99
	ConfidenceCasual       = 0.97
	ConfidenceConfirmation = 0.9
	ConfidenceLevel        = 0.9
	ConfidenceDiscovery    = 0.9
	ConfidenceTopic        = 0.85
	ConfidenceContinuation = 0.85
	ConfidencePreference   = 0.8
	ConfidenceQuery        = 0.7
	ConfidenceShortTopic   = 0.6
)

// ShortUtteranceTokens is the longest utterance treated as a bare topic mention.
const ShortUtteranceTokens = 7

// Metadata keys set on intents.
const (
	MetaRule             = "rule"
	MetaShortUtterance   = "short_utterance"
	MetaPreferenceUpdate = "preference_update"
	MetaContinuationHint = "continuation_hint"
	MetaContextTurnID    = "context_turn_id"
	MetaFuzzyTopic       = "fuzzy_topic"
)

// rule is one row of the decision list.
type rule struct {
	name  string
	match func(c *Classifier, u *utterance, ctx Context) (models.Intent, bool)
}

// rules are evaluated top to bottom; the first match wins.
var rules = []rule{
	{"material_choice", matchMaterialChoice},
	{"confirmation", matchConfirmation},
	{"knowledge_level", matchKnowledgeLevel},
	{"casual", matchCasual},
	{"discovery", matchDiscovery},
	{"topic_vocabulary", matchTopicVocabulary},
	{"continuation", matchContinuation},
	{"preference", matchPreference},
	{"short_topic", matchShortTopic},
}

// Classifier maps an utterance and its session context to one Intent.
// It is safe for concurrent use.
type Classifier struct {
	vocabulary *Vocabulary
	logger     *zap.Logger
}

// NewClassifier creates a classifier over vocabulary. A nil vocabulary is
// replaced by one holding SeedTopics.
func NewClassifier(vocabulary *Vocabulary, logger *zap.Logger) *Classifier {
	if vocabulary == nil {
		vocabulary = NewVocabulary(SeedTopics)
	}
	return &Classifier{
		vocabulary: vocabulary,
		logger:     utils.LoggerOrNop(logger),
	}
}

// Vocabulary returns the topic vocabulary the classifier reads.
func (c *Classifier) Vocabulary() *Vocabulary {
	return c.vocabulary
}

// Classify returns exactly one intent for text.
func (c *Classifier) Classify(text string, ctx Context) models.Intent {
	u := newUtterance(text)
	for _, r := range rules {
		if in, ok := r.match(c, u, ctx); ok {
			in.Metadata = withMeta(in.Metadata, MetaRule, r.name)
			c.logger.Debug("intent classified",
				zap.String("rule", r.name),
				zap.String("intent", string(in.Kind)),
				zap.Float64("confidence", in.Confidence))
			return in
		}
	}
	in := defaultQuery(u, ctx)
	c.logger.Debug("intent classified", zap.String("rule", "default"), zap.String("intent", string(in.Kind)))
	return in
}

func matchMaterialChoice(_ *Classifier, u *utterance, ctx Context) (models.Intent, bool) {
	if ctx.PendingOptions == 0 {
		return models.Intent{}, false
	}
	idx, _, valid := ResolveSelection(u.raw, ctx.PendingOptions)
	if !valid {
		return models.Intent{}, false
	}
	return models.Intent{Kind: models.IntentMaterialChoice, Confidence: ConfidenceChoice, ChoiceIndex: idx}, true
}

func matchConfirmation(_ *Classifier, u *utterance, ctx Context) (models.Intent, bool) {
	if !onlyPhrases(confirmationPhrases, confirmationFiller, u.tokens) {
		return models.Intent{}, false
	}
	fragments, _ := ctx.pending()
	if len(fragments) == 0 {
		return models.Intent{}, false
	}
	return models.Intent{
		Kind:             models.IntentConfirmation,
		Confidence:       ConfidenceConfirmation,
		PendingFragments: models.CloneFragments(fragments),
	}, true
}

func matchKnowledgeLevel(_ *Classifier, u *utterance, ctx Context) (models.Intent, bool) {
	level, ok := matchLevel(u.tokens)
	if !ok {
		return models.Intent{}, false
	}
	fragments, topic := ctx.pending()
	if len(fragments) == 0 {
		return models.Intent{}, false
	}
	return models.Intent{
		Kind:             models.IntentKnowledgeLevel,
		Confidence:       ConfidenceLevel,
		Topic:            topic,
		Level:            level,
		PendingFragments: models.CloneFragments(fragments),
	}, true
}

func matchCasual(_ *Classifier, u *utterance, _ Context) (models.Intent, bool) {
	if !onlyPhrases(casualPhrases, casualFiller, u.tokens) {
		return models.Intent{}, false
	}
	return models.Intent{Kind: models.IntentCasual, Confidence: ConfidenceCasual}, true
}

func matchDiscovery(_ *Classifier, u *utterance, _ Context) (models.Intent, bool) {
	if !discoveryPhrases.matches(u.tokens) {
		return models.Intent{}, false
	}
	return models.Intent{Kind: models.IntentDiscovery, Confidence: ConfidenceDiscovery}, true
}

// matchTopicVocabulary fires on a known topic unless the utterance is a plain
// question about it; those go to Query so the full question drives retrieval.
func matchTopicVocabulary(c *Classifier, u *utterance, _ Context) (models.Intent, bool) {
	if u.hasInterrogative() && !interestPhrases.matches(u.tokens) {
		return models.Intent{}, false
	}
	term, ok := c.vocabulary.Match(u.tokens)
	if !ok {
		return models.Intent{}, false
	}
	in := models.Intent{Kind: models.IntentTopicInterest, Confidence: ConfidenceTopic, Term: term}
	if !containsPhrase(u.tokens, utils.Words(term)) {
		in.Metadata = withMeta(in.Metadata, MetaFuzzyTopic, true)
	}
	return in, true
}

func matchContinuation(_ *Classifier, u *utterance, ctx Context) (models.Intent, bool) {
	if !continuationPhrases.matches(u.tokens) {
		return models.Intent{}, false
	}
	t, ok := ctx.UsableTurn()
	if !ok {
		return models.Intent{}, false
	}
	return models.Intent{
		Kind:         models.IntentContinuation,
		Confidence:   ConfidenceContinuation,
		ContextTopic: topicOf(t),
		Metadata:     map[string]any{MetaContextTurnID: t.ID},
	}, true
}

// matchPreference fires on utterances that state a preference and carry a cue.
// The turn proceeds as a Query; the cues are merged by the caller.
func matchPreference(_ *Classifier, u *utterance, _ Context) (models.Intent, bool) {
	if !preferencePhrases.matches(u.tokens) {
		return models.Intent{}, false
	}
	if ExtractPreferences(u.raw).IsEmpty() {
		return models.Intent{}, false
	}
	return models.Intent{
		Kind:       models.IntentQuery,
		Confidence: ConfidencePreference,
		Metadata:   map[string]any{MetaPreferenceUpdate: true},
	}, true
}

func matchShortTopic(_ *Classifier, u *utterance, _ Context) (models.Intent, bool) {
	if len(u.tokens) == 0 || len(u.tokens) > ShortUtteranceTokens || u.hasInterrogative() {
		return models.Intent{}, false
	}
	term := strings.TrimRight(utils.NormalizeSpace(u.raw), ".!;:,")
	return models.Intent{
		Kind:       models.IntentTopicInterest,
		Confidence: ConfidenceShortTopic,
		Term:       term,
		Metadata:   map[string]any{MetaShortUtterance: true},
	}, true
}

func defaultQuery(u *utterance, ctx Context) models.Intent {
	in := models.Intent{Kind: models.IntentQuery, Confidence: ConfidenceQuery}
	if len(u.tokens) <= ShortUtteranceTokens {
		if t, ok := ctx.UsableTurn(); ok {
			in.Metadata = map[string]any{
				MetaContinuationHint: topicOf(t),
				MetaContextTurnID:    t.ID,
			}
		}
	}
	return in
}

func withMeta(m map[string]any, key string, value any) map[string]any {
	if m == nil {
		m = make(map[string]any, 1)
	}
	m[key] = value
	return m
}
