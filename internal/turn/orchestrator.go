// Package turn composes classification, retrieval, ranking and gating into
// one conversational turn and commits the outcome to the session store.
package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/guia/internal/generation"
	"github.com/hyperjump/guia/internal/intent"
	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/internal/ranking"
	"github.com/hyperjump/guia/internal/relevance"
	"github.com/hyperjump/guia/internal/session"
	"github.com/hyperjump/guia/pkg/utils"
)

// Retriever fetches candidate fragments for a query.
type Retriever interface {
	Search(ctx context.Context, query string, limit int, filters models.SearchFilters) ([]models.Fragment, error)
}

// TopicLister lists the topics of the document index.
type TopicLister interface {
	ListTopics(ctx context.Context) ([]models.Topic, error)
}

// Config tunes the orchestrator.
type Config struct {
	Threshold       float64
	StrictThreshold float64
	// SelectCount is k for SelectBest when the session has no fragment cap.
	SelectCount int
	// CandidateLimit is how many candidates are requested from the retriever.
	CandidateLimit    int
	HistoryWindow     int
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
	// SuggestedTopics bounds the topic names put in suggestions.
	SuggestedTopics int
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:         relevance.DefaultThreshold,
		StrictThreshold:   relevance.StrictThreshold,
		SelectCount:       session.DefaultMaxFragments,
		CandidateLimit:    20,
		HistoryWindow:     session.DefaultHistoryWindow,
		RetrievalTimeout:  30 * time.Second,
		GenerationTimeout: 30 * time.Second,
		SuggestedTopics:   8,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.StrictThreshold <= 0 {
		c.StrictThreshold = d.StrictThreshold
	}
	if c.SelectCount <= 0 {
		c.SelectCount = d.SelectCount
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = d.CandidateLimit
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = d.HistoryWindow
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = d.RetrievalTimeout
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = d.GenerationTimeout
	}
	if c.SuggestedTopics <= 0 {
		c.SuggestedTopics = d.SuggestedTopics
	}
}

// Deps are the collaborators of an Orchestrator. Store, Retriever and
// Generator are required.
type Deps struct {
	Store      *session.Store
	Classifier *intent.Classifier
	Ranker     *ranking.Ranker
	Retriever  Retriever
	Generator  generation.Generator
	Topics     TopicLister
	Logger     *zap.Logger
}

// Orchestrator runs turns. It is safe for concurrent use; turns on the same
// session are serialized by the store.
type Orchestrator struct {
	store      *session.Store
	classifier *intent.Classifier
	ranker     *ranking.Ranker
	retriever  Retriever
	generator  generation.Generator
	topics     TopicLister
	cfg        Config
	logger     *zap.Logger
}

// New creates an orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Store == nil || deps.Retriever == nil || deps.Generator == nil {
		return nil, errors.New("turn: store, retriever and generator are required")
	}
	cfg.applyDefaults()
	logger := utils.LoggerOrNop(deps.Logger)
	if deps.Classifier == nil {
		deps.Classifier = intent.NewClassifier(nil, logger)
	}
	if deps.Ranker == nil {
		deps.Ranker = ranking.NewRanker(nil)
	}
	return &Orchestrator{
		store:      deps.Store,
		classifier: deps.Classifier,
		ranker:     deps.Ranker,
		retriever:  deps.Retriever,
		generator:  deps.Generator,
		topics:     deps.Topics,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Result is the outcome of one turn.
type Result struct {
	SessionID string                      `json:"session_id"`
	TurnID    string                      `json:"turn_id"`
	Directive *models.Directive           `json:"directive"`
	Session   *models.ConversationSession `json:"session"`
	// Failure carries a recovered retrieval or generation error. The directive
	// is then degraded and only an error record was committed.
	Failure error `json:"-"`
}

// ProcessTurn handles one user utterance. An empty sessionID starts a new
// session. Retrieval and generation failures are recovered into a degraded
// directive; the returned error is only set when nothing was committed.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, utterance string) (*Result, error) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return nil, models.ErrEmptyUtterance
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	res := &Result{SessionID: sessionID}
	snap, err := o.store.Update(ctx, sessionID, func(s *models.ConversationSession) error {
		return o.run(ctx, s, text, res)
	})
	if err != nil {
		return nil, err
	}
	res.Session = snap
	return res, nil
}

// turnState carries one turn's work in progress.
type turnState struct {
	scratch   *models.ConversationSession
	text      string
	intent    models.Intent
	directive *models.Directive
	action    session.Action
	request   *generation.Request
}

func (o *Orchestrator) run(ctx context.Context, s *models.ConversationSession, text string, res *Result) error {
	now := o.store.Now()
	rec := session.NewTurn(now)
	rec.UserText = text
	res.TurnID = rec.ID

	ts := &turnState{scratch: s.Clone(), text: text}
	if upd := intent.ExtractPreferences(text); !upd.IsEmpty() {
		session.MergePreferences(&ts.scratch.Preferences, upd)
	}

	err := o.decide(ctx, ts)
	if err == nil {
		err = o.generate(ctx, ts)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.fail(s, rec, ts, err, res)
		return nil
	}

	d := ts.directive
	rec.Intent = ts.intent.Kind
	rec.ResponseText = d.Text
	rec.ResponseType = d.ResponseType
	rec.Fragments = models.CloneFragments(d.Fragments)
	rec.SearchTerm = d.SearchTerm
	rec.Metadata = turnMetadata(ts)

	if d.Kind == models.DirectiveOfferChoice {
		session.OfferChoice(ts.scratch, d.Groups, d.SearchTerm, now)
	}
	if d.AskDepth {
		session.PostPendingFragments(ts.scratch, d.Fragments)
	}
	from, to := session.Transition(ts.scratch, ts.intent.Kind, ts.action)
	if d.Kind == models.DirectiveAnswer {
		session.MarkShown(ts.scratch, d.Fragments)
	}
	session.AppendTurn(ts.scratch, rec)
	*s = *ts.scratch

	o.logger.Debug("turn committed",
		zap.String("session_id", s.ID),
		zap.String("intent", string(ts.intent.Kind)),
		zap.String("directive", string(d.Kind)),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	res.Directive = d
	return nil
}

// decide resolves a pending choice or classifies the utterance, and fills in
// the directive and generation request.
func (o *Orchestrator) decide(ctx context.Context, ts *turnState) error {
	invalidChoice := false
	if pc := ts.scratch.PendingChoice; pc != nil {
		idx, parsed, valid := intent.ResolveSelection(ts.text, len(pc.Options))
		if valid {
			o.resolveChoice(ts, pc, idx)
			return nil
		}
		// Any other input abandons the offer and is processed normally.
		session.ClearChoice(ts.scratch)
		invalidChoice = parsed
	}

	ictx := intent.ContextFromSession(ts.scratch, o.cfg.HistoryWindow)
	ts.intent = o.classifier.Classify(ts.text, ictx)

	var err error
	switch ts.intent.Kind {
	case models.IntentCasual:
		o.casual(ts)
	case models.IntentDiscovery:
		o.discovery(ctx, ts)
	case models.IntentConfirmation:
		o.answerPending(ts, models.ResponseConfirmation)
	case models.IntentKnowledgeLevel:
		level := ts.intent.Level
		session.MergePreferences(&ts.scratch.Preferences, models.PreferencesUpdate{Depth: &level})
		o.answerPending(ts, models.ResponseKnowledgeLevel)
	default:
		err = o.retrieve(ctx, ts)
	}
	if err != nil {
		return err
	}
	if invalidChoice {
		ts.directive.InvalidChoice = true
		ts.request.InvalidChoice = true
	}
	return nil
}

func (o *Orchestrator) resolveChoice(ts *turnState, pc *models.PendingChoice, idx int) {
	group := pc.Options[idx]
	ts.intent = models.Intent{
		Kind:        models.IntentMaterialChoice,
		Confidence:  intent.ConfidenceChoice,
		ChoiceIndex: idx,
	}
	k := session.SelectCount(ts.scratch.Preferences, o.cfg.SelectCount)
	fragments := o.ranker.SelectBest(group.Fragments, k)
	ts.directive = &models.Directive{
		Kind:         models.DirectiveAnswer,
		Intent:       ts.intent,
		ResponseType: models.ResponseMaterialChoice,
		SearchTerm:   pc.Query,
		Fragments:    fragments,
		Groups:       []models.DocumentGroup{group},
	}
	ts.action = session.ActionChoiceResolved
	ts.request = o.request(ts, generation.PromptAnswer)
	ts.request.Utterance = pc.Query
}

func (o *Orchestrator) casual(ts *turnState) {
	ts.directive = &models.Directive{
		Kind:         models.DirectiveCasual,
		Intent:       ts.intent,
		ResponseType: models.ResponseCasual,
	}
	ts.request = o.request(ts, generation.PromptCasual)
}

func (o *Orchestrator) discovery(ctx context.Context, ts *turnState) {
	topics := o.topicNames(ctx)
	ts.directive = &models.Directive{
		Kind:         models.DirectiveDiscovery,
		Intent:       ts.intent,
		ResponseType: models.ResponseDiscovery,
		Topics:       topics,
	}
	ts.request = o.request(ts, generation.PromptDiscovery)
}

// answerPending answers from the fragments a confirmation or knowledge-level
// intent refers to, without a new retrieval.
func (o *Orchestrator) answerPending(ts *turnState, rt models.ResponseType) {
	k := session.SelectCount(ts.scratch.Preferences, o.cfg.SelectCount)
	fragments := o.ranker.SelectBest(ts.intent.PendingFragments, k)
	ts.directive = &models.Directive{
		Kind:         models.DirectiveAnswer,
		Intent:       ts.intent,
		ResponseType: rt,
		SearchTerm:   ts.intent.Topic,
		Fragments:    fragments,
	}
	ts.request = o.request(ts, generation.PromptAnswer)
}

// retrieve runs the retrieval path for Query, TopicInterest and Continuation.
func (o *Orchestrator) retrieve(ctx context.Context, ts *turnState) error {
	query := o.searchQuery(ts)
	prefs := ts.scratch.Preferences

	candidates, err := o.search(ctx, query, prefs)
	if err != nil {
		return err
	}
	if ts.intent.Kind == models.IntentContinuation {
		candidates = o.excludeContextFragments(ts, candidates)
	}

	ranked := o.ranker.Rank(candidates, query)
	deduped := o.ranker.Deduplicate(ranked)
	selected := o.ranker.SelectBest(deduped, session.SelectCount(prefs, o.cfg.SelectCount))

	threshold := o.cfg.Threshold
	if ts.intent.Metadata[intent.MetaShortUtterance] == true {
		threshold = o.cfg.StrictThreshold
	}
	gate := relevance.Gate(selected, threshold)

	d := &models.Directive{Intent: ts.intent, SearchTerm: query, Gate: gate.Stats()}
	ts.directive = d

	switch {
	case gate.NoContent():
		d.Kind = models.DirectiveSuggestTopics
		d.ResponseType = models.ResponseNoContent
		d.Topics = o.topicNames(ctx)
		ts.request = o.request(ts, generation.PromptNoContent)
	case gate.SingleDocument():
		d.Kind = models.DirectiveAnswer
		d.Fragments = gate.Relevant
		if ts.intent.Kind == models.IntentContinuation || prefs.ResponseMode == models.ResponseModeDocument {
			d.Fragments = o.ranker.MergeContiguous(d.Fragments)
		}
		d.Groups = gate.Groups
		d.ResponseType = models.ResponseConsulta
		if ts.intent.Kind == models.IntentTopicInterest {
			d.ResponseType = models.ResponseTopicEngagement
			// Without a known depth, the answer also asks for one.
			if prefs.Depth == "" {
				d.AskDepth = true
				ts.action = session.ActionSpecificationRequested
			}
		}
		ts.request = o.request(ts, generation.PromptAnswer)
		ts.request.AskDepth = d.AskDepth
	default:
		d.Kind = models.DirectiveOfferChoice
		d.ResponseType = models.ResponseMaterialList
		d.Groups = gate.Groups
		ts.action = session.ActionMaterialListOffered
		ts.request = o.request(ts, generation.PromptMaterialList)
	}
	return nil
}

// searchQuery picks the retrieval text: the intent's search term, else the
// utterance, prefixed by the continuation hint when the classifier left one.
func (o *Orchestrator) searchQuery(ts *turnState) string {
	if term := ts.intent.SearchTerm(); term != "" {
		return term
	}
	if hint, ok := ts.intent.Metadata[intent.MetaContinuationHint].(string); ok && hint != "" {
		return hint + " " + ts.text
	}
	return ts.text
}

// search queries the retriever under the retrieval timeout. Preferred media
// types scope the first attempt; an empty result retries without them.
func (o *Orchestrator) search(ctx context.Context, query string, prefs models.Preferences) ([]models.Fragment, error) {
	rctx, cancel := context.WithTimeout(ctx, o.cfg.RetrievalTimeout)
	defer cancel()

	var filters models.SearchFilters
	if len(prefs.PreferredMediaTypes) > 0 {
		filters.MediaTypes = prefs.PreferredMediaTypes
	}
	candidates, err := o.retriever.Search(rctx, query, o.cfg.CandidateLimit, filters)
	if err == nil && len(candidates) == 0 && !filters.IsEmpty() {
		candidates, err = o.retriever.Search(rctx, query, o.cfg.CandidateLimit, models.SearchFilters{})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrRetrievalFailure, err)
	}
	return candidates, nil
}

// excludeContextFragments drops fragments already shown in the turn being
// continued, unless nothing would be left.
func (o *Orchestrator) excludeContextFragments(ts *turnState, candidates []models.Fragment) []models.Fragment {
	turnID, _ := ts.intent.Metadata[intent.MetaContextTurnID].(string)
	if turnID == "" {
		return candidates
	}
	shown := make(map[string]bool)
	for _, t := range ts.scratch.History {
		if t.ID == turnID {
			for _, f := range t.Fragments {
				for _, id := range ranking.ConstituentIDs(f.ID) {
					shown[id] = true
				}
			}
		}
	}
	fresh := make([]models.Fragment, 0, len(candidates))
	for _, f := range candidates {
		if !shown[f.ID] {
			fresh = append(fresh, f)
		}
	}
	if len(fresh) == 0 {
		return candidates
	}
	return fresh
}

// generate fills the directive text under the generation timeout.
func (o *Orchestrator) generate(ctx context.Context, ts *turnState) error {
	gctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	text, err := o.generator.Generate(gctx, ts.request)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrGenerationFailure, err)
	}
	ts.directive.Text = text
	return nil
}

func (o *Orchestrator) request(ts *turnState, kind generation.PromptKind) *generation.Request {
	d := ts.directive
	return &generation.Request{
		Kind:        kind,
		Utterance:   ts.text,
		History:     ts.scratch.Messages(o.cfg.HistoryWindow),
		Fragments:   d.Fragments,
		Groups:      d.Groups,
		Topics:      d.Topics,
		Preferences: ts.scratch.Preferences,
	}
}

// fail commits only an error record on s, leaving flow state and pending
// fields untouched, and returns a degraded directive.
func (o *Orchestrator) fail(s *models.ConversationSession, rec models.Turn, ts *turnState, err error, res *Result) {
	o.logger.Warn("turn degraded",
		zap.String("session_id", s.ID),
		zap.String("intent", string(ts.intent.Kind)),
		zap.Error(err))

	topics := o.fallbackTopics()
	d := &models.Directive{
		Kind:         models.DirectiveDegraded,
		Intent:       ts.intent,
		ResponseType: models.ResponseError,
		Topics:       topics,
		Text:         degradedText(topics),
	}
	if ts.directive != nil {
		d.SearchTerm = ts.directive.SearchTerm
	}

	rec.Intent = ts.intent.Kind
	rec.ResponseText = d.Text
	rec.ResponseType = models.ResponseError
	rec.Metadata = map[string]any{"error": err.Error()}
	session.AppendTurn(s, rec)

	res.Directive = d
	res.Failure = err
}

func degradedText(topics []string) string {
	text := "Desculpe, não consegui responder agora. Tente novamente em instantes."
	if len(topics) > 0 {
		text += " Enquanto isso, posso ajudar com: " + strings.Join(topics, ", ") + "."
	}
	return text
}

// topicNames lists topic names from the topic index, falling back to the
// classifier vocabulary.
func (o *Orchestrator) topicNames(ctx context.Context) []string {
	if o.topics != nil {
		topics, err := o.topics.ListTopics(ctx)
		if err != nil {
			o.logger.Warn("topic listing failed", zap.Error(err))
		}
		if len(topics) > 0 {
			names := make([]string, 0, len(topics))
			for _, t := range topics {
				names = append(names, t.Name)
				if len(names) == o.cfg.SuggestedTopics {
					break
				}
			}
			return names
		}
	}
	return o.fallbackTopics()
}

func (o *Orchestrator) fallbackTopics() []string {
	terms := o.classifier.Vocabulary().Terms()
	if len(terms) > o.cfg.SuggestedTopics {
		terms = terms[:o.cfg.SuggestedTopics]
	}
	return terms
}

func turnMetadata(ts *turnState) map[string]any {
	meta := make(map[string]any, len(ts.intent.Metadata)+3)
	for k, v := range ts.intent.Metadata {
		meta[k] = v
	}
	meta["directive"] = string(ts.directive.Kind)
	meta["confidence"] = ts.intent.Confidence
	if ts.directive.InvalidChoice {
		meta["invalid_choice"] = true
	}
	return meta
}
