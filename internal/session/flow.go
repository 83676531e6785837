package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/guia/internal/models"
)

// DefaultHistoryWindow is how many recent turns are exposed to classification and generation.
const DefaultHistoryWindow = 10

// Fragment caps derived from the depth preference.
const (
	BasicMaxFragments   = 3
	DefaultMaxFragments = 5
)

// Action is a response-driven event that moves the flow state regardless of intent.
type Action string

const (
	ActionNone                   Action = ""
	ActionGreeted                Action = "greeted"
	ActionMaterialListOffered    Action = "material_list_offered"
	ActionSpecificationRequested Action = "specification_requested"
	ActionChoiceResolved         Action = "choice_resolved"
)

// NextState computes the flow state after a turn. Actions take precedence
// over intents. A Confirmation only leaves a wait; outside one it keeps the
// current state. Any other user turn lands in Active.
func NextState(current models.FlowState, intent models.IntentKind, action Action) models.FlowState {
	switch action {
	case ActionGreeted:
		if current == models.FlowNew {
			return models.FlowAwaitingFirstInteraction
		}
		return current
	case ActionMaterialListOffered:
		return models.FlowAwaitingChoice
	case ActionSpecificationRequested:
		return models.FlowAwaitingSpecification
	case ActionChoiceResolved:
		return models.FlowActive
	}

	if current == models.FlowNew || current == models.FlowAwaitingFirstInteraction {
		return models.FlowActive
	}
	if intent == models.IntentConfirmation && !current.IsWait() {
		return current
	}
	return models.FlowActive
}

// Transition applies NextState to s and keeps the pending fields consistent
// with the new state.
func Transition(s *models.ConversationSession, intent models.IntentKind, action Action) (from, to models.FlowState) {
	from = s.FlowState
	to = NextState(from, intent, action)
	s.FlowState = to
	if to != models.FlowAwaitingChoice {
		s.PendingChoice = nil
	}
	if to != models.FlowAwaitingSpecification {
		s.PendingFragments = nil
	}
	return from, to
}

// OfferChoice posts a pending choice over groups for query.
func OfferChoice(s *models.ConversationSession, groups []models.DocumentGroup, query string, now time.Time) {
	options := make([]models.DocumentGroup, len(groups))
	for i, g := range groups {
		g.Fragments = models.CloneFragments(g.Fragments)
		options[i] = g
	}
	s.PendingChoice = &models.PendingChoice{Options: options, Query: query, OfferedAt: now}
}

// ClearChoice drops any pending choice.
func ClearChoice(s *models.ConversationSession) {
	s.PendingChoice = nil
}

// PostPendingFragments stores fragments awaiting a specification answer.
func PostPendingFragments(s *models.ConversationSession, fragments []models.Fragment) {
	s.PendingFragments = models.CloneFragments(fragments)
}

// MergePreferences shallow-merges u into p: every field set in u overwrites
// the one in p, unset fields are kept. Setting a depth without an explicit
// fragment cap derives the cap from the depth.
func MergePreferences(p *models.Preferences, u models.PreferencesUpdate) {
	if u.ResponseMode != nil {
		p.ResponseMode = *u.ResponseMode
	}
	if u.Depth != nil {
		p.Depth = *u.Depth
		if u.MaxFragments == nil {
			p.MaxFragments = MaxFragmentsFor(p.Depth)
		}
	}
	if len(u.PreferredMediaTypes) > 0 {
		p.PreferredMediaTypes = append([]string(nil), u.PreferredMediaTypes...)
	}
	if u.MaxFragments != nil && *u.MaxFragments > 0 {
		p.MaxFragments = *u.MaxFragments
	}
}

// MaxFragmentsFor returns the fragment cap for a depth.
func MaxFragmentsFor(depth string) int {
	if depth == models.DepthBasic {
		return BasicMaxFragments
	}
	return DefaultMaxFragments
}

// SelectCount returns how many fragments a turn of s should select, given the
// configured default.
func SelectCount(p models.Preferences, def int) int {
	if p.MaxFragments > 0 {
		return p.MaxFragments
	}
	if def > 0 {
		return def
	}
	return DefaultMaxFragments
}

// NewTurn returns a turn record with a fresh identifier.
func NewTurn(now time.Time) models.Turn {
	return models.Turn{ID: uuid.NewString(), Timestamp: now}
}

// AppendTurn adds t to the session log. The log is kept in full.
func AppendTurn(s *models.ConversationSession, t models.Turn) {
	s.History = append(s.History, t)
}

// MarkShown records the source documents of fragments as surfaced.
func MarkShown(s *models.ConversationSession, fragments []models.Fragment) {
	if s.DocumentsShown == nil {
		s.DocumentsShown = make(map[string]struct{})
	}
	for _, f := range fragments {
		if key := f.Source.Key(); key != "" {
			s.DocumentsShown[key] = struct{}{}
		}
	}
}
