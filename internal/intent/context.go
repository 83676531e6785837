package intent

import (
	"github.com/hyperjump/guia/internal/models"
)

// contextLookback is how many recent turns are searched for usable context.
const contextLookback = 3

// Context is the read-only view of a session the classifier works from.
type Context struct {
	// PendingOptions is the number of options of the outstanding pending choice, 0 if none.
	PendingOptions int
	// PendingFragments are fragments posted by the session while waiting for an answer.
	PendingFragments []models.Fragment
	// Recent holds the latest turns, oldest first.
	Recent    []models.Turn
	FlowState models.FlowState
}

// ContextFromSession builds a classifier context from the latest window turns of s.
func ContextFromSession(s *models.ConversationSession, window int) Context {
	if s == nil {
		return Context{}
	}
	ctx := Context{
		PendingFragments: s.PendingFragments,
		Recent:           s.RecentTurns(window),
		FlowState:        s.FlowState,
	}
	if s.PendingChoice != nil {
		ctx.PendingOptions = len(s.PendingChoice.Options)
	}
	return ctx
}

// UsableTurn returns the most recent of the last three turns whose response
// type carries context and which attached at least one fragment.
func (c Context) UsableTurn() (models.Turn, bool) {
	start := len(c.Recent) - contextLookback
	if start < 0 {
		start = 0
	}
	for i := len(c.Recent) - 1; i >= start; i-- {
		t := c.Recent[i]
		if t.ResponseType.CarriesContext() && len(t.Fragments) > 0 {
			return t, true
		}
	}
	return models.Turn{}, false
}

// pending returns the fragments a confirmation or knowledge-level answer would
// refer to, and the topic they were retrieved for. Fragments posted on the
// session win over those of a usable recent turn.
func (c Context) pending() ([]models.Fragment, string) {
	if len(c.PendingFragments) > 0 {
		return c.PendingFragments, c.lastSearchTerm()
	}
	if t, ok := c.UsableTurn(); ok {
		return t.Fragments, topicOf(t)
	}
	return nil, ""
}

func (c Context) lastSearchTerm() string {
	for i := len(c.Recent) - 1; i >= 0; i-- {
		if c.Recent[i].SearchTerm != "" {
			return c.Recent[i].SearchTerm
		}
	}
	return ""
}

func topicOf(t models.Turn) string {
	if t.SearchTerm != "" {
		return t.SearchTerm
	}
	return t.UserText
}
