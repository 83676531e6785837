package turn

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hyperjump/guia/internal/generation"
	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/internal/session"
)

// Greet emits the automatic greeting for a session, creating it if needed.
// A New session moves to AwaitingFirstInteraction. Generation failures fall
// back to a static greeting.
func (o *Orchestrator) Greet(ctx context.Context, sessionID string) (*Result, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	res := &Result{SessionID: sessionID}
	snap, err := o.store.Update(ctx, sessionID, func(s *models.ConversationSession) error {
		now := o.store.Now()
		rec := session.NewTurn(now)
		req := &generation.Request{Kind: generation.PromptGreeting, Preferences: s.Preferences}

		gctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
		text, genErr := o.generator.Generate(gctx, req)
		cancel()
		if genErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Warn("greeting generation failed, using static text",
				zap.String("session_id", sessionID),
				zap.Error(genErr))
			text, _ = generation.NewStaticGenerator().Generate(ctx, req)
		}

		rec.ResponseText = text
		rec.ResponseType = models.ResponseGreeting
		session.Transition(s, "", session.ActionGreeted)
		session.AppendTurn(s, rec)

		res.TurnID = rec.ID
		res.Directive = &models.Directive{
			Kind:         models.DirectiveCasual,
			ResponseType: models.ResponseGreeting,
			Text:         text,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Session = snap
	return res, nil
}

// GetSession returns a snapshot of the session.
func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	return o.store.Get(ctx, sessionID)
}

// UpdatePreferences shallow-merges u into the session preferences, creating
// the session if needed.
func (o *Orchestrator) UpdatePreferences(ctx context.Context, sessionID string, u models.PreferencesUpdate) (*models.ConversationSession, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	return o.store.Update(ctx, sessionID, func(s *models.ConversationSession) error {
		session.MergePreferences(&s.Preferences, u)
		return nil
	})
}

// DeleteSession removes the session.
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string) error {
	return o.store.Delete(ctx, sessionID)
}

// ListPendingChoice returns the outstanding choice of the session, or nil.
func (o *Orchestrator) ListPendingChoice(ctx context.Context, sessionID string) (*models.PendingChoice, error) {
	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.PendingChoice, nil
}
