// Package generation turns a turn directive into natural-language text.
package generation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/pkg/utils"
)

// PromptKind selects the prompt template.
type PromptKind string

const (
	PromptAnswer       PromptKind = "answer"
	PromptMaterialList PromptKind = "material_list"
	PromptNoContent    PromptKind = "no_content"
	PromptCasual       PromptKind = "casual"
	PromptDiscovery    PromptKind = "discovery"
	PromptGreeting     PromptKind = "greeting"
)

// Request is everything a generator may use to compose a reply.
type Request struct {
	Kind      PromptKind
	Utterance string
	// History holds the recent conversation, oldest first.
	History     []models.Message
	Fragments   []models.Fragment
	Groups      []models.DocumentGroup
	Topics      []string
	Preferences models.Preferences
	// InvalidChoice asks the reply to mention that the learner's selection did not match an option.
	InvalidChoice bool
	// AskDepth asks the reply to close by asking the learner's level in the topic.
	AskDepth bool
}

// Generator produces reply text for a request.
type Generator interface {
	Generate(ctx context.Context, req *Request) (string, error)
	Name() string
}

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("empty response")

// Chain tries generators in order and returns the first success.
type Chain struct {
	providers []Generator
	logger    *zap.Logger
}

// NewChain creates a failover chain over providers.
func NewChain(logger *zap.Logger, providers ...Generator) *Chain {
	return &Chain{providers: providers, logger: utils.LoggerOrNop(logger)}
}

// Name returns the chain name.
func (c *Chain) Name() string {
	return "chain"
}

// Generate returns the first non-empty reply. It stops early when ctx ends.
func (c *Chain) Generate(ctx context.Context, req *Request) (string, error) {
	if len(c.providers) == 0 {
		return "", fmt.Errorf("no generation providers configured")
	}
	var errs []error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		text, err := p.Generate(ctx, req)
		if err == nil && text == "" {
			err = ErrEmptyResponse
		}
		if err == nil {
			return text, nil
		}
		c.logger.Warn("generation provider failed",
			zap.String("provider", p.Name()),
			zap.String("kind", string(req.Kind)),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return "", errors.Join(errs...)
}
