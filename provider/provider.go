// Package provider abstracts the external LLM used to classify free-text
// purchase intents into structured plans.
package provider

import (
	"context"
	"errors"

	"github.com/quibble-ai/quibble/config"
	"github.com/quibble-ai/quibble/internal/intent"
	openai_provider "github.com/quibble-ai/quibble/provider/openai"
)

// Classifier turns free buyer text into a structured intent plan.
type Classifier interface {
	ClassifyIntent(ctx context.Context, text string) (intent.Plan, error)
}

// ErrNotConfigured indicates no provider credentials are available; callers
// fall back to the heuristic classifier.
var ErrNotConfigured = errors.New("provider: no LLM provider configured")

// New builds the configured classifier.
func New(cfg config.OpenAIConfig) (Classifier, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	return openai_provider.NewClient(cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
}
