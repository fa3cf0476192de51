package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"genius-backend/internal/config"
	"genius-backend/internal/models"
)

// ErrUnsupportedConversation is returned by a Completer that cannot send the
// conversation as given, e.g. one that does not end on a user turn.
var ErrUnsupportedConversation = errors.New("conversation not supported by provider")

// Completer sends a conversation to a completion provider and returns its
// choices unchanged.
type Completer interface {
	Complete(ctx context.Context, model string, messages []models.ConversationTurn) (*models.Completion, error)
}

// NewCompleter builds the completer selected by cfg. It returns a nil
// Completer and no error when the provider's API key is not configured.
func NewCompleter(ctx context.Context, cfg *config.Config) (Completer, error) {
	if cfg.CompletionAPIKey() == "" {
		return nil, nil
	}

	timeout := time.Duration(cfg.CompletionTimeoutSeconds) * time.Second

	switch cfg.CompletionProvider {
	case config.ProviderGemini:
		gemini, err := NewGeminiCompleter(ctx, cfg.GeminiAPIKey, timeout)
		if err != nil {
			return nil, err
		}
		return gemini, nil
	case config.ProviderOpenAI:
		return NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.CompletionProvider)
	}
}
