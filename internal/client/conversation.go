package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"genius-backend/internal/models"
)

const genericFailure = "Something went wrong."

var (
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	ErrEmptyPrompt        = errors.New("prompt is required")
)

var validate = validator.New()

type conversationAPI interface {
	Converse(ctx context.Context, messages []models.ConversationTurn) (*models.ConversationTurn, error)
}

// Notifier shows a failure to the user.
type Notifier func(message string)

// Refresher reloads server-derived state after a submission settles.
type Refresher func(ctx context.Context)

// Conversation is one client session: the displayed history, the pending
// input and the submit control.
type Conversation struct {
	api     conversationAPI
	notify  Notifier
	refresh Refresher

	submitting sync.Mutex

	mu      sync.Mutex
	history []models.ConversationTurn
	input   string
}

func NewConversation(api conversationAPI, notify Notifier, refresh Refresher) *Conversation {
	if notify == nil {
		notify = func(string) {}
	}
	if refresh == nil {
		refresh = func(context.Context) {}
	}
	return &Conversation{api: api, notify: notify, refresh: refresh}
}

// SetInput replaces the pending prompt.
func (c *Conversation) SetInput(prompt string) {
	c.mu.Lock()
	c.input = prompt
	c.mu.Unlock()
}

func (c *Conversation) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// History returns a copy of the displayed turns.
func (c *Conversation) History() []models.ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ConversationTurn(nil), c.history...)
}

// Submit sends the pending input. An empty prompt never leaves the client.
// Only one submission may be in flight; overlapping calls fail with
// ErrSubmissionInFlight.
func (c *Conversation) Submit(ctx context.Context) error {
	if !c.submitting.TryLock() {
		return ErrSubmissionInFlight
	}
	defer c.submitting.Unlock()

	c.mu.Lock()
	form := models.PromptForm{Prompt: c.input}
	messages := append(append([]models.ConversationTurn(nil), c.history...), models.ConversationTurn{
		Role:    models.RoleUser,
		Content: form.Prompt,
	})
	c.mu.Unlock()

	if err := validate.Struct(form); err != nil {
		return fmt.Errorf("%w: %v", ErrEmptyPrompt, err)
	}

	defer c.refresh(ctx)

	reply, err := c.api.Converse(ctx, messages)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Body != "" {
			c.notify(apiErr.Body)
		} else {
			c.notify(genericFailure)
		}
		return err
	}

	c.mu.Lock()
	c.history = append(messages, *reply)
	c.input = ""
	c.mu.Unlock()
	return nil
}
