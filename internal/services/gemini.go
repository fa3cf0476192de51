package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"genius-backend/internal/models"
)

const geminiRoleModel = "model"

type GeminiCompleter struct {
	client  *genai.Client
	timeout time.Duration
}

func NewGeminiCompleter(ctx context.Context, apiKey string, timeout time.Duration) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiCompleter{client: client, timeout: timeout}, nil
}

func (c *GeminiCompleter) Close() {
	c.client.Close()
}

// splitForGemini turns a conversation into a system instruction, the chat
// history and the message to send. Gemini has no system role and calls the
// assistant "model". The message to send must be a user turn.
func splitForGemini(messages []models.ConversationTurn) (system string, history []*genai.Content, last string, err error) {
	var systemParts []string
	var turns []models.ConversationTurn
	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}

	if len(turns) == 0 {
		return "", nil, "", fmt.Errorf("%w: no user or assistant turns", ErrUnsupportedConversation)
	}
	if turns[len(turns)-1].Role != models.RoleUser {
		return "", nil, "", fmt.Errorf("%w: last turn is %q", ErrUnsupportedConversation, turns[len(turns)-1].Role)
	}

	for _, msg := range turns[:len(turns)-1] {
		role := models.RoleUser
		if msg.Role == models.RoleAssistant {
			role = geminiRoleModel
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}

	return strings.Join(systemParts, "\n\n"), history, turns[len(turns)-1].Content, nil
}

func extractText(cand *genai.Candidate) string {
	var text strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}
	return text.String()
}

func (c *GeminiCompleter) Complete(ctx context.Context, model string, messages []models.ConversationTurn) (*models.Completion, error) {
	system, history, last, err := splitForGemini(messages)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	gm := c.client.GenerativeModel(model)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := gm.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	completion := &models.Completion{}
	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Warnf("Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
		completion.Choices = append(completion.Choices, models.CompletionChoice{
			Message: models.ConversationTurn{Role: models.RoleAssistant, Content: extractText(cand)},
		})
	}

	return completion, nil
}
