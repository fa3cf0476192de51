package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	log "github.com/sirupsen/logrus"

	"genius-backend/internal/models"
)

type OpenAICompleter struct {
	client openai.Client
}

// NewOpenAICompleter creates a client for the chat completions API. baseURL
// is optional and points the client at a compatible proxy.
func NewOpenAICompleter(apiKey, baseURL string, timeout time.Duration) *OpenAICompleter {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
		Timeout: timeout,
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
		log.Infof("OpenAI client configured with base URL: %s", baseURL)
	}

	return &OpenAICompleter{client: openai.NewClient(opts...)}
}

func toOpenAIMessages(messages []models.ConversationTurn) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case models.RoleAssistant:
			result[i] = openai.AssistantMessage(msg.Content)
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}
	return result
}

func (c *OpenAICompleter) Complete(ctx context.Context, model string, messages []models.ConversationTurn) (*models.Completion, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			log.WithFields(log.Fields{
				"status_code":   apiErr.StatusCode,
				"error_type":    apiErr.Type,
				"error_code":    apiErr.Code,
				"error_message": apiErr.Message,
			}).Error("OpenAI API error")
		}
		return nil, fmt.Errorf("failed to make request to OpenAI: %w", err)
	}

	completion := &models.Completion{Choices: make([]models.CompletionChoice, 0, len(resp.Choices))}
	for _, choice := range resp.Choices {
		role := string(choice.Message.Role)
		if role == "" {
			role = models.RoleAssistant
		}
		completion.Choices = append(completion.Choices, models.CompletionChoice{
			Message: models.ConversationTurn{Role: role, Content: choice.Message.Content},
		})
	}

	log.WithFields(log.Fields{
		"model":             model,
		"choices":           len(resp.Choices),
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("OpenAI completion received")

	return completion, nil
}
