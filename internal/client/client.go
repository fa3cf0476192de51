package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"genius-backend/internal/models"
)

// APIError is a non-2xx answer from the server. Body holds the plain text
// message the server chose to show.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}

// Client talks to the conversation API on behalf of one authenticated user.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 3 * time.Minute},
	}
}

// Converse posts the whole history and returns the assistant's reply.
func (c *Client) Converse(ctx context.Context, messages []models.ConversationTurn) (*models.ConversationTurn, error) {
	if messages == nil {
		messages = []models.ConversationTurn{}
	}
	body, err := json.Marshal(models.ConversationRequest{Messages: &messages})
	if err != nil {
		return nil, err
	}

	var reply models.ConversationTurn
	if err := c.do(ctx, http.MethodPost, "/api/conversation", bytes.NewReader(body), &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Usage fetches the caller's free generation count.
func (c *Client) Usage(ctx context.Context) (models.UsageStatus, error) {
	var status models.UsageStatus
	err := c.do(ctx, http.MethodGet, "/api/usage", nil, &status)
	return status, err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
