package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genius-backend/internal/models"
)

type recorder struct {
	mu            sync.Mutex
	notifications []string
	refreshes     int
}

func (r *recorder) notify(message string) {
	r.mu.Lock()
	r.notifications = append(r.notifications, message)
	r.mu.Unlock()
}

func (r *recorder) refresh(context.Context) {
	r.mu.Lock()
	r.refreshes++
	r.mu.Unlock()
}

func TestSubmit_AppendsTurnsAndClearsInput(t *testing.T) {
	var received models.ConversationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/conversation", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"role":"assistant","content":"Hello!"}`))
	}))
	defer srv.Close()

	rec := &recorder{}
	conv := NewConversation(New(srv.URL, "tok"), rec.notify, rec.refresh)
	conv.SetInput("Hi")

	require.NoError(t, conv.Submit(context.Background()))

	require.NotNil(t, received.Messages)
	assert.Equal(t, []models.ConversationTurn{{Role: "user", Content: "Hi"}}, *received.Messages)
	assert.Equal(t, []models.ConversationTurn{
		{Role: "user", Content: "Hi"},
		{Role: "assistant", Content: "Hello!"},
	}, conv.History())
	assert.Empty(t, conv.Input())
	assert.Empty(t, rec.notifications)
	assert.Equal(t, 1, rec.refreshes)
}

func TestSubmit_SendsAccumulatedHistory(t *testing.T) {
	var calls int
	var last []models.ConversationTurn
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req models.ConversationRequest
		json.NewDecoder(r.Body).Decode(&req)
		last = *req.Messages
		w.Write([]byte(`{"role":"assistant","content":"ok"}`))
	}))
	defer srv.Close()

	conv := NewConversation(New(srv.URL, "tok"), nil, nil)
	conv.SetInput("first")
	require.NoError(t, conv.Submit(context.Background()))
	conv.SetInput("second")
	require.NoError(t, conv.Submit(context.Background()))

	assert.Equal(t, 2, calls)
	require.Len(t, last, 3)
	assert.Equal(t, "first", last[0].Content)
	assert.Equal(t, "assistant", last[1].Role)
	assert.Equal(t, "second", last[2].Content)
	assert.Len(t, conv.History(), 4)
}

func TestSubmit_HTTPErrorShowsServerBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Free trial has expired", http.StatusForbidden)
	}))
	defer srv.Close()

	rec := &recorder{}
	conv := NewConversation(New(srv.URL, "tok"), rec.notify, rec.refresh)
	conv.SetInput("Hi")

	err := conv.Submit(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, []string{"Free trial has expired"}, rec.notifications)
	assert.Equal(t, 1, rec.refreshes)
	assert.Empty(t, conv.History())
	assert.Equal(t, "Hi", conv.Input())
}

func TestSubmit_TransportAndDecodeFailuresShowGenericNotice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	rec := &recorder{}
	conv := NewConversation(New(srv.URL, "tok"), rec.notify, rec.refresh)
	conv.SetInput("Hi")
	assert.Error(t, conv.Submit(context.Background()))

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closed.Close()
	conv = NewConversation(New(closed.URL, "tok"), rec.notify, rec.refresh)
	conv.SetInput("Hi")
	assert.Error(t, conv.Submit(context.Background()))

	assert.Equal(t, []string{genericFailure, genericFailure}, rec.notifications)
	assert.Equal(t, 2, rec.refreshes)
}

func TestSubmit_EmptyPromptNeverLeavesClient(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	rec := &recorder{}
	conv := NewConversation(New(srv.URL, "tok"), rec.notify, rec.refresh)

	err := conv.Submit(context.Background())

	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.False(t, called)
	assert.Zero(t, rec.refreshes)
}

type blockingAPI struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAPI) Converse(ctx context.Context, messages []models.ConversationTurn) (*models.ConversationTurn, error) {
	close(b.entered)
	<-b.release
	return &models.ConversationTurn{Role: "assistant", Content: "done"}, nil
}

func TestSubmit_RejectsOverlappingSubmission(t *testing.T) {
	api := &blockingAPI{entered: make(chan struct{}), release: make(chan struct{})}
	conv := NewConversation(api, nil, nil)
	conv.SetInput("Hi")

	done := make(chan error, 1)
	go func() { done <- conv.Submit(context.Background()) }()
	<-api.entered

	assert.ErrorIs(t, conv.Submit(context.Background()), ErrSubmissionInFlight)

	close(api.release)
	require.NoError(t, <-done)
	assert.Len(t, conv.History(), 2)
}

func TestClient_Usage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/usage", r.URL.Path)
		w.Write([]byte(`{"count":3,"limit":5,"remaining":2,"unlimited":false}`))
	}))
	defer srv.Close()

	status, err := New(srv.URL+"/", "tok").Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.UsageStatus{Count: 3, Limit: 5, Remaining: 2}, status)
}
