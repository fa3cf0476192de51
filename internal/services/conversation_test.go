package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genius-backend/internal/models"
)

type fakeCompleter struct {
	completion *models.Completion
	err        error
	calls      int
	model      string
	messages   []models.ConversationTurn
	onCall     func()
}

func (f *fakeCompleter) Complete(ctx context.Context, model string, messages []models.ConversationTurn) (*models.Completion, error) {
	f.calls++
	f.model = model
	f.messages = messages
	if f.onCall != nil {
		f.onCall()
	}
	return f.completion, f.err
}

type recordingPublisher struct {
	statuses []models.UsageStatus
}

func (p *recordingPublisher) PublishUsage(ctx context.Context, userID string, status models.UsageStatus) error {
	p.statuses = append(p.statuses, status)
	return nil
}

type failingQuota struct{ MemoryQuota }

func (q *failingQuota) Consume(ctx context.Context, userID string) (bool, error) {
	return false, errors.New("store unavailable")
}

func helloCompletion() *models.Completion {
	return &models.Completion{Choices: []models.CompletionChoice{
		{Message: models.ConversationTurn{Role: models.RoleAssistant, Content: "Hello!"}},
		{Message: models.ConversationTurn{Role: models.RoleAssistant, Content: "Hi there"}},
	}}
}

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var convErr *ConversationError
	require.ErrorAs(t, err, &convErr)
	return convErr.Kind
}

func TestConverse_ReturnsFirstChoiceUnchanged(t *testing.T) {
	quota := NewMemoryQuota(5)
	completer := &fakeCompleter{completion: helloCompletion()}
	publisher := &recordingPublisher{}
	svc := NewConversationService(completer, "gpt-3.5-turbo", quota, publisher)

	messages := []models.ConversationTurn{{Role: models.RoleUser, Content: "Hi"}}
	reply, err := svc.Converse(context.Background(), models.Identity{UserID: "u1"}, messages)

	require.NoError(t, err)
	assert.Equal(t, models.ConversationTurn{Role: "assistant", Content: "Hello!"}, *reply)
	assert.Equal(t, "gpt-3.5-turbo", completer.model)
	assert.Equal(t, messages, completer.messages)

	count, _ := quota.Count(context.Background(), "u1")
	assert.Equal(t, 1, count)
	require.Len(t, publisher.statuses, 1)
	assert.Equal(t, 4, publisher.statuses[0].Remaining)
}

func TestConverse_ConsumesQuotaBeforeCompletion(t *testing.T) {
	quota := NewMemoryQuota(5)
	countAtCall := -1
	completer := &fakeCompleter{completion: helloCompletion()}
	completer.onCall = func() {
		countAtCall, _ = quota.Count(context.Background(), "u1")
	}
	svc := NewConversationService(completer, "m", quota, nil)

	_, err := svc.Converse(context.Background(), models.Identity{UserID: "u1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, countAtCall)
}

func TestConverse_QuotaExhausted(t *testing.T) {
	quota := NewMemoryQuota(0)
	completer := &fakeCompleter{completion: helloCompletion()}
	svc := NewConversationService(completer, "m", quota, nil)

	_, err := svc.Converse(context.Background(), models.Identity{UserID: "u1"}, nil)

	assert.Equal(t, KindQuotaExceeded, kindOf(t, err))
	assert.Equal(t, MsgFreeTrialExpired, err.Error())
	assert.Zero(t, completer.calls)
}

func TestConverse_ProPlanIsNotMetered(t *testing.T) {
	quota := NewMemoryQuota(0)
	completer := &fakeCompleter{completion: helloCompletion()}
	svc := NewConversationService(completer, "m", quota, nil)

	reply, err := svc.Converse(context.Background(), models.Identity{UserID: "u1", Plan: models.PlanPro}, nil)

	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply.Content)
	count, _ := quota.Count(context.Background(), "u1")
	assert.Zero(t, count)
}

func TestConverse_CompletionFailureKeepsConsumedUnit(t *testing.T) {
	quota := NewMemoryQuota(5)
	completer := &fakeCompleter{err: errors.New("boom")}
	svc := NewConversationService(completer, "m", quota, nil)

	_, err := svc.Converse(context.Background(), models.Identity{UserID: "u1"}, nil)

	assert.Equal(t, KindUpstream, kindOf(t, err))
	count, _ := quota.Count(context.Background(), "u1")
	assert.Equal(t, 1, count)
}

func TestConverse_NoChoicesIsUpstreamError(t *testing.T) {
	completer := &fakeCompleter{completion: &models.Completion{}}
	svc := NewConversationService(completer, "m", NewMemoryQuota(5), nil)

	_, err := svc.Converse(context.Background(), models.Identity{UserID: "u1"}, nil)
	assert.Equal(t, KindUpstream, kindOf(t, err))
}

func TestConverse_NilCompletionIsUpstreamError(t *testing.T) {
	svc := NewConversationService(&fakeCompleter{}, "m", NewMemoryQuota(5), nil)

	_, err := svc.Converse(context.Background(), models.Identity{UserID: "u1"}, nil)
	assert.Equal(t, KindUpstream, kindOf(t, err))
}

func TestConverse_UnsupportedConversationIsInvalidPayload(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("%w: last turn is \"assistant\"", ErrUnsupportedConversation)}
	svc := NewConversationService(completer, "m", NewMemoryQuota(5), nil)

	_, err := svc.Converse(context.Background(), models.Identity{UserID: "u1"}, nil)
	assert.Equal(t, KindInvalidPayload, kindOf(t, err))

	var convErr *ConversationError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, MsgLastTurnNotUser, convErr.Message)
}

func TestConverse_QuotaStoreErrorIsUnhandled(t *testing.T) {
	completer := &fakeCompleter{completion: helloCompletion()}
	svc := NewConversationService(completer, "m", &failingQuota{}, nil)

	_, err := svc.Converse(context.Background(), models.Identity{UserID: "u1"}, nil)

	assert.Equal(t, KindUnhandled, kindOf(t, err))
	assert.Zero(t, completer.calls)
}

func TestConverse_NotConfigured(t *testing.T) {
	svc := NewConversationService(nil, "m", NewMemoryQuota(5), nil)

	assert.False(t, svc.Configured())
	_, err := svc.Converse(context.Background(), models.Identity{UserID: "u1"}, nil)
	assert.Equal(t, KindMisconfigured, kindOf(t, err))
}

func TestUsage(t *testing.T) {
	quota := NewMemoryQuota(5)
	quota.Increment(context.Background(), "u1")
	quota.Increment(context.Background(), "u1")
	svc := NewConversationService(nil, "m", quota, nil)

	status, err := svc.Usage(context.Background(), models.Identity{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, models.UsageStatus{Count: 2, Limit: 5, Remaining: 3}, status)

	status, err = svc.Usage(context.Background(), models.Identity{UserID: "u1", Plan: models.PlanPro})
	require.NoError(t, err)
	assert.True(t, status.Unlimited)
}
