package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"genius-backend/internal/metrics"
	"genius-backend/internal/models"
)

// ConversationService gates completion calls behind the usage quota.
type ConversationService struct {
	completer Completer
	model     string
	quota     QuotaService
	publisher UsagePublisher
}

// NewConversationService wires the collaborators of the conversation
// endpoint. completer is nil when no API key is configured; publisher may be
// nil when live usage updates are disabled.
func NewConversationService(completer Completer, model string, quota QuotaService, publisher UsagePublisher) *ConversationService {
	return &ConversationService{
		completer: completer,
		model:     model,
		quota:     quota,
		publisher: publisher,
	}
}

func (s *ConversationService) Configured() bool {
	return s.completer != nil
}

// Converse consumes one unit of the caller's quota and returns the first
// message the completion provider answers with. Pro callers are not metered.
// A consumed unit is not given back when the completion fails.
func (s *ConversationService) Converse(ctx context.Context, identity models.Identity, messages []models.ConversationTurn) (*models.ConversationTurn, error) {
	if !s.Configured() {
		return nil, newError(KindMisconfigured, MsgAPIKeyNotConfigured, nil)
	}

	if !identity.IsPro() {
		allowed, err := s.quota.Consume(ctx, identity.UserID)
		if err != nil {
			return nil, newError(KindUnhandled, "failed to consume usage quota", err)
		}
		if !allowed {
			return nil, newError(KindQuotaExceeded, MsgFreeTrialExpired, nil)
		}
		s.publishUsage(ctx, identity)
	}

	start := time.Now()
	completion, err := s.completer.Complete(ctx, s.model, messages)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CompletionDuration.WithLabelValues(s.model, result).Observe(time.Since(start).Seconds())

	if errors.Is(err, ErrUnsupportedConversation) {
		return nil, newError(KindInvalidPayload, MsgLastTurnNotUser, err)
	}
	if err != nil {
		return nil, newError(KindUpstream, "completion request failed", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return nil, newError(KindUpstream, "completion returned no choices", nil)
	}

	reply := completion.Choices[0].Message
	return &reply, nil
}

// Usage reports how much of the free allowance the caller has used.
func (s *ConversationService) Usage(ctx context.Context, identity models.Identity) (models.UsageStatus, error) {
	count, err := s.quota.Count(ctx, identity.UserID)
	if err != nil {
		return models.UsageStatus{}, fmt.Errorf("failed to read usage: %w", err)
	}

	status := models.NewUsageStatus(count, s.quota.Limit())
	status.Unlimited = identity.IsPro()
	return status, nil
}

func (s *ConversationService) publishUsage(ctx context.Context, identity models.Identity) {
	if s.publisher == nil {
		return
	}

	status, err := s.Usage(ctx, identity)
	if err != nil {
		log.WithError(err).Warn("Skipping usage update")
		return
	}

	if err := s.publisher.PublishUsage(ctx, identity.UserID, status); err != nil {
		log.WithError(err).WithField("user_id", identity.UserID).Warn("Failed to publish usage update")
	}
}
