package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"genius-backend/internal/metrics"
	"genius-backend/internal/middleware"
	"genius-backend/internal/models"
	"genius-backend/internal/services"
)

const (
	conversationErrorTag = "[CONVERSATION_ERROR]"
	maxBodyBytes         = 1 << 20
)

var validate = validator.New()

type conversationService interface {
	Configured() bool
	Converse(ctx context.Context, identity models.Identity, messages []models.ConversationTurn) (*models.ConversationTurn, error)
	Usage(ctx context.Context, identity models.Identity) (models.UsageStatus, error)
}

type ConversationHandler struct {
	service conversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// Converse handles POST /api/conversation.
func (h *ConversationHandler) Converse(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.fail(w, r, &services.ConversationError{
				Kind:    services.KindUnhandled,
				Message: services.MsgInternalError,
				Err:     fmt.Errorf("panic: %v\n%s", rec, debug.Stack()),
			})
		}
	}()

	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		h.fail(w, r, &services.ConversationError{Kind: services.KindUnauthenticated, Message: services.MsgUnauthorised})
		return
	}

	if !h.service.Configured() {
		h.fail(w, r, &services.ConversationError{Kind: services.KindMisconfigured, Message: services.MsgAPIKeyNotConfigured})
		return
	}

	messages, err := decodeMessages(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	reply, err := h.service.Converse(r.Context(), identity, messages)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	metrics.ConversationOutcomes.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, reply)
}

// Throttled answers a conversation request turned away by the rate limiter.
func (h *ConversationHandler) Throttled(w http.ResponseWriter, r *http.Request) {
	h.fail(w, r, &services.ConversationError{Kind: services.KindRateLimited, Message: services.MsgTooManyRequests})
}

// Usage handles GET /api/usage.
func (h *ConversationHandler) Usage(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeText(w, http.StatusUnauthorized, services.MsgUnauthorised)
		return
	}

	status, err := h.service.Usage(r.Context(), identity)
	if err != nil {
		log.WithError(err).WithField("user_id", identity.UserID).Error("[USAGE_ERROR]")
		writeText(w, http.StatusInternalServerError, services.MsgInternalError)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func decodeMessages(w http.ResponseWriter, r *http.Request) ([]models.ConversationTurn, error) {
	var req models.ConversationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return nil, &services.ConversationError{Kind: services.KindInvalidPayload, Message: services.MsgInvalidBody, Err: err}
	}

	if req.Messages == nil {
		return nil, &services.ConversationError{Kind: services.KindInvalidPayload, Message: services.MsgMessagesRequired}
	}

	messages := *req.Messages
	for i := range messages {
		if err := validate.Struct(messages[i]); err != nil {
			return nil, &services.ConversationError{
				Kind:    services.KindInvalidPayload,
				Message: fmt.Sprintf("Invalid message at index %d: role must be one of user, assistant, system", i),
				Err:     err,
			}
		}
	}

	return messages, nil
}

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindMisconfigured:
		return http.StatusInternalServerError
	case services.KindInvalidPayload:
		return http.StatusBadRequest
	case services.KindQuotaExceeded:
		return http.StatusForbidden
	case services.KindRateLimited:
		return http.StatusTooManyRequests
	case services.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail answers with the status of the error's kind. Failures on our side or
// the provider's are logged under one tag and hidden behind a generic body.
func (h *ConversationHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var convErr *services.ConversationError
	if !errors.As(err, &convErr) {
		convErr = &services.ConversationError{Kind: services.KindUnhandled, Message: services.MsgInternalError, Err: err}
	}

	metrics.ConversationOutcomes.WithLabelValues(convErr.Kind.String()).Inc()

	message := convErr.Message
	switch convErr.Kind {
	case services.KindUnhandled, services.KindUpstream:
		fields := log.Fields{
			"kind":       convErr.Kind.String(),
			"request_id": r.Header.Get(middleware.RequestIDHeader),
		}
		if identity, ok := middleware.GetIdentity(r.Context()); ok {
			fields["user_id"] = identity.UserID
		}
		log.WithFields(fields).WithError(err).Error(conversationErrorTag)
		message = services.MsgInternalError
	case services.KindMisconfigured:
		log.WithField("kind", convErr.Kind.String()).Error(conversationErrorTag + " " + convErr.Message)
	}

	writeText(w, statusFor(convErr.Kind), message)
}
