package services

import "fmt"

// ErrorKind classifies why a conversation request failed.
type ErrorKind int

const (
	KindUnhandled ErrorKind = iota
	KindUnauthenticated
	KindMisconfigured
	KindInvalidPayload
	KindQuotaExceeded
	KindRateLimited
	KindUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindMisconfigured:
		return "misconfigured"
	case KindInvalidPayload:
		return "invalid_payload"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream"
	default:
		return "unhandled"
	}
}

type ConversationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ConversationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConversationError) Unwrap() error { return e.Err }

const (
	MsgUnauthorised        = "Unauthorised"
	MsgAPIKeyNotConfigured = "OpenAI API Key not configured"
	MsgMessagesRequired    = "Messages are required"
	MsgInvalidBody         = "Invalid request body"
	MsgLastTurnNotUser     = "The last message must come from the user"
	MsgFreeTrialExpired    = "Free trial has expired"
	MsgTooManyRequests     = "Too many requests. Please try again later."
	MsgInternalError       = "Internal Error"
)

func newError(kind ErrorKind, message string, err error) *ConversationError {
	return &ConversationError{Kind: kind, Message: message, Err: err}
}
