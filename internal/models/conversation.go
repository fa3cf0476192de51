package models

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ConversationTurn is one message in a conversation.
type ConversationTurn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content"`
}

// ConversationRequest is the payload of POST /api/conversation. Messages is a
// pointer so an absent field can be told apart from an empty list.
type ConversationRequest struct {
	Messages *[]ConversationTurn `json:"messages"`
}

// Completion is what a completion provider returns.
type Completion struct {
	Choices []CompletionChoice `json:"choices"`
}

type CompletionChoice struct {
	Message ConversationTurn `json:"message"`
}

// PromptForm is the client-side form behind a single submission.
type PromptForm struct {
	Prompt string `validate:"required"`
}
