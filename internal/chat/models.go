// Package chat proxies travel-assistant conversations to an OpenAI-compatible
// LLM gateway, adding a static knowledge base and the caller's sanitized
// travel context as the system prompt.
package chat

import (
	"fmt"
	"unicode/utf8"

	dErrors "supernomad/pkg/domain-errors"
)

const (
	MaxMessages       = 50
	MaxMessageLength  = 5000
	RoleUser          = "user"
	RoleAssistant     = "assistant"
	roleSystem        = "system"
	maxContextEntries = 200
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a conversation turn from the app. UserContext is free-form JSON
// describing the traveller (tracked countries, current location, plan).
type Request struct {
	Messages    []Message      `json:"messages"`
	UserContext map[string]any `json:"userContext,omitempty"`
}

func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return dErrors.New(dErrors.CodeValidation, "messages are required")
	}
	if len(r.Messages) > MaxMessages {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d messages are allowed", MaxMessages))
	}
	for i, m := range r.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("messages[%d].role must be user or assistant", i))
		}
		if m.Content == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("messages[%d].content is required", i))
		}
		if utf8.RuneCountInString(m.Content) > MaxMessageLength {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("messages[%d].content exceeds %d characters", i, MaxMessageLength))
		}
	}
	if len(r.UserContext) > maxContextEntries {
		return dErrors.New(dErrors.CodeValidation, "userContext has too many entries")
	}
	r.UserContext = SanitizeContext(r.UserContext)
	return nil
}
