package llm

import (
	"context"
	"errors"
)

// Role tags one turn of a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged turn.
type Message struct {
	Role    Role
	Content string
}

// ErrEmptyReply is returned when a provider answers with no usable text.
var ErrEmptyReply = errors.New("llm: empty reply")

// Dialogue produces the next assistant utterance for a history whose last
// turn is the user's latest message.
type Dialogue interface {
	Reply(ctx context.Context, history []Message) (string, error)
}
