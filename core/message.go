package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message within a session.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// Source points at the document fragment an answer was grounded on.
type Source struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name,omitempty"`
	Section      string  `json:"section,omitempty"`
	Page         int     `json:"page,omitempty"`
	Score        float64 `json:"score,omitempty"`
}

// ToolCall is the ephemeral record of one dispatch: what was invoked, with
// which arguments, what came back and how long it took. It is not persisted
// beyond the task or session that produced it except as message payload.
type ToolCall struct {
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args,omitempty"`
	Result  any            `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
	Latency time.Duration  `json:"latency_ns"`
	SpanID  string         `json:"span_id,omitempty"`
}

// Message is a single turn in a session's history. Messages are owned
// exclusively by their session and, once appended, treated as immutable.
type Message struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Sources   []Source   `json:"sources,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewMessage creates a message with a fresh id and UTC timestamp.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewID generates a new unique identifier used for messages, sessions and
// tasks throughout the engine.
func NewID() string { return uuid.NewString() }
