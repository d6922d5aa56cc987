package domain

import (
	"context"
	"time"
)

// Role constants for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest identifies one conversation turn sent to the chat endpoint.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Message represents a single message in a conversation.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionSummary describes a stored conversation.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	FirstMessage string    `json:"first_message"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HistoryStore persists conversation transcripts.
type HistoryStore interface {
	Append(ctx context.Context, msg Message) error
	// Sessions lists stored conversations, most recently updated first.
	// limit <= 0 returns all of them.
	Sessions(ctx context.Context, limit int) ([]SessionSummary, error)
	// Messages returns the transcript of sessionID in order, or ErrNotFound.
	Messages(ctx context.Context, sessionID string) ([]Message, error)
	Close() error
}
