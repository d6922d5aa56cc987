package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"

	"ragchat/internal/domain"
)

// maxSessionIDLen bounds user-supplied session identifiers.
const maxSessionIDLen = 128

// ChatStreamer opens one streamed chat turn.
type ChatStreamer interface {
	ChatStream(ctx context.Context, req domain.ChatRequest) <-chan domain.StreamEvent
}

// Conversation is one chat session against the backend. Turns are
// serialized: Send holds the conversation for the duration of a stream.
type Conversation struct {
	mu       sync.Mutex
	id       string
	msgs     []domain.Message
	streamer ChatStreamer
	store    domain.HistoryStore // nil = not persisted
	logger   *slog.Logger
}

// NewConversation starts or resumes a session. An empty sessionID starts a
// new session with a generated ULID; a known sessionID reloads its
// transcript from store when one is given.
func NewConversation(ctx context.Context, streamer ChatStreamer, store domain.HistoryStore, sessionID string, logger *slog.Logger) (*Conversation, error) {
	c := &Conversation{
		streamer: streamer,
		store:    store,
		logger:   logger,
	}

	if sessionID == "" {
		c.id = generateULID(time.Now())
		return c, nil
	}
	if err := validateSessionID(sessionID); err != nil {
		return nil, domain.NewDomainError("Conversation.Resume", domain.ErrInvalidInput, err.Error())
	}
	c.id = sessionID

	if store != nil {
		msgs, err := store.Messages(ctx, sessionID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return nil, domain.WrapOp("Conversation.Resume", err)
		default:
			c.msgs = msgs
		}
	}
	return c, nil
}

func generateULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// validateSessionID rejects identifiers that are empty, oversized or
// contain control characters.
func validateSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if len(id) > maxSessionIDLen {
		return fmt.Errorf("session ID longer than %d bytes", maxSessionIDLen)
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return fmt.Errorf("session ID contains control characters: %q", id)
	}
	return nil
}

// ID returns the session identifier sent with every turn.
func (c *Conversation) ID() string { return c.id }

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]domain.Message, len(c.msgs))
	copy(cp, c.msgs)
	return cp
}

// Send runs one turn. Each streamed result is passed to onChunk (may be
// nil) as it arrives and appended to the assistant reply. On failure the
// partial reply is returned with the error and is not added to the
// transcript; the user message stays.
func (c *Conversation) Send(ctx context.Context, text string, onChunk func(string)) (domain.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return domain.Message{}, domain.NewDomainError("Conversation.Send", domain.ErrInvalidInput, "empty message")
	}

	user := c.newMessage(domain.RoleUser, text)
	c.record(ctx, user)

	var reply strings.Builder
	var streamErr error
	chunks := 0
	for ev := range c.streamer.ChatStream(ctx, domain.ChatRequest{Message: text, SessionID: c.id}) {
		switch ev.Kind {
		case domain.EventResult:
			chunks++
			reply.WriteString(ev.Text)
			if onChunk != nil {
				onChunk(ev.Text)
			}
		case domain.EventError:
			streamErr = ev.Err
		}
	}

	assistant := c.newMessage(domain.RoleAssistant, reply.String())
	if streamErr == nil && ctx.Err() != nil {
		// The channel closed without a terminal event after cancellation.
		streamErr = ctx.Err()
	}
	if streamErr != nil {
		c.logger.Warn("chat turn failed",
			"session", c.id,
			"chunks", chunks,
			"code", string(domain.ErrorCodeOf(streamErr)),
			"error", streamErr,
		)
		return assistant, domain.WrapOp("Conversation.Send", streamErr)
	}

	c.record(ctx, assistant)
	c.logger.Debug("chat turn completed", "session", c.id, "chunks", chunks, "chars", reply.Len())
	return assistant, nil
}

func (c *Conversation) newMessage(role, content string) domain.Message {
	now := time.Now()
	return domain.Message{
		ID:        generateULID(now),
		SessionID: c.id,
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
}

// record appends msg to the transcript and the store. Store failures are
// logged; the conversation continues in memory.
func (c *Conversation) record(ctx context.Context, msg domain.Message) {
	c.msgs = append(c.msgs, msg)
	if c.store == nil {
		return
	}
	if err := c.store.Append(context.WithoutCancel(ctx), msg); err != nil {
		c.logger.Warn("failed to persist message", "session", c.id, "role", msg.Role, "error", err)
	}
}
