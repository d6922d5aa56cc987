package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStreamer replays a fixed event sequence and records requests.
type fakeStreamer struct {
	mu       sync.Mutex
	events   []domain.StreamEvent
	requests []domain.ChatRequest
}

func (f *fakeStreamer) ChatStream(_ context.Context, req domain.ChatRequest) <-chan domain.StreamEvent {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	events := f.events
	f.mu.Unlock()

	ch := make(chan domain.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

// memStore is an in-memory domain.HistoryStore.
type memStore struct {
	mu        sync.Mutex
	msgs      []domain.Message
	appendErr error
}

func (m *memStore) Append(_ context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *memStore) Sessions(context.Context, int) ([]domain.SessionSummary, error) {
	return nil, nil
}

func (m *memStore) Messages(_ context.Context, sessionID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.msgs {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func results(texts ...string) []domain.StreamEvent {
	var evs []domain.StreamEvent
	for _, t := range texts {
		evs = append(evs, domain.StreamEvent{Kind: domain.EventResult, Text: t})
	}
	return evs
}

func TestNewConversationGeneratesULID(t *testing.T) {
	conv, err := NewConversation(context.Background(), &fakeStreamer{}, nil, "", newTestLogger())
	require.NoError(t, err)

	_, err = ulid.Parse(conv.ID())
	assert.NoError(t, err)
	assert.Empty(t, conv.Messages())
}

func TestConversationSendAccumulatesReply(t *testing.T) {
	streamer := &fakeStreamer{events: append(results("Retrieval", "-augmented ", "generation."),
		domain.StreamEvent{Kind: domain.EventComplete})}
	store := &memStore{}

	conv, err := NewConversation(context.Background(), streamer, store, "", newTestLogger())
	require.NoError(t, err)

	var chunks []string
	reply, err := conv.Send(context.Background(), "What is RAG?", func(s string) { chunks = append(chunks, s) })
	require.NoError(t, err)

	assert.Equal(t, "Retrieval-augmented generation.", reply.Content)
	assert.Equal(t, domain.RoleAssistant, reply.Role)
	assert.Equal(t, []string{"Retrieval", "-augmented ", "generation."}, chunks)

	require.Len(t, streamer.requests, 1)
	assert.Equal(t, domain.ChatRequest{Message: "What is RAG?", SessionID: conv.ID()}, streamer.requests[0])

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, conv.ID(), msgs[1].SessionID)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
	assert.Len(t, store.msgs, 2)
}

func TestConversationSendErrorKeepsPartialReplyOutOfTranscript(t *testing.T) {
	boom := &domain.StatusError{StatusCode: 502}
	streamer := &fakeStreamer{events: append(results("partial"),
		domain.StreamEvent{Kind: domain.EventError, Err: boom})}
	store := &memStore{}

	conv, err := NewConversation(context.Background(), streamer, store, "", newTestLogger())
	require.NoError(t, err)

	reply, err := conv.Send(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServer)
	assert.Equal(t, "partial", reply.Content)

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Len(t, store.msgs, 1)
}

func TestConversationSendCancelledWithoutTerminalEvent(t *testing.T) {
	streamer := &fakeStreamer{events: results("a")}
	conv, err := NewConversation(context.Background(), streamer, nil, "", newTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = conv.Send(ctx, "hi", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConversationSendRejectsEmptyMessage(t *testing.T) {
	streamer := &fakeStreamer{}
	conv, err := NewConversation(context.Background(), streamer, nil, "", newTestLogger())
	require.NoError(t, err)

	_, err = conv.Send(context.Background(), " \t", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, streamer.requests)
	assert.Empty(t, conv.Messages())
}

func TestConversationResumeLoadsTranscript(t *testing.T) {
	store := &memStore{msgs: []domain.Message{
		{ID: "m1", SessionID: "s-1", Role: domain.RoleUser, Content: "earlier"},
		{ID: "m2", SessionID: "s-1", Role: domain.RoleAssistant, Content: "reply"},
		{ID: "m3", SessionID: "other", Role: domain.RoleUser, Content: "unrelated"},
	}}

	conv, err := NewConversation(context.Background(), &fakeStreamer{}, store, "s-1", newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, "s-1", conv.ID())
	assert.Len(t, conv.Messages(), 2)
}

func TestConversationResumeUnknownSession(t *testing.T) {
	conv, err := NewConversation(context.Background(), &fakeStreamer{}, &memStore{}, "fresh", newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, "fresh", conv.ID())
	assert.Empty(t, conv.Messages())
}

func TestConversationStoreFailureIsNotFatal(t *testing.T) {
	streamer := &fakeStreamer{events: append(results("ok"), domain.StreamEvent{Kind: domain.EventComplete})}
	store := &memStore{appendErr: errors.New("disk full")}

	conv, err := NewConversation(context.Background(), streamer, store, "", newTestLogger())
	require.NoError(t, err)

	_, err = conv.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Len(t, conv.Messages(), 2)
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"01J0ABCDEF", false},
		{"session-with-dashes_and.dots", false},
		{"   ", true},
		{"bad\nid", true},
		{"null\x00byte", true},
		{strings.Repeat("x", maxSessionIDLen+1), true},
	}
	for _, tt := range tests {
		err := validateSessionID(tt.id)
		if tt.wantErr {
			assert.Error(t, err, "id %q", tt.id)
		} else {
			assert.NoError(t, err, "id %q", tt.id)
		}
	}

	_, err := NewConversation(context.Background(), &fakeStreamer{}, nil, "bad\nid", newTestLogger())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
