package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func msg(id, session, role, content string, ts time.Time) domain.Message {
	return domain.Message{ID: id, SessionID: session, Role: role, Content: content, Timestamp: ts}
}

func TestSQLiteStoreAppendAndMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, msg("m1", "s1", domain.RoleUser, "What is RAG?", base)))
	require.NoError(t, store.Append(ctx, msg("m2", "s1", domain.RoleAssistant, "Retrieval-augmented generation.", base.Add(time.Second))))
	require.NoError(t, store.Append(ctx, msg("m3", "s2", domain.RoleUser, "other", base.Add(2*time.Second))))

	got, err := store.Messages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, domain.RoleAssistant, got[1].Role)
	assert.Equal(t, "Retrieval-augmented generation.", got[1].Content)
	assert.True(t, got[1].Timestamp.Equal(base.Add(time.Second)))
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 123456789, time.UTC)

	want := []domain.Message{
		msg("m1", "s1", domain.RoleUser, "Wie geht's? 日本語 ✓", base),
		msg("m2", "s1", domain.RoleAssistant, "line one\nline two", base.Add(time.Millisecond)),
	}
	for _, m := range want {
		require.NoError(t, store.Append(ctx, m))
	}

	got, err := store.Messages(ctx, "s1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Messages() mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteStoreMessagesNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Messages(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStoreAppendValidation(t *testing.T) {
	store := newTestStore(t)
	err := store.Append(context.Background(), domain.Message{SessionID: "s1", Content: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSQLiteStoreDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	m := msg("m1", "s1", domain.RoleUser, "hi", time.Now())
	require.NoError(t, store.Append(ctx, m))

	err := store.Append(ctx, m)
	assert.ErrorIs(t, err, domain.ErrHistoryStore)
}

func TestSQLiteStoreSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, msg("a1", "older", domain.RoleUser, "first question", base)))
	require.NoError(t, store.Append(ctx, msg("a2", "older", domain.RoleAssistant, "answer", base.Add(time.Second))))
	require.NoError(t, store.Append(ctx, msg("b1", "newer", domain.RoleUser, "second question", base.Add(time.Minute))))

	sessions, err := store.Sessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "newer", sessions[0].SessionID)
	assert.Equal(t, 1, sessions[0].MessageCount)
	assert.Equal(t, "second question", sessions[0].FirstMessage)

	assert.Equal(t, "older", sessions[1].SessionID)
	assert.Equal(t, 2, sessions[1].MessageCount)
	assert.Equal(t, "first question", sessions[1].FirstMessage)
	assert.True(t, sessions[1].UpdatedAt.Equal(base.Add(time.Second)))

	limited, err := store.Sessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "newer", limited[0].SessionID)
}

func TestSQLiteStoreReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), msg("m1", "s1", domain.RoleUser, "persisted", time.Now())))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Messages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "persisted", got[0].Content)
}
