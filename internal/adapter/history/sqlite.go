// Package history persists chat transcripts in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"ragchat/internal/domain"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements domain.HistoryStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs
// the schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("%w: create history dir: %w", domain.ErrHistoryStore, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open history db: %w", domain.ErrHistoryStore, err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: set WAL mode: %w", domain.ErrHistoryStore, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate history db: %w", domain.ErrHistoryStore, err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, seq);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append stores msg at the end of its session's transcript.
func (s *SQLiteStore) Append(ctx context.Context, msg domain.Message) error {
	if msg.ID == "" || msg.SessionID == "" {
		return domain.NewDomainError("History.Append", domain.ErrInvalidInput, "message id and session id are required")
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.ID, msg.SessionID, msg.Role, msg.Content, ts.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("%w: append message: %w", domain.ErrHistoryStore, err)
	}
	return nil
}

// Sessions lists stored conversations, most recently updated first.
func (s *SQLiteStore) Sessions(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	query := `
		SELECT m.session_id, COUNT(*), MAX(m.created_at),
			(SELECT f.content FROM messages f
			 WHERE f.session_id = m.session_id AND f.role = ?
			 ORDER BY f.seq LIMIT 1)
		FROM messages m
		GROUP BY m.session_id
		ORDER BY MAX(m.seq) DESC`
	args := []any{domain.RoleUser}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", domain.ErrHistoryStore, err)
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		var sum domain.SessionSummary
		var updated string
		var first sql.NullString
		if err := rows.Scan(&sum.SessionID, &sum.MessageCount, &updated, &first); err != nil {
			return nil, fmt.Errorf("%w: scan session: %w", domain.ErrHistoryStore, err)
		}
		sum.FirstMessage = first.String
		sum.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", domain.ErrHistoryStore, err)
	}
	return out, nil
}

// Messages returns the transcript of sessionID in insertion order.
func (s *SQLiteStore) Messages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY seq",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: load messages: %w", domain.ErrHistoryStore, err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: load messages: %w", domain.ErrHistoryStore, err)
	}
	if len(out) == 0 {
		return nil, domain.NewDomainError("History.Messages", domain.ErrNotFound, "session "+sessionID)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (domain.Message, error) {
	var msg domain.Message
	var created string
	if err := row.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return msg, domain.ErrNotFound
		}
		return msg, fmt.Errorf("%w: scan message: %w", domain.ErrHistoryStore, err)
	}
	ts, err := time.Parse(timeLayout, created)
	if err != nil {
		return msg, fmt.Errorf("%w: parse timestamp %q: %w", domain.ErrHistoryStore, created, err)
	}
	msg.Timestamp = ts
	return msg, nil
}

var _ domain.HistoryStore = (*SQLiteStore)(nil)
