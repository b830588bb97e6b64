package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hupe1980/marketingmesh/core"
)

// SQLiteStore is a durable SessionStore backed by SQLite. Messages are
// stored as JSON payloads ordered by an autoincrement sequence so Load and
// Resume replay every prior turn exactly in append order.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dsn. Use ":memory:"
// for an ephemeral database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// For in-memory SQLite, multiple connections create separate databases.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			author TEXT,
			payload TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append persists msg, creating the session row on first use. The session
// upsert and the message insert share one transaction.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, msg core.Message) error {
	if err := validateAppend(sessionID, msg); err != nil {
		return err
	}

	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionID, now, now); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, role, author, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, sessionID, string(msg.Role), msg.Author, string(payload), msg.Timestamp); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return tx.Commit()
}

// Load returns the ordered history; unknown sessions yield an empty slice.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM messages WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []core.Message{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var msg core.Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// Resume replays all persisted turns of a known session, or returns
// core.ErrSessionNotFound.
func (s *SQLiteStore) Resume(ctx context.Context, sessionID string) (*core.Session, error) {
	var created, updated time.Time

	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM sessions WHERE session_id = ?`, sessionID).Scan(&created, &updated)
	if err == sql.ErrNoRows {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	msgs, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &core.Session{ID: sessionID, Messages: msgs, Created: created, Updated: updated}, nil
}
