package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"promptrelay/internal/domain"
)

// PostgresStore persists conversation turns in PostgreSQL so sessions
// survive restarts and can be shared across replicas
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and ensures the schema exists
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	id UUID PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_conversation_turns_session
	ON conversation_turns (session_id, created_at);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure history schema: %w", err)
	}
	return nil
}

// Append records turns at the end of a session
func (s *PostgresStore) Append(ctx context.Context, sessionID string, turns ...domain.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}

	const insert = `
INSERT INTO conversation_turns (id, session_id, role, content, created_at)
VALUES ($1, $2, $3, $4, $5)`

	for _, turn := range turns {
		ts := turn.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if _, err := s.db.ExecContext(ctx, insert,
			uuid.New().String(), sessionID, turn.Role, turn.Content, ts); err != nil {
			return fmt.Errorf("failed to append turn: %w", err)
		}
	}
	return nil
}

// History returns up to limit most recent turns in chronological order
func (s *PostgresStore) History(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	const query = `
SELECT role, content, created_at
FROM conversation_turns
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT $2`

	if limit <= 0 {
		limit = DefaultCapacity
	}

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var turns []domain.ConversationTurn
	for rows.Next() {
		var t domain.ConversationTurn
		if err := rows.Scan(&t.Role, &t.Content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}

	// Rows arrive newest first; callers expect chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// DB returns the underlying pool for components sharing the connection
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
