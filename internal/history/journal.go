package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"promptrelay/internal/domain"
)

// JournalEntry is one completed request outcome
type JournalEntry struct {
	RequestID      string
	Kind           domain.RequestKind
	Skill          string
	Status         string // "success", "fallback", "error"
	Classification domain.FailureKind
	Attempts       int
	ElapsedMs      int64
	UsedFallback   bool
}

// Journal records request outcomes for offline inspection. Writes are
// fire-and-forget: a journal failure must never fail the request that
// produced the entry.
type Journal struct {
	db *sql.DB
}

// NewJournal prepares the journal table on an existing pool
func NewJournal(db *sql.DB) (*Journal, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const schema = `
CREATE TABLE IF NOT EXISTS request_journal (
	id UUID PRIMARY KEY,
	kind TEXT NOT NULL,
	skill TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	classification TEXT NOT NULL DEFAULT '',
	attempts INT NOT NULL DEFAULT 0,
	elapsed_ms BIGINT NOT NULL DEFAULT 0,
	used_fallback BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to ensure journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record writes an entry asynchronously
func (j *Journal) Record(entry JournalEntry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		const insert = `
INSERT INTO request_journal
	(id, kind, skill, status, classification, attempts, elapsed_ms, used_fallback, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

		_, err := j.db.ExecContext(ctx, insert,
			entry.RequestID, string(entry.Kind), entry.Skill, entry.Status,
			string(entry.Classification), entry.Attempts, entry.ElapsedMs,
			entry.UsedFallback, time.Now().UTC())
		if err != nil {
			slog.Warn("Failed to record journal entry",
				"error", err,
				"request_id", entry.RequestID)
		}
	}()
}
