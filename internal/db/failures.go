package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Pipeline stages that can leave a failure behind.
const (
	FailureStagePersist = "persist"
	FailureStageNotify  = "notify"
)

// ProcessingFailure records a downstream fault that was absorbed so the
// webhook sender still received an acknowledgment. Kept for out-of-band
// recovery.
type ProcessingFailure struct {
	ID        string
	SessionID string
	Stage     string
	Detail    string
	CreatedAt time.Time
}

// RecordFailure appends a processing failure.
func (c *Database) RecordFailure(ctx context.Context, failure ProcessingFailure) error {
	if failure.ID == "" {
		failure.ID = uuid.NewString()
	}
	if failure.CreatedAt.IsZero() {
		failure.CreatedAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO processing_failures (id, session_id, stage, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		failure.ID,
		failure.SessionID,
		failure.Stage,
		failure.Detail,
		failure.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// ListFailures returns recorded failures, newest first.
func (c *Database) ListFailures(ctx context.Context) ([]ProcessingFailure, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, session_id, stage, detail, created_at
		FROM processing_failures ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var failures []ProcessingFailure
	for rows.Next() {
		var (
			failure   ProcessingFailure
			createdAt string
		)
		if err := rows.Scan(&failure.ID, &failure.SessionID, &failure.Stage, &failure.Detail, &createdAt); err != nil {
			return nil, err
		}
		if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
			failure.CreatedAt = parsed
		}
		failures = append(failures, failure)
	}
	return failures, rows.Err()
}
