package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"plansync/internal/domain"
)

// entryTx appends one audit entry
type entryTx struct {
	tx *sql.Tx
}

// nextSeq returns the next sequence number of target
func (t *entryTx) nextSeq(ctx context.Context, target domain.Target) (int64, error) {
	var seq int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1
		FROM audit_entries WHERE team = ? AND release_slug = ?
	`, target.Team, target.Release).Scan(&seq)
	return seq, err
}

// insert writes entry; it must carry its id and sequence number
func (t *entryTx) insert(ctx context.Context, entry domain.AuditEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("encode changes: %w", err)
	}
	hints, err := json.Marshal(entry.Hints)
	if err != nil {
		return fmt.Errorf("encode hints: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO audit_entries (
			id, team, release_slug, seq, operation, outcome, reason, message,
			started_at, finished_at, tracking_ref, working_ref, changes, hints
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Target.Team, entry.Target.Release, entry.Seq,
		string(entry.Operation), string(entry.Outcome), entry.Reason, entry.Message,
		formatTime(entry.StartedAt), formatTime(entry.FinishedAt),
		entry.TrackingRef, entry.WorkingRef, string(changes), string(hints))
	return err
}

// Commit commits the transaction
func (t *entryTx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction
func (t *entryTx) Rollback() error {
	return t.tx.Rollback()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
