package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"plansync/internal/domain"
	"plansync/internal/ports"
)

// AuditLog implements ports.AuditLog. Updates and deletes are refused by
// triggers in the schema.
type AuditLog struct {
	db *sql.DB
}

// Ensure AuditLog implements ports.AuditLog
var _ ports.AuditLog = (*AuditLog)(nil)

// Append assigns the entry an id and the next sequence number of its
// target, and stores it in one transaction.
func (l *AuditLog) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("begin audit append: %w", err)
	}
	etx := &entryTx{tx: tx}

	seq, err := etx.nextSeq(ctx, entry.Target)
	if err != nil {
		etx.Rollback()
		return domain.AuditEntry{}, fmt.Errorf("next audit sequence: %w", err)
	}
	entry.ID = uuid.NewString()
	entry.Seq = seq

	if err := etx.insert(ctx, entry); err != nil {
		etx.Rollback()
		return domain.AuditEntry{}, fmt.Errorf("insert audit entry: %w", err)
	}
	if err := etx.Commit(); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("commit audit entry: %w", err)
	}
	return entry, nil
}

const entryColumns = `id, team, release_slug, seq, operation, outcome, reason, message,
	started_at, finished_at, tracking_ref, working_ref, changes, hints`

// List returns the entries of target, newest first. A limit of zero or
// less returns every entry.
func (l *AuditLog) List(ctx context.Context, target domain.Target, limit int) ([]domain.AuditEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_entries
		WHERE team = ? AND release_slug = ? ORDER BY seq DESC`
	args := []any{target.Team, target.Release}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get returns the entry with id, or nil when there is none
func (l *AuditLog) Get(ctx context.Context, id string) (*domain.AuditEntry, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM audit_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (domain.AuditEntry, error) {
	var (
		e                  domain.AuditEntry
		operation, outcome string
		started, finished  string
		changes, hints     string
	)
	err := s.Scan(&e.ID, &e.Target.Team, &e.Target.Release, &e.Seq, &operation, &outcome,
		&e.Reason, &e.Message, &started, &finished, &e.TrackingRef, &e.WorkingRef, &changes, &hints)
	if err != nil {
		return e, err
	}
	e.Operation = domain.Operation(operation)
	e.Outcome = domain.Outcome(outcome)

	if e.StartedAt, err = parseTime(started); err != nil {
		return e, fmt.Errorf("entry %s started_at: %w", e.ID, err)
	}
	if e.FinishedAt, err = parseTime(finished); err != nil {
		return e, fmt.Errorf("entry %s finished_at: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(changes), &e.Changes); err != nil {
		return e, fmt.Errorf("entry %s changes: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(hints), &e.Hints); err != nil {
		return e, fmt.Errorf("entry %s hints: %w", e.ID, err)
	}
	return e, nil
}
