package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"plansync/internal/domain"
	"plansync/internal/ports"
)

// StateStore implements ports.StateStore
type StateStore struct {
	db *sql.DB
}

// Ensure StateStore implements ports.StateStore
var _ ports.StateStore = (*StateStore)(nil)

const stateColumns = `team, release_slug, tracking_branch, working_branch, phase, conflict_tip, updated_at`

// Load returns the state of target, or nil when none was saved
func (s *StateStore) Load(ctx context.Context, target domain.Target) (*domain.SyncState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stateColumns+` FROM sync_states WHERE team = ? AND release_slug = ?`,
		target.Team, target.Release)
	st, err := scanState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Save inserts or replaces the state of its target
func (s *StateStore) Save(ctx context.Context, st domain.SyncState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_states (`+stateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, st.Target.Team, st.Target.Release, st.TrackingBranch, st.WorkingBranch,
		string(st.Phase), st.ConflictTip, formatTime(st.UpdatedAt))
	return err
}

// List returns every saved state ordered by target
func (s *StateStore) List(ctx context.Context) ([]domain.SyncState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stateColumns+` FROM sync_states ORDER BY team, release_slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []domain.SyncState
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

func scanState(sc scanner) (domain.SyncState, error) {
	var (
		st             domain.SyncState
		phase, updated string
	)
	err := sc.Scan(&st.Target.Team, &st.Target.Release, &st.TrackingBranch, &st.WorkingBranch,
		&phase, &st.ConflictTip, &updated)
	if err != nil {
		return st, err
	}
	st.Phase = domain.Phase(phase)
	if st.UpdatedAt, err = parseTime(updated); err != nil {
		return st, fmt.Errorf("state %s updated_at: %w", st.Target, err)
	}
	return st, nil
}
