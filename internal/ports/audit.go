package ports

import (
	"context"

	"plansync/internal/domain"
)

// AuditLog is the append-only record of sync operations. There is no
// way to modify or delete an entry once appended.
type AuditLog interface {
	Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error)
	List(ctx context.Context, target domain.Target, limit int) ([]domain.AuditEntry, error)
	Get(ctx context.Context, id string) (*domain.AuditEntry, error)
}

// StateStore persists SyncState between runs. Everything in it can be
// rebuilt from the repository, so losing it is safe.
type StateStore interface {
	Load(ctx context.Context, target domain.Target) (*domain.SyncState, error)
	Save(ctx context.Context, state domain.SyncState) error
	List(ctx context.Context) ([]domain.SyncState, error)
}
