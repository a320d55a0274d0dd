package ports

import (
	"context"

	"plansync/internal/domain"
)

// Release describes a release as known to the remote planning service
type Release struct {
	Team string
	Slug string
	Name string
}

// PlanService is the remote planning service, the system of record.
// Queries must be side-effect free. Mutations return the persisted
// record, including its assigned id and update timestamp.
type PlanService interface {
	GetRelease(ctx context.Context, target domain.Target) (Release, error)
	ListItems(ctx context.Context, q domain.Query) ([]domain.ItemRecord, error)

	CreateItem(ctx context.Context, item domain.ItemRecord) (domain.ItemRecord, error)
	UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (domain.ItemRecord, error)
	DeleteItem(ctx context.Context, id string) error
}
