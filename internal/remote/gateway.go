package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"plansync/internal/clock"
	"plansync/internal/domain"
	"plansync/internal/ports"
)

// OpKind is the kind of a batch operation
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Operation is one mutation in an atomic batch.
//
// For OpCreate, Item is the record to create; its ParentID may be the
// Key of an item created earlier in the same batch. For OpUpdate and
// OpDelete, Item is the remote record as it was before the batch, which
// is what compensation restores.
type Operation struct {
	Kind    OpKind
	ItemKey string
	Item    domain.ItemRecord
	Patch   domain.ItemPatch
}

// OpResult pairs an operation with the record the service returned
type OpResult struct {
	Operation Operation
	Record    domain.ItemRecord
}

// Gateway is the engine's only path to the remote planning service. It
// routes every call through the Caller and keeps the Cache coherent with
// the mutations it applies.
type Gateway struct {
	service ports.PlanService
	caller  *Caller
	cache   *Cache
	clock   clock.Clock
	logger  zerolog.Logger
	fills   singleflight.Group
}

// NewGateway creates a Gateway
func NewGateway(service ports.PlanService, caller *Caller, cache *Cache, clk clock.Clock, logger zerolog.Logger) *Gateway {
	return &Gateway{
		service: service,
		caller:  caller,
		cache:   cache,
		clock:   clk,
		logger:  logger,
	}
}

// Cache returns the gateway's cache
func (g *Gateway) Cache() *Cache {
	return g.cache
}

// Items answers q from the cache when possible. Concurrent misses for
// the same query share one remote call, which outlives any single
// caller; each caller stops waiting when its own ctx ends.
func (g *Gateway) Items(ctx context.Context, q domain.Query) ([]domain.ItemRecord, error) {
	if records, ok := g.cache.Get(q); ok {
		return records, nil
	}

	shared := context.WithoutCancel(ctx)
	fill := g.fills.DoChan(q.Key(), func() (any, error) {
		return g.fetch(shared, q)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-fill:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneRecords(res.Val.([]domain.ItemRecord)), nil
	}
}

// FreshItems always queries the remote service. The result refreshes
// the cache but the cache is never consulted.
func (g *Gateway) FreshItems(ctx context.Context, q domain.Query) ([]domain.ItemRecord, error) {
	return g.fetch(ctx, q)
}

func (g *Gateway) fetch(ctx context.Context, q domain.Query) ([]domain.ItemRecord, error) {
	fetchedAt := g.clock.Now()
	records, err := Call(ctx, g.caller, "list "+q.Key(), func(ctx context.Context) ([]domain.ItemRecord, error) {
		return g.service.ListItems(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	g.cache.Store(q, records, fetchedAt)
	return records, nil
}

// Snapshot reads every objective and epic of target. With fresh set the
// cache is bypassed, so the snapshot is no older than the call.
func (g *Gateway) Snapshot(ctx context.Context, target domain.Target, fresh bool) (domain.Snapshot, error) {
	fetchedAt := g.clock.Now()

	release, err := Call(ctx, g.caller, "get release "+target.String(), func(ctx context.Context) (ports.Release, error) {
		return g.service.GetRelease(ctx, target)
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	read := g.Items
	if fresh {
		read = g.FreshItems
	}

	var items []domain.ItemRecord
	for _, kind := range []domain.ItemKind{domain.KindObjective, domain.KindEpic} {
		records, err := read(ctx, domain.NewQuery(kind, target))
		if err != nil {
			return domain.Snapshot{}, err
		}
		items = append(items, records...)
	}

	return domain.Snapshot{
		Target:      target,
		ReleaseName: release.Name,
		Items:       items,
		FetchedAt:   fetchedAt,
	}, nil
}

// ApplyBatch applies ops in order as one atomic unit. If any operation
// fails, the operations already applied are compensated in reverse
// order before the error is returned. The cache reflects the batch only
// when every operation succeeded; after a failure it changes only to
// follow items restored under new ids.
func (g *Gateway) ApplyBatch(ctx context.Context, ops []Operation) ([]OpResult, error) {
	if err := validateBatch(ops); err != nil {
		return nil, err
	}

	created := make(map[string]string)
	results := make([]OpResult, 0, len(ops))

	for i, op := range ops {
		record, err := g.apply(ctx, op, created)
		if err != nil {
			batchErr := &BatchError{Index: i, Failed: op, Err: err}
			var restored map[string]domain.ItemRecord
			batchErr.RolledBack, restored, batchErr.RollbackErrors = g.rollback(ctx, results)
			g.reassign(restored)
			for old, record := range restored {
				if batchErr.Reassigned == nil {
					batchErr.Reassigned = make(map[string]string)
				}
				batchErr.Reassigned[old] = record.ID
			}
			g.logger.Error().
				Err(err).
				Int("failed_index", i).
				Int("rolled_back", batchErr.RolledBack).
				Int("rollback_failures", len(batchErr.RollbackErrors)).
				Int("reassigned", len(batchErr.Reassigned)).
				Msg("batch failed")
			return nil, batchErr
		}
		if op.Kind == OpCreate {
			created[op.ItemKey] = record.ID
		}
		results = append(results, OpResult{Operation: op, Record: record})
	}

	g.reflect(results)
	return results, nil
}

// validateBatch rejects batches that could only fail midway
func validateBatch(ops []Operation) error {
	seen := make(map[string]bool)
	for i, op := range ops {
		switch op.Kind {
		case OpCreate:
			if parent := op.Item.ParentID; strings.HasPrefix(parent, "new:") && !seen[parent] {
				return &Error{
					Op:      "validate batch",
					Reason:  ReasonValidation,
					Message: fmt.Sprintf("operation %d: parent %s is not created earlier in the batch", i+1, parent),
				}
			}
			seen[op.ItemKey] = true
		case OpUpdate, OpDelete:
			if op.Item.ID == "" {
				return &Error{
					Op:      "validate batch",
					Reason:  ReasonValidation,
					Message: fmt.Sprintf("operation %d: %s of %s without a remote id", i+1, op.Kind, op.ItemKey),
				}
			}
		default:
			return &Error{Op: "validate batch", Reason: ReasonValidation, Message: fmt.Sprintf("operation %d: unknown kind", i+1)}
		}
	}
	return nil
}

func (g *Gateway) apply(ctx context.Context, op Operation, created map[string]string) (domain.ItemRecord, error) {
	switch op.Kind {
	case OpCreate:
		item := op.Item
		item.ID = ""
		if id, ok := created[item.ParentID]; ok {
			item.ParentID = id
		}
		return Call(ctx, g.caller, "create "+op.ItemKey, func(ctx context.Context) (domain.ItemRecord, error) {
			return g.service.CreateItem(ctx, item)
		})

	case OpUpdate:
		patch := op.Patch
		if parent, ok := patch.Set[domain.FieldParent]; ok {
			if id, isNew := created[parent]; isNew {
				patch = domain.NewItemPatch()
				for f, v := range op.Patch.Set {
					patch.Set[f] = v
				}
				patch.Set[domain.FieldParent] = id
			}
		}
		return Call(ctx, g.caller, "update "+op.Item.ID, func(ctx context.Context) (domain.ItemRecord, error) {
			return g.service.UpdateItem(ctx, op.Item.ID, patch)
		})

	case OpDelete:
		err := g.caller.Do(ctx, "delete "+op.Item.ID, func(ctx context.Context) error {
			return g.service.DeleteItem(ctx, op.Item.ID)
		})
		return op.Item, err
	}
	return domain.ItemRecord{}, fmt.Errorf("unknown operation kind %d", op.Kind)
}

// rollback compensates applied operations, newest first. Compensation
// runs even if ctx was cancelled. A deleted item comes back under a new
// id; later compensations resolve parent references through the
// returned map of old id to restored record.
func (g *Gateway) rollback(ctx context.Context, applied []OpResult) (int, map[string]domain.ItemRecord, []error) {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	undone := 0
	restored := make(map[string]domain.ItemRecord)

	reparent := func(id string) string {
		if r, ok := restored[id]; ok {
			return r.ID
		}
		return id
	}

	for i := len(applied) - 1; i >= 0; i-- {
		res := applied[i]
		var err error

		switch res.Operation.Kind {
		case OpCreate:
			err = g.caller.Do(ctx, "rollback create "+res.Record.ID, func(ctx context.Context) error {
				return g.service.DeleteItem(ctx, res.Record.ID)
			})
		case OpUpdate:
			inverse := res.Operation.Patch.Inverse(res.Operation.Item)
			if parent, ok := inverse.Set[domain.FieldParent]; ok {
				inverse.Set[domain.FieldParent] = reparent(parent)
			}
			err = g.caller.Do(ctx, "rollback update "+res.Record.ID, func(ctx context.Context) error {
				_, err := g.service.UpdateItem(ctx, res.Record.ID, inverse)
				return err
			})
		case OpDelete:
			item := res.Operation.Item
			item.ParentID = reparent(item.ParentID)
			err = g.caller.Do(ctx, "rollback delete "+item.ID, func(ctx context.Context) error {
				record, err := g.service.CreateItem(ctx, item)
				if err != nil {
					return err
				}
				if record.ID != item.ID {
					restored[item.ID] = record
					g.logger.Warn().
						Str("old_id", item.ID).
						Str("new_id", record.ID).
						Msg("restored item received a new id")
				}
				return nil
			})
		}

		if err != nil {
			errs = append(errs, fmt.Errorf("compensate %s %s: %w", res.Operation.Kind, res.Operation.ItemKey, err))
			continue
		}
		undone++
	}
	return undone, restored, errs
}

// reassign swaps restored items into every cached result set and points
// cached children at their parent's new id
func (g *Gateway) reassign(restored map[string]domain.ItemRecord) {
	if len(restored) == 0 {
		return
	}
	g.cache.Reflect(func(q domain.Query, records []domain.ItemRecord) ([]domain.ItemRecord, bool) {
		changed := false
		for i, r := range records {
			if record, ok := restored[r.ID]; ok {
				records[i] = record
				changed = true
				continue
			}
			if parent, ok := restored[r.ParentID]; ok {
				records[i].ParentID = parent.ID
				changed = true
			}
		}
		return records, changed
	})
}

// reflect applies a successful batch to every cached result set
func (g *Gateway) reflect(results []OpResult) {
	g.cache.Reflect(func(q domain.Query, records []domain.ItemRecord) ([]domain.ItemRecord, bool) {
		changed := false
		for _, res := range results {
			var did bool
			records, did = reflectOne(q, records, res)
			changed = changed || did
		}
		return records, changed
	})
}

func reflectOne(q domain.Query, records []domain.ItemRecord, res OpResult) ([]domain.ItemRecord, bool) {
	idx := -1
	for i, r := range records {
		if r.ID == res.Record.ID {
			idx = i
			break
		}
	}

	if res.Operation.Kind == OpDelete || !q.Matches(res.Record) {
		if idx < 0 {
			return records, false
		}
		return append(records[:idx], records[idx+1:]...), true
	}
	if idx < 0 {
		return append(records, res.Record), true
	}
	records[idx] = res.Record
	return records, true
}
