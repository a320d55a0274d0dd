package domain

import (
	"fmt"
	"sort"
	"time"
)

// TrackedItem records when one item was last known to match the
// remote service.
type TrackedItem struct {
	ID       string
	SyncedAt time.Time
}

// Metadata is the machine-owned block of a plan document. Pull
// rewrites it wholesale; users never edit it.
type Metadata struct {
	Team        string
	Release     string
	ReleaseName string
	SyncedAt    time.Time
	Tracked     []TrackedItem
}

// Target returns the pair this metadata belongs to
func (m Metadata) Target() Target {
	return Target{Team: m.Team, Release: m.Release}
}

// SyncedAtFor returns the per-item synced_at, falling back to the
// document-level timestamp for items without their own entry.
func (m Metadata) SyncedAtFor(id string) (time.Time, bool) {
	for _, t := range m.Tracked {
		if t.ID == id {
			return t.SyncedAt, true
		}
	}
	return m.SyncedAt, false
}

// IsTracked reports whether id appears in the tracked list
func (m Metadata) IsTracked(id string) bool {
	_, ok := m.SyncedAtFor(id)
	return ok
}

// PlanDocument is the editable unit for one (team, release) pair
type PlanDocument struct {
	Meta  Metadata
	Items []ItemRecord
}

// Validate checks the document invariants: every saved item in the
// body is tracked, keys are unique and epics reference an objective.
func (d PlanDocument) Validate() error {
	seen := make(map[string]bool, len(d.Items))
	for _, item := range d.Items {
		key := item.Key()
		if seen[key] {
			return fmt.Errorf("duplicate item %s", key)
		}
		seen[key] = true

		if item.ID != "" && !d.Meta.IsTracked(item.ID) {
			return &UntrackedItemError{ID: item.ID}
		}
		if item.Kind == KindUnknown {
			return fmt.Errorf("item %s has no kind", key)
		}
		if item.Effort != nil && *item.Effort < 0 {
			return &FieldError{Field: FieldEffort, Value: FormatEffort(item.Effort), Reason: "must not be negative"}
		}
	}
	return nil
}

// Index returns the items keyed by Key()
func (d PlanDocument) Index() map[string]ItemRecord {
	idx := make(map[string]ItemRecord, len(d.Items))
	for _, item := range d.Items {
		idx[item.Key()] = item
	}
	return idx
}

// NewDocument builds the document for a fresh snapshot. Every item is
// tracked with syncedAt.
func NewDocument(snap Snapshot, syncedAt time.Time) PlanDocument {
	items := make([]ItemRecord, len(snap.Items))
	copy(items, snap.Items)
	SortItems(items)

	tracked := make([]TrackedItem, 0, len(items))
	for _, item := range items {
		tracked = append(tracked, TrackedItem{ID: item.ID, SyncedAt: syncedAt})
	}

	return PlanDocument{
		Meta: Metadata{
			Team:        snap.Target.Team,
			Release:     snap.Target.Release,
			ReleaseName: snap.ReleaseName,
			SyncedAt:    syncedAt,
			Tracked:     tracked,
		},
		Items: items,
	}
}

// SortItems orders items the way the document renders them: each
// objective followed by its epics, both sorted by id. Epics whose parent
// is not present sort last.
func SortItems(items []ItemRecord) {
	objectives := make(map[string]bool)
	for _, item := range items {
		if item.Kind == KindObjective {
			objectives[item.Key()] = true
		}
	}

	group := func(r ItemRecord) string {
		if r.Kind == KindObjective {
			return r.Key()
		}
		if objectives[r.ParentID] {
			return r.ParentID
		}
		return "\xff" + r.ParentID
	}

	sort.SliceStable(items, func(i, j int) bool {
		gi, gj := group(items[i]), group(items[j])
		if gi != gj {
			return gi < gj
		}
		if items[i].Kind != items[j].Kind {
			return items[i].Kind == KindObjective
		}
		return items[i].Key() < items[j].Key()
	})
}

// Snapshot is the remote service's state for one target at FetchedAt
type Snapshot struct {
	Target      Target
	ReleaseName string
	Items       []ItemRecord
	FetchedAt   time.Time
}

// ByID indexes the snapshot's items
func (s Snapshot) ByID() map[string]ItemRecord {
	idx := make(map[string]ItemRecord, len(s.Items))
	for _, item := range s.Items {
		idx[item.ID] = item
	}
	return idx
}
