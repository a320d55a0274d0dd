// Package attribution decides, for every field that differs between the
// tracking and working documents, whether the user, the remote planning
// service, or both changed it since the last sync.
//
// A field is user-touched when a human commit on the working branch
// changed it at or after the item's synced_at. Git timestamps have
// one-second resolution, so synced_at is compared truncated to the
// second. A field is remote-touched when the fresh remote value differs
// from the value recorded at the last sync.
package attribution

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"plansync/internal/application"
	"plansync/internal/clock"
	"plansync/internal/domain"
	"plansync/internal/ports"
)

// Input is everything attribution needs for one target
type Input struct {
	// Diff compares the tracking tip (base) with the working tip (head)
	Diff ports.RawDiff

	// Commits are the working commits not on tracking, oldest first
	Commits []ports.CommitInfo

	// Remote is a fresh snapshot, not a cached one
	Remote domain.Snapshot
}

// Result holds the classified changes. Unreported differences (neither
// side touched the field) are omitted.
type Result struct {
	Base    domain.PlanDocument
	Local   domain.PlanDocument
	Changes []domain.AttributedChange
	Hints   []domain.ConflictHint
}

// HasConflicts reports whether any change is both-conflicting
func (r *Result) HasConflicts() bool {
	for _, c := range r.Changes {
		if c.IsConflict() {
			return true
		}
	}
	return false
}

// BySource returns the changes with the given source, in order
func (r *Result) BySource(source domain.ChangeSource) []domain.AttributedChange {
	var out []domain.AttributedChange
	for _, c := range r.Changes {
		if c.Source == source {
			out = append(out, c)
		}
	}
	return out
}

// Attributor classifies changes
type Attributor struct {
	codec  ports.DocumentCodec
	clock  clock.Clock
	logger zerolog.Logger
}

// New creates an Attributor
func New(codec ports.DocumentCodec, clk clock.Clock, logger zerolog.Logger) *Attributor {
	return &Attributor{codec: codec, clock: clk, logger: logger}
}

// Attribute classifies every difference between in.Diff's two
// documents.
func (a *Attributor) Attribute(in Input) (*Result, error) {
	base, err := a.codec.Parse(in.Diff.BaseContent)
	if err != nil {
		return nil, &application.ValidationError{Field: "tracking document", Message: err.Error()}
	}
	local, err := a.codec.Parse(in.Diff.HeadContent)
	if err != nil {
		if untracked := untrackedIn(err); untracked != nil {
			return nil, untracked
		}
		return nil, &application.ValidationError{Field: "working document", Message: err.Error()}
	}

	baseIdx := base.Index()
	for _, item := range local.Items {
		if item.ID != "" {
			if _, ok := baseIdx[item.ID]; !ok {
				return nil, &domain.UntrackedItemError{ID: item.ID}
			}
		}
	}

	touches := a.collectTouches(in.Commits)
	remote := in.Remote.ByID()
	now := a.clock.Now()
	res := &Result{Base: base, Local: local}

	localIdx := local.Index()
	for _, item := range local.Items {
		before, existed := baseIdx[item.Key()]
		if !existed {
			res.add(domain.AttributedChange{
				FieldChange: change(item, domain.FieldItem, "", item.Name, now),
				Source:      domain.SourceNewItem,
			})
			continue
		}
		syncedAt, _ := base.Meta.SyncedAtFor(item.ID)
		current, onRemote := remote[item.ID]
		for _, f := range domain.EditableFields {
			baseVal, localVal := before.Value(f), item.Value(f)
			if baseVal == localVal {
				continue
			}
			userTouched := touches.touched(item.Key(), f, syncedAt)
			a.classify(res, item, f, baseVal, localVal, userTouched, current, onRemote, now)
		}
	}

	for _, item := range base.Items {
		if _, kept := localIdx[item.Key()]; kept {
			continue
		}
		c := domain.AttributedChange{
			FieldChange: change(item, domain.FieldItem, item.Name, "", now),
			Source:      domain.SourceRemovedItem,
		}
		current, onRemote := remote[item.ID]
		switch {
		case !onRemote:
			// Removed on both sides.
			c.Source = domain.SourceRemoteUpdate
			c.Remote = domain.RemovedRemotely
		case !current.Equal(item):
			c.Source = domain.SourceBothConflicting
			c.Remote = "changed"
			res.Hints = append(res.Hints, domain.ConflictHint{
				ItemID:   item.ID,
				ItemName: item.Name,
				Field:    domain.FieldItem,
				Base:     item.Name,
				Remote:   current.Name,
				Message: fmt.Sprintf("%s %q was removed locally but changed in the planning service since the last sync; "+
					"pull and remove it again if it should still go", item.Kind, item.Name),
			})
		}
		res.add(c)
	}

	sortChanges(res.Changes)
	return res, nil
}

func (a *Attributor) classify(res *Result, item domain.ItemRecord, f domain.Field, baseVal, localVal string,
	userTouched bool, current domain.ItemRecord, onRemote bool, now time.Time) {

	c := domain.AttributedChange{FieldChange: change(item, f, baseVal, localVal, now)}

	if !onRemote {
		if !userTouched {
			return
		}
		c.Source = domain.SourceBothConflicting
		c.Remote = domain.RemovedRemotely
		res.add(c)
		res.Hints = append(res.Hints, hint(item, f, baseVal, localVal, domain.RemovedRemotely,
			fmt.Sprintf("%s %q was deleted in the planning service but you changed its %s; "+
				"remove it from the document or ask for it to be restored", item.Kind, item.Name, f)))
		return
	}

	remoteVal := current.Value(f)
	c.Remote = remoteVal
	remoteTouched := remoteVal != baseVal

	switch {
	case !userTouched && !remoteTouched:
		a.logger.Debug().Str("item", item.Key()).Str("field", string(f)).Msg("difference not attributable to either side")
		return
	case userTouched && !remoteTouched:
		c.Source = domain.SourceUserEdit
	case !userTouched && remoteTouched:
		c.Source = domain.SourceRemoteUpdate
	case remoteVal == localVal:
		c.Source = domain.SourceRemoteUpdate
	default:
		c.Source = domain.SourceBothConflicting
		res.Hints = append(res.Hints, hint(item, f, baseVal, localVal, remoteVal,
			fmt.Sprintf("%s of %s %q: you changed it from %q to %q, the planning service now has %q; "+
				"set the value you want in the document and commit", f, item.Kind, item.Name, baseVal, localVal, remoteVal)))
	}
	res.add(c)
}

func (r *Result) add(c domain.AttributedChange) {
	r.Changes = append(r.Changes, c)
}

func change(item domain.ItemRecord, f domain.Field, oldVal, newVal string, at time.Time) domain.FieldChange {
	return domain.FieldChange{
		ItemKey:    item.Key(),
		ItemID:     item.ID,
		ItemName:   item.Name,
		Field:      f,
		Old:        oldVal,
		New:        newVal,
		DetectedAt: at,
	}
}

func hint(item domain.ItemRecord, f domain.Field, base, local, remote, message string) domain.ConflictHint {
	return domain.ConflictHint{
		ItemID:   item.ID,
		ItemName: item.Name,
		Field:    f,
		Base:     base,
		Local:    local,
		Remote:   remote,
		Message:  message,
	}
}

func sortChanges(changes []domain.AttributedChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].ItemKey != changes[j].ItemKey {
			return changes[i].ItemKey < changes[j].ItemKey
		}
		return fieldOrder(changes[i].Field) < fieldOrder(changes[j].Field)
	})
}

func fieldOrder(f domain.Field) int {
	for i, e := range domain.EditableFields {
		if e == f {
			return i + 1
		}
	}
	return 0
}
