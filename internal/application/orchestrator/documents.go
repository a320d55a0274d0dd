package orchestrator

import (
	"context"
	"fmt"
	"time"

	"plansync/internal/domain"
	"plansync/internal/ports"
)

// trackingDocument builds the document for a fresh snapshot. Items the
// snapshot reports unchanged keep their previous synced_at, so edits
// committed before this sync are still attributed to the user.
func trackingDocument(prev domain.PlanDocument, snap domain.Snapshot, now time.Time) domain.PlanDocument {
	doc := domain.NewDocument(snap, now)
	before := prev.Index()
	current := snap.ByID()

	for i, t := range doc.Meta.Tracked {
		old, ok := before[t.ID]
		if !ok || !old.Equal(current[t.ID]) {
			continue
		}
		if at, tracked := prev.Meta.SyncedAtFor(t.ID); tracked {
			doc.Meta.Tracked[i].SyncedAt = at
		}
	}
	return doc
}

// refreshTracking commits a fresh snapshot to the tracking branch and
// returns the previous and new tracking documents. The caller holds the
// working-tree mutex.
func (o *Orchestrator) refreshTracking(ctx context.Context, st domain.SyncState, snap domain.Snapshot) (domain.PlanDocument, domain.PlanDocument, ports.CommitRef, error) {
	var prev domain.PlanDocument
	content, err := o.repo.ReadDocument(ctx, st.Target, st.TrackingBranch)
	if err != nil {
		return prev, prev, ports.CommitRef{}, err
	}
	if len(content) > 0 {
		if prev, err = o.codec.Parse(content); err != nil {
			// Tracking is engine-owned; a broken revision is replaced wholesale.
			o.logger.Warn().Err(err).Str("branch", st.TrackingBranch).Msg("tracking document does not parse")
			prev = domain.PlanDocument{}
		}
	}

	doc := trackingDocument(prev, snap, o.syncTime())
	rendered, err := o.codec.Render(doc)
	if err != nil {
		return prev, doc, ports.CommitRef{}, fmt.Errorf("render tracking document: %w", err)
	}
	if err := o.repo.Checkout(ctx, st.TrackingBranch); err != nil {
		return prev, doc, ports.CommitRef{}, err
	}
	ref, err := o.repo.UpdateTracking(ctx, st.Target, rendered)
	if err != nil {
		return prev, doc, ports.CommitRef{}, err
	}
	return prev, doc, ref, nil
}

// remoteChanges lists the field differences a pull brought in
func remoteChanges(prev, next domain.PlanDocument, at time.Time) []domain.AttributedChange {
	var out []domain.AttributedChange
	before := prev.Index()
	after := next.Index()

	for _, item := range next.Items {
		old, existed := before[item.Key()]
		if !existed {
			out = append(out, remoteChange(item, domain.FieldItem, "", item.Name, at))
			continue
		}
		for _, f := range domain.EditableFields {
			if old.Value(f) != item.Value(f) {
				out = append(out, remoteChange(item, f, old.Value(f), item.Value(f), at))
			}
		}
	}
	for _, item := range prev.Items {
		if _, kept := after[item.Key()]; !kept {
			c := remoteChange(item, domain.FieldItem, item.Name, "", at)
			c.Remote = domain.RemovedRemotely
			out = append(out, c)
		}
	}
	return out
}

func remoteChange(item domain.ItemRecord, f domain.Field, oldVal, newVal string, at time.Time) domain.AttributedChange {
	return domain.AttributedChange{
		FieldChange: domain.FieldChange{
			ItemKey:    item.Key(),
			ItemID:     item.ID,
			ItemName:   item.Name,
			Field:      f,
			Old:        oldVal,
			New:        newVal,
			DetectedAt: at,
		},
		Source: domain.SourceRemoteUpdate,
		Remote: newVal,
	}
}

// mergeHints explains conflict-marker regions left by a replay
func mergeHints(regions []ports.ConflictRegion, branch string) []domain.ConflictHint {
	hints := make([]domain.ConflictHint, 0, len(regions))
	for _, r := range regions {
		what := "the document metadata"
		if r.ItemName != "" {
			what = fmt.Sprintf("%q", r.ItemName)
		}
		if len(r.Fields) == 0 {
			hints = append(hints, domain.ConflictHint{
				ItemID:   r.ItemID,
				ItemName: r.ItemName,
				Field:    domain.FieldItem,
				Local:    r.Theirs,
				Remote:   r.Ours,
				Message:  fmt.Sprintf("conflict in %s on %s; edit the marked lines, git add and git rebase --continue", what, branch),
			})
			continue
		}
		for _, f := range r.Fields {
			hints = append(hints, domain.ConflictHint{
				ItemID:   r.ItemID,
				ItemName: r.ItemName,
				Field:    f,
				Local:    r.Theirs,
				Remote:   r.Ours,
				Message:  fmt.Sprintf("%s of %s changed both locally and remotely; keep one value, git add and git rebase --continue", f, what),
			})
		}
	}
	return hints
}

func withoutItems(doc domain.PlanDocument, keys map[string]bool) domain.PlanDocument {
	out := doc
	out.Items = make([]domain.ItemRecord, 0, len(doc.Items))
	for _, item := range doc.Items {
		if !keys[item.Key()] {
			out.Items = append(out.Items, item)
		}
	}
	return out
}
