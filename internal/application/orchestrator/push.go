package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"plansync/internal/application"
	"plansync/internal/application/attribution"
	"plansync/internal/domain"
	"plansync/internal/remote"
)

// PushOptions tunes a push
type PushOptions struct {
	// ConfirmRemovals deletes remotely the items removed from the
	// document. Without it removals are withheld and kept on the
	// working branch.
	ConfirmRemovals bool
}

// Push applies the user's edits to the remote service as one atomic
// batch. Any field changed on both sides rejects the push before a
// single remote mutation. After a successful batch the tracking branch
// is refreshed and the working branch reset onto it.
func (o *Orchestrator) Push(ctx context.Context, target domain.Target, opts PushOptions) (*application.Result, error) {
	r := o.begin(domain.OpPush, target)
	release, err := o.start(r)
	if err != nil {
		return r.res, err
	}
	defer release()

	return o.finish(ctx, r, o.push(ctx, r, opts))
}

func (o *Orchestrator) push(ctx context.Context, r *run, opts PushOptions) error {
	target := r.res.Target

	st, err := o.prepare(ctx, target, domain.OpPush)
	if err != nil {
		return err
	}

	diff, err := o.repo.Diff(ctx, target, st.TrackingBranch, st.WorkingBranch)
	if err != nil {
		return err
	}
	if diff.IsEmpty() {
		r.res.Reason = application.ReasonNothingToPush
		r.res.Message = "working document matches tracking; nothing to push"
		return nil
	}

	if err := o.setPhase(ctx, &st, domain.PhasePushRunning); err != nil {
		return err
	}
	defer o.settle(ctx, &st)

	commits, err := o.repo.WorkingCommits(ctx, target)
	if err != nil {
		return err
	}
	snap, err := o.remote.Snapshot(ctx, target, true)
	if err != nil {
		return err
	}
	attributed, err := o.attributor.Attribute(attribution.Input{Diff: diff, Commits: commits, Remote: snap})
	if err != nil {
		return err
	}
	r.res.Changes = attributed.Changes

	if attributed.HasConflicts() {
		head, err := o.repo.Head(ctx, st.WorkingBranch)
		if err != nil {
			return err
		}
		st.ConflictTip = head
		if err := o.setPhase(ctx, &st, domain.PhasePushConflict); err != nil {
			return err
		}

		r.res.Outcome = domain.OutcomeRejected
		r.res.Reason = application.ReasonFieldConflict
		r.res.Hints = attributed.Hints
		for _, c := range attributed.BySource(domain.SourceBothConflicting) {
			r.res.AffectedItems = appendUnique(r.res.AffectedItems, c.ItemID)
		}
		r.res.Message = fmt.Sprintf("push rejected: %d fields changed both locally and remotely; "+
			"pull, resolve the conflicts on %s and push again", len(attributed.BySource(domain.SourceBothConflicting)), st.WorkingBranch)
		return nil
	}

	ops, withheld := planBatch(attributed, snap, opts.ConfirmRemovals)
	if len(ops) > 0 {
		results, err := o.remote.ApplyBatch(ctx, ops)
		var batchErr *remote.BatchError
		if errors.As(err, &batchErr) && len(batchErr.Reassigned) > 0 {
			for _, id := range batchErr.Reassigned {
				r.res.AffectedItems = appendUnique(r.res.AffectedItems, id)
			}
			sort.Strings(r.res.AffectedItems)
			return fmt.Errorf("%s still carries the old ids, run pull: %w", st.TrackingBranch, err)
		}
		if err != nil {
			return err
		}
		for _, res := range results {
			r.res.AffectedItems = appendUnique(r.res.AffectedItems, res.Record.ID)
		}
	}

	fresh, err := o.remote.Snapshot(ctx, target, true)
	if err != nil {
		return fmt.Errorf("%d changes applied but refreshing %s failed, run pull: %w", len(ops), st.TrackingBranch, err)
	}

	err = o.locked(func() error {
		_, doc, ref, err := o.refreshTracking(ctx, st, fresh)
		if err != nil {
			return err
		}
		if err := o.repo.ResetWorking(ctx, target, ref); err != nil {
			return err
		}
		if len(withheld) == 0 {
			return nil
		}

		kept, err := o.codec.Render(withoutItems(doc, withheld))
		if err != nil {
			return fmt.Errorf("render withheld removals: %w", err)
		}
		_, err = o.repo.CommitWorking(ctx, target, kept, withheldMessage(target, withheld))
		return err
	})
	if err != nil {
		return fmt.Errorf("%d changes applied but updating branches failed, run pull: %w", len(ops), err)
	}
	if err := o.setPhase(ctx, &st, domain.PhaseWorkingReady); err != nil {
		return err
	}

	r.res.Message = fmt.Sprintf("pushed %d changes to the planning service", len(ops))
	if len(withheld) > 0 {
		r.res.Message += fmt.Sprintf("; %d removals withheld, push with removals confirmed to delete them", len(withheld))
	}
	return nil
}

// planBatch turns attributed changes into remote operations: creates
// (objectives before epics), then updates, then confirmed deletes
// (epics before objectives). Unconfirmed removals are returned as
// withheld item keys.
func planBatch(res *attribution.Result, snap domain.Snapshot, confirmRemovals bool) ([]remote.Operation, map[string]bool) {
	local := res.Local.Index()
	current := snap.ByID()

	var creates, deletes []remote.Operation
	patches := make(map[string]domain.ItemPatch)
	var patchOrder []string
	withheld := make(map[string]bool)

	for _, c := range res.Changes {
		switch c.Source {
		case domain.SourceNewItem:
			creates = append(creates, remote.Operation{Kind: remote.OpCreate, ItemKey: c.ItemKey, Item: local[c.ItemKey]})

		case domain.SourceUserEdit:
			patch, ok := patches[c.ItemID]
			if !ok {
				patch = domain.NewItemPatch()
				patches[c.ItemID] = patch
				patchOrder = append(patchOrder, c.ItemID)
			}
			patch.Set[c.Field] = c.New

		case domain.SourceRemovedItem:
			if !confirmRemovals {
				withheld[c.ItemKey] = true
				continue
			}
			deletes = append(deletes, remote.Operation{Kind: remote.OpDelete, ItemKey: c.ItemKey, Item: current[c.ItemID]})
		}
	}

	sort.SliceStable(creates, func(i, j int) bool {
		return creates[i].Item.Kind == domain.KindObjective && creates[j].Item.Kind != domain.KindObjective
	})
	sort.SliceStable(deletes, func(i, j int) bool {
		return deletes[i].Item.Kind == domain.KindEpic && deletes[j].Item.Kind != domain.KindEpic
	})

	ops := creates
	for _, id := range patchOrder {
		ops = append(ops, remote.Operation{Kind: remote.OpUpdate, ItemKey: id, Item: current[id], Patch: patches[id]})
	}
	ops = append(ops, deletes...)
	return ops, withheld
}

func withheldMessage(target domain.Target, withheld map[string]bool) string {
	keys := make([]string, 0, len(withheld))
	for key := range withheld {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return domain.EngineMessage("withhold", target) + "\n\nwithheld removals: " + strings.Join(keys, ", ") + "\n"
}
