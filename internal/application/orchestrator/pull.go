package orchestrator

import (
	"context"
	"fmt"

	"plansync/internal/application"
	"plansync/internal/domain"
)

// Pull refreshes the tracking branch from a fresh remote snapshot and
// replays the working branch on top of it. The cache is never consulted.
// A replay that stops on conflicts is reported with Outcome conflict and
// leaves the pair Conflicted until the rebase is finished.
func (o *Orchestrator) Pull(ctx context.Context, target domain.Target) (*application.Result, error) {
	r := o.begin(domain.OpPull, target)
	release, err := o.start(r)
	if err != nil {
		return r.res, err
	}
	defer release()

	return o.finish(ctx, r, o.pull(ctx, r))
}

func (o *Orchestrator) pull(ctx context.Context, r *run) error {
	target := r.res.Target

	st, err := o.prepare(ctx, target, domain.OpPull)
	if err != nil {
		return err
	}

	snap, err := o.remote.Snapshot(ctx, target, true)
	if err != nil {
		return err
	}

	return o.locked(func() error {
		if err := o.setPhase(ctx, &st, domain.PhasePullRunning); err != nil {
			return err
		}
		defer o.settle(ctx, &st)

		prev, doc, ref, err := o.refreshTracking(ctx, st, snap)
		if err != nil {
			return err
		}
		r.res.Changes = remoteChanges(prev, doc, o.clock.Now())

		outcome, err := o.repo.ReplayOntoWorking(ctx, target, ref)
		if err != nil {
			return err
		}

		if outcome.Conflicted {
			if err := o.setPhase(ctx, &st, domain.PhaseConflicted); err != nil {
				return err
			}
			r.res.Outcome = domain.OutcomeConflict
			r.res.Reason = application.ReasonMergeConflict
			r.res.Hints = mergeHints(outcome.Regions, st.WorkingBranch)
			for _, region := range outcome.Regions {
				if region.ItemID != "" {
					r.res.AffectedItems = append(r.res.AffectedItems, region.ItemID)
				}
			}
			r.res.Message = fmt.Sprintf("pulled %d remote changes; replaying %s stopped on %d conflicts",
				len(r.res.Changes), st.WorkingBranch, len(outcome.Regions))
			return nil
		}

		if err := o.setPhase(ctx, &st, domain.PhaseWorkingReady); err != nil {
			return err
		}
		for _, c := range r.res.Changes {
			r.res.AffectedItems = appendUnique(r.res.AffectedItems, c.ItemID)
		}
		r.res.Message = fmt.Sprintf("pulled %d remote changes into %s", len(r.res.Changes), st.WorkingBranch)
		return nil
	})
}

func appendUnique(ids []string, id string) []string {
	if id == "" {
		return ids
	}
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
