package orchestrator

import (
	"context"
	"fmt"

	"plansync/internal/application"
	"plansync/internal/domain"
	"plansync/internal/ports"
)

// Init creates the tracking and working branches for target from a
// fresh remote snapshot. Initializing an existing pair is rejected with
// ErrAlreadyExists and changes nothing. A pair left with only its
// tracking branch gets its working branch.
func (o *Orchestrator) Init(ctx context.Context, target domain.Target) (*application.Result, error) {
	r := o.begin(domain.OpInit, target)
	release, err := o.start(r)
	if err != nil {
		return r.res, err
	}
	defer release()

	return o.finish(ctx, r, o.init(ctx, r))
}

func (o *Orchestrator) init(ctx context.Context, r *run) error {
	target := r.res.Target

	var st domain.SyncState
	err := o.locked(func() error {
		var err error
		if st, err = o.deriveState(ctx, target); err != nil {
			return err
		}
		state, err := o.repo.State(ctx)
		if err != nil {
			return err
		}
		if state.RebaseInProgress || state.MergeInProgress {
			return &application.RepositoryStateError{Condition: domain.ConditionRebaseInProgress, Detail: "finish or abort it before init"}
		}
		return nil
	})
	if err != nil {
		return err
	}

	switch st.Phase {
	case domain.PhaseWorkingReady:
		return fmt.Errorf("%s is already initialized: %w", target, application.ErrAlreadyExists)

	case domain.PhaseTrackingReady:
		return o.locked(func() error {
			head, err := o.repo.Head(ctx, st.TrackingBranch)
			if err != nil {
				return err
			}
			if err := o.checkTracking(ctx, st); err != nil {
				return err
			}
			if _, err := o.repo.CreateWorking(ctx, target, ports.BranchRef{Name: st.TrackingBranch, Hash: head}); err != nil {
				return err
			}
			if err := o.setPhase(ctx, &st, domain.PhaseWorkingReady); err != nil {
				return err
			}
			r.res.Message = fmt.Sprintf("created missing working branch %s", st.WorkingBranch)
			return nil
		})
	}

	snap, err := o.remote.Snapshot(ctx, target, true)
	if err != nil {
		return err
	}
	doc := domain.NewDocument(snap, o.syncTime())
	content, err := o.codec.Render(doc)
	if err != nil {
		return fmt.Errorf("render document: %w", err)
	}

	err = o.locked(func() error {
		ref, err := o.repo.CreateTracking(ctx, target, content)
		if err != nil {
			return err
		}
		if err := o.setPhase(ctx, &st, domain.PhaseTrackingReady); err != nil {
			return err
		}
		if _, err := o.repo.CreateWorking(ctx, target, ref); err != nil {
			return err
		}
		return o.setPhase(ctx, &st, domain.PhaseWorkingReady)
	})
	if err != nil {
		return err
	}

	for _, item := range doc.Items {
		r.res.AffectedItems = append(r.res.AffectedItems, item.ID)
	}
	r.res.Message = fmt.Sprintf("initialized %s with %d items; edit %s on %s",
		target, len(doc.Items), o.repo.DocumentPath(target), st.WorkingBranch)
	return nil
}

// checkTracking refuses to build a working branch on a tracking branch
// that holds no readable plan document.
func (o *Orchestrator) checkTracking(ctx context.Context, st domain.SyncState) error {
	broken := func(detail string) error {
		return &application.RepositoryStateError{
			Condition: domain.ConditionBrokenTracking,
			Branch:    st.TrackingBranch,
			Detail:    detail + "; delete the branch and run init again",
		}
	}

	content, err := o.repo.ReadDocument(ctx, st.Target, st.TrackingBranch)
	if err != nil {
		return err
	}
	if len(content) == 0 {
		return broken("no plan document at " + o.repo.DocumentPath(st.Target))
	}
	if _, err := o.codec.Parse(content); err != nil {
		return broken(fmt.Sprintf("plan document does not parse: %v", err))
	}
	return nil
}
