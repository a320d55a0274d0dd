package orchestrator

import (
	"context"
	"fmt"
	"slices"

	"plansync/internal/application"
	"plansync/internal/domain"
	"plansync/internal/ports"
)

// loadState returns the persisted state, or one derived from the
// branches when nothing is stored. Stored state naming branches that no
// longer exist is derived again.
func (o *Orchestrator) loadState(ctx context.Context, target domain.Target) (domain.SyncState, error) {
	st, err := o.states.Load(ctx, target)
	if err != nil {
		return domain.SyncState{}, fmt.Errorf("load sync state: %w", err)
	}
	derived, err := o.deriveState(ctx, target)
	if err != nil {
		return domain.SyncState{}, err
	}
	if st == nil || derived.Phase != domain.PhaseWorkingReady {
		return derived, nil
	}
	return *st, nil
}

func (o *Orchestrator) deriveState(ctx context.Context, target domain.Target) (domain.SyncState, error) {
	st := domain.SyncState{
		Target:         target,
		TrackingBranch: o.repo.TrackingBranch(target),
		WorkingBranch:  o.repo.WorkingBranch(target),
		Phase:          domain.PhaseUninitialized,
		UpdatedAt:      o.clock.Now(),
	}
	tracking, err := o.repo.BranchExists(ctx, st.TrackingBranch)
	if err != nil {
		return st, err
	}
	if !tracking {
		return st, nil
	}
	st.Phase = domain.PhaseTrackingReady

	working, err := o.repo.BranchExists(ctx, st.WorkingBranch)
	if err != nil {
		return st, err
	}
	if working {
		st.Phase = domain.PhaseWorkingReady
	}
	return st, nil
}

// setPhase moves st to next and persists it
func (o *Orchestrator) setPhase(ctx context.Context, st *domain.SyncState, next domain.Phase) error {
	if st.Phase != next && !st.Phase.CanTransition(next) {
		return fmt.Errorf("sync state of %s cannot move from %s to %s", st.Target, st.Phase, next)
	}
	st.Phase = next
	st.UpdatedAt = o.clock.Now()
	if next != domain.PhasePushConflict {
		st.ConflictTip = ""
	}
	if err := o.states.Save(context.WithoutCancel(ctx), *st); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}

// settle leaves a running phase after an operation stopped early. A
// rebase left in progress means a human has to finish it.
func (o *Orchestrator) settle(ctx context.Context, st *domain.SyncState) {
	if !st.Phase.IsRunning() {
		return
	}
	next := domain.PhaseWorkingReady
	if state, err := o.repo.State(context.WithoutCancel(ctx)); err == nil && state.RebaseInProgress {
		next = domain.PhaseConflicted
	}
	if err := o.setPhase(ctx, st, next); err != nil {
		o.logger.Error().Err(err).Str("target", st.Target.String()).Msg("could not settle sync state")
	}
}

// recover rewrites a running phase found at the start of an operation.
// The pair lock is held, so no operation is in flight for it.
func (o *Orchestrator) recover(ctx context.Context, st *domain.SyncState) {
	if !st.Phase.IsRunning() {
		return
	}
	interrupted := st.Phase
	o.settle(ctx, st)
	o.logger.Warn().
		Str("target", st.Target.String()).
		Str("interrupted", string(interrupted)).
		Str("phase", string(st.Phase)).
		Msg("recovered state of an interrupted operation")
}

// prepare loads state for pull or push and refuses to start unless the
// pair is initialized, resolved and clean. A resolved conflict phase is
// left here. A pull may start from PushConflict: pulling is how the
// remote values reach the working branch for resolution.
func (o *Orchestrator) prepare(ctx context.Context, target domain.Target, op domain.Operation) (domain.SyncState, error) {
	var st domain.SyncState
	err := o.locked(func() error {
		var err error
		st, err = o.loadState(ctx, target)
		if err != nil {
			return err
		}
		o.recover(ctx, &st)

		switch st.Phase {
		case domain.PhaseUninitialized, domain.PhaseTrackingReady:
			return fmt.Errorf("%s: run init first: %w", target, application.ErrNotInitialized)
		}

		repoState, err := o.repo.State(ctx)
		if err != nil {
			return err
		}

		if st.Phase == domain.PhasePushConflict && op == domain.OpPull {
			o.logger.Info().Str("target", target.String()).Msg("pulling to resolve a rejected push")
			if err := o.setPhase(ctx, &st, domain.PhaseWorkingReady); err != nil {
				return err
			}
		}

		if st.Phase.NeedsResolution() {
			pending, err := o.pendingResolution(ctx, st, repoState)
			if err != nil {
				return err
			}
			if len(pending) > 0 {
				return &application.ResolutionError{Target: target, Phase: st.Phase, Pending: pending}
			}
			o.logger.Info().Str("target", target.String()).Str("phase", string(st.Phase)).Msg("conflict resolved")
			if err := o.setPhase(ctx, &st, domain.PhaseWorkingReady); err != nil {
				return err
			}
		}

		return o.checkClean(target, repoState)
	})
	return st, err
}

func (o *Orchestrator) checkClean(target domain.Target, state ports.RepoState) error {
	switch {
	case state.RebaseInProgress:
		return &application.RepositoryStateError{Condition: domain.ConditionRebaseInProgress, Detail: "finish or abort the rebase first"}
	case state.MergeInProgress:
		return &application.RepositoryStateError{Condition: domain.ConditionRebaseInProgress, Detail: "a merge is in progress"}
	case slices.Contains(state.DirtyPaths, o.repo.DocumentPath(target)):
		return &application.RepositoryStateError{
			Condition: domain.ConditionDirtyDocument,
			Detail:    o.repo.DocumentPath(target) + " has uncommitted changes",
		}
	}
	return nil
}

// pendingResolution lists what still keeps st in a conflict phase
func (o *Orchestrator) pendingResolution(ctx context.Context, st domain.SyncState, state ports.RepoState) ([]string, error) {
	var pending []string
	if state.RebaseInProgress {
		pending = append(pending, "finish the rebase: resolve the document, git add it and run git rebase --continue")
		return pending, nil
	}

	content, err := o.repo.ReadDocument(ctx, st.Target, st.WorkingBranch)
	if err != nil {
		return nil, err
	}
	if _, err := o.codec.Parse(content); err != nil {
		pending = append(pending, fmt.Sprintf("the document on %s is not valid: %v", st.WorkingBranch, err))
	}

	if st.Phase == domain.PhasePushConflict {
		head, err := o.repo.Head(ctx, st.WorkingBranch)
		if err != nil {
			return nil, err
		}
		if head == st.ConflictTip {
			pending = append(pending, "commit the values you want on "+st.WorkingBranch)
		}
	}
	return pending, nil
}
