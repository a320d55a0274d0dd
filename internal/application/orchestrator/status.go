package orchestrator

import (
	"context"
	"fmt"

	"plansync/internal/application"
	"plansync/internal/application/attribution"
	"plansync/internal/domain"
	"plansync/internal/ports"
)

// StatusReport describes one pair without changing it
type StatusReport struct {
	State        domain.SyncState
	TrackingHead string
	WorkingHead  string
	Repo         ports.RepoState

	// Pending previews what a push would do, attributed against the
	// cached remote state. PreviewError explains a missing preview.
	Pending      []domain.AttributedChange
	Hints        []domain.ConflictHint
	PreviewError string

	// Unresolved lists what keeps a conflict phase from being left
	Unresolved []string

	LastEntry *domain.AuditEntry
}

// Status reports the phase, branches and pending local changes of
// target. It reads the remote through the cache and takes no pair lock.
func (o *Orchestrator) Status(ctx context.Context, target domain.Target) (*StatusReport, error) {
	if err := application.ValidateTarget(target); err != nil {
		return nil, err
	}

	report := &StatusReport{}
	var diff ports.RawDiff
	err := o.locked(func() error {
		st, err := o.loadState(ctx, target)
		if err != nil {
			return err
		}
		report.State = st
		if report.Repo, err = o.repo.State(ctx); err != nil {
			return err
		}
		if st.Phase == domain.PhaseUninitialized {
			return nil
		}
		report.TrackingHead = o.headOf(ctx, st.TrackingBranch)
		report.WorkingHead = o.headOf(ctx, st.WorkingBranch)

		if st.Phase.NeedsResolution() {
			if report.Unresolved, err = o.pendingResolution(ctx, st, report.Repo); err != nil {
				return err
			}
		}
		if st.Phase != domain.PhaseTrackingReady {
			diff, err = o.repo.Diff(ctx, target, st.TrackingBranch, st.WorkingBranch)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	entries, err := o.audit.List(ctx, target, 1)
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	if len(entries) > 0 {
		report.LastEntry = &entries[0]
	}

	if report.State.Phase == domain.PhaseUninitialized || diff.IsEmpty() {
		return report, nil
	}
	if report.Repo.RebaseInProgress {
		report.PreviewError = "a rebase is in progress"
		return report, nil
	}
	o.preview(ctx, report, diff)
	return report, nil
}

func (o *Orchestrator) preview(ctx context.Context, report *StatusReport, diff ports.RawDiff) {
	target := report.State.Target
	commits, err := o.repo.WorkingCommits(ctx, target)
	if err != nil {
		report.PreviewError = err.Error()
		return
	}
	snap, err := o.remote.Snapshot(ctx, target, false)
	if err != nil {
		report.PreviewError = err.Error()
		return
	}
	res, err := o.attributor.Attribute(attribution.Input{Diff: diff, Commits: commits, Remote: snap})
	if err != nil {
		report.PreviewError = err.Error()
		return
	}
	report.Pending = res.Changes
	report.Hints = res.Hints
}

// Resolve leaves Conflicted or PushConflict once the human has committed
// a resolution. It is not audited.
func (o *Orchestrator) Resolve(ctx context.Context, target domain.Target) (*application.Result, error) {
	r := o.begin(domain.OpResolve, target)
	release, err := o.start(r)
	if err != nil {
		return r.res, err
	}
	defer release()

	err = o.locked(func() error {
		st, err := o.loadState(ctx, target)
		if err != nil {
			return err
		}
		o.recover(ctx, &st)
		if !st.Phase.NeedsResolution() {
			r.res.Message = fmt.Sprintf("%s is %s; nothing to resolve", target, st.Phase)
			return nil
		}

		state, err := o.repo.State(ctx)
		if err != nil {
			return err
		}
		pending, err := o.pendingResolution(ctx, st, state)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			return &application.ResolutionError{Target: target, Phase: st.Phase, Pending: pending}
		}
		if err := o.setPhase(ctx, &st, domain.PhaseWorkingReady); err != nil {
			return err
		}
		r.res.Message = fmt.Sprintf("%s resolved; pull or push may run again", target)
		return nil
	})
	if err != nil {
		r.reject(err)
		return r.res, err
	}
	r.log.Info().Msg(r.res.Message)
	return r.res, nil
}

// History returns the newest audit entries of target
func (o *Orchestrator) History(ctx context.Context, target domain.Target, limit int) ([]domain.AuditEntry, error) {
	if err := application.ValidateTarget(target); err != nil {
		return nil, err
	}
	return o.audit.List(ctx, target, limit)
}

// Entry returns one audit entry by id
func (o *Orchestrator) Entry(ctx context.Context, id string) (*domain.AuditEntry, error) {
	entry, err := o.audit.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, &application.ValidationError{Field: "auditID", Message: "no audit entry " + id}
	}
	return entry, nil
}

// States lists the persisted state of every pair
func (o *Orchestrator) States(ctx context.Context) ([]domain.SyncState, error) {
	return o.states.List(ctx)
}
