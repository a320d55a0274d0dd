// Package orchestrator runs the init, pull and push state machine for
// (team, release) pairs. It owns the order of repository, remote and
// audit calls; the collaborators own the mechanics.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"plansync/internal/application"
	"plansync/internal/application/attribution"
	"plansync/internal/clock"
	"plansync/internal/domain"
	"plansync/internal/ports"
	"plansync/internal/remote"
)

// RemoteGateway is the orchestrator's view of the remote service
type RemoteGateway interface {
	Snapshot(ctx context.Context, target domain.Target, fresh bool) (domain.Snapshot, error)
	ApplyBatch(ctx context.Context, ops []remote.Operation) ([]remote.OpResult, error)
}

var _ RemoteGateway = (*remote.Gateway)(nil)

// Deps wires an Orchestrator
type Deps struct {
	Repo   ports.PlanRepository
	Remote RemoteGateway
	Codec  ports.DocumentCodec
	Audit  ports.AuditLog
	States ports.StateStore
	Clock  clock.Clock
	Logger zerolog.Logger
}

// Orchestrator runs sync operations. Operations on one pair are
// sequential; a second operation on a busy pair is rejected with
// ErrBusy. Operations on different pairs run concurrently, sharing the
// one working tree under a mutex.
type Orchestrator struct {
	repo       ports.PlanRepository
	remote     RemoteGateway
	codec      ports.DocumentCodec
	attributor *attribution.Attributor
	audit      ports.AuditLog
	states     ports.StateStore
	clock      clock.Clock
	logger     zerolog.Logger

	mu       sync.Mutex
	pairs    map[domain.Target]*sync.Mutex
	worktree sync.Mutex
}

// New creates an Orchestrator
func New(d Deps) *Orchestrator {
	clk := d.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Orchestrator{
		repo:       d.Repo,
		remote:     d.Remote,
		codec:      d.Codec,
		attributor: attribution.New(d.Codec, clk, d.Logger),
		audit:      d.Audit,
		states:     d.States,
		clock:      clk,
		logger:     d.Logger,
		pairs:      make(map[domain.Target]*sync.Mutex),
	}
}

// acquire claims target for one operation. It never blocks.
func (o *Orchestrator) acquire(target domain.Target) (func(), bool) {
	o.mu.Lock()
	lock, ok := o.pairs[target]
	if !ok {
		lock = &sync.Mutex{}
		o.pairs[target] = lock
	}
	o.mu.Unlock()

	if !lock.TryLock() {
		return nil, false
	}
	return lock.Unlock, true
}

// locked runs fn holding the working-tree mutex
func (o *Orchestrator) locked(fn func() error) error {
	o.worktree.Lock()
	defer o.worktree.Unlock()
	return fn()
}

// syncTime is the timestamp written as synced_at. Git stores commit
// times in whole seconds, so synced_at does too.
func (o *Orchestrator) syncTime() time.Time {
	return o.clock.Now().UTC().Truncate(time.Second)
}

// run is one audited operation in flight
type run struct {
	res     *application.Result
	started time.Time
	log     zerolog.Logger
}

func (o *Orchestrator) begin(op domain.Operation, target domain.Target) *run {
	return &run{
		res:     &application.Result{Operation: op, Target: target, Outcome: domain.OutcomeSuccess},
		started: o.clock.Now(),
		log: o.logger.With().
			Str("team", target.Team).
			Str("release", target.Release).
			Str("op", string(op)).
			Logger(),
	}
}

// start validates target and claims it. A nil release means the run was
// rejected and r.res is final.
func (o *Orchestrator) start(r *run) (func(), error) {
	if err := application.ValidateTarget(r.res.Target); err != nil {
		r.reject(err)
		return nil, err
	}
	release, ok := o.acquire(r.res.Target)
	if !ok {
		err := fmt.Errorf("%s: %w", r.res.Target, application.ErrBusy)
		r.reject(err)
		r.log.Info().Msg("rejected, pair busy")
		return nil, err
	}
	return release, nil
}

func (r *run) reject(err error) {
	r.res.Reason = application.ReasonFor(err)
	r.res.Outcome = outcomeFor(r.res.Reason)
	r.res.Message = err.Error()
}

// finish classifies err, writes the audit entry and returns the result.
// Audit and state writes survive cancellation of ctx.
func (o *Orchestrator) finish(ctx context.Context, r *run, err error) (*application.Result, error) {
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		r.reject(err)
		r.log.Warn().Err(err).Str("reason", r.res.Reason).Msg("operation did not complete")
	} else {
		r.log.Info().
			Str("outcome", string(r.res.Outcome)).
			Str("reason", r.res.Reason).
			Int("changes", len(r.res.Changes)).
			Msg(r.res.Message)
	}

	entry := r.res.Entry()
	entry.StartedAt = r.started
	entry.FinishedAt = o.clock.Now()
	entry.TrackingRef = o.headOf(ctx, o.repo.TrackingBranch(r.res.Target))
	entry.WorkingRef = o.headOf(ctx, o.repo.WorkingBranch(r.res.Target))

	saved, auditErr := o.audit.Append(ctx, entry)
	if auditErr != nil {
		r.log.Error().Err(auditErr).Msg("audit append failed")
		r.res.AuditFailure = auditErr.Error()
		if r.res.Message != "" {
			r.res.Message += "; "
		}
		r.res.Message += "audit entry not recorded: " + auditErr.Error()
	} else {
		r.res.AuditID = saved.ID
	}
	return r.res, err
}

func (o *Orchestrator) headOf(ctx context.Context, branch string) string {
	hash, err := o.repo.Head(ctx, branch)
	if err != nil {
		return ""
	}
	return hash
}

// outcomeFor separates refused preconditions from failures
func outcomeFor(reason string) domain.Outcome {
	switch reason {
	case application.ReasonBusy,
		application.ReasonAlreadyExists,
		application.ReasonNotInitialized,
		application.ReasonResolutionRequired,
		application.ReasonDetachedState,
		application.ReasonRebaseActive,
		application.ReasonDirtyDocument,
		application.ReasonUntrackedItem,
		application.ReasonValidation:
		return domain.OutcomeRejected
	default:
		return domain.OutcomeFailed
	}
}
