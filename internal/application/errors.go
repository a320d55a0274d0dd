package application

import (
	"context"
	"errors"
	"fmt"

	"plansync/internal/domain"
	"plansync/internal/remote"
)

// Sentinel errors for common conditions. Repository sentinels live in
// domain so adapters can return them; they are re-exported here.
var (
	ErrBusy               = errors.New("another operation is in progress for this plan")
	ErrResolutionRequired = errors.New("conflicts must be resolved and committed first")

	ErrAlreadyExists  = domain.ErrAlreadyExists
	ErrNotInitialized = domain.ErrNotInitialized
	ErrDetachedState  = domain.ErrDetachedState
	ErrUntrackedItem  = domain.ErrUntrackedItem
	ErrDirtyDocument  = domain.ErrDirtyDocument
	ErrRebaseActive   = domain.ErrRebaseActive
)

// RepositoryStateError is re-exported for callers outside the core
type RepositoryStateError = domain.RepositoryStateError

// ValidationError represents a validation failure with details
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ResolutionError lists what still blocks leaving a conflicted phase
type ResolutionError struct {
	Target  domain.Target
	Phase   domain.Phase
	Pending []string
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%s is %s", e.Target, e.Phase)
	for i, p := range e.Pending {
		if i == 0 {
			msg += ": "
		} else {
			msg += "; "
		}
		msg += p
	}
	return msg
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolutionRequired
}

// Reason codes reported in results and audit entries
const (
	ReasonBusy               = "busy"
	ReasonAlreadyExists      = "already-exists"
	ReasonNotInitialized     = "not-initialized"
	ReasonResolutionRequired = "resolution-required"
	ReasonDetachedState      = "detached-state"
	ReasonRebaseActive       = "rebase-in-progress"
	ReasonDirtyDocument      = "dirty-document"
	ReasonUntrackedItem      = "untracked-item"
	ReasonBrokenTracking     = "broken-tracking"
	ReasonValidation         = "validation"
	ReasonRetryExhausted     = "retry-exhausted"
	ReasonRollbackIncomplete = "rollback-incomplete"
	ReasonCanceled           = "canceled"
	ReasonTimeout            = "timeout"
	ReasonInternal           = "internal"

	// Reasons for outcomes that are not errors
	ReasonMergeConflict = "merge-conflict"
	ReasonFieldConflict = "field-conflict"
	ReasonNothingToPush = "nothing-to-push"
)

// ReasonFor maps an error to the machine-readable reason code reported
// to operators. Remote failures map to "remote-<reason>".
func ReasonFor(err error) string {
	if err == nil {
		return ""
	}

	var batchErr *remote.BatchError
	if errors.As(err, &batchErr) && !batchErr.Consistent() {
		return ReasonRollbackIncomplete
	}

	var stateErr *RepositoryStateError
	if errors.As(err, &stateErr) && stateErr.Condition == domain.ConditionBrokenTracking {
		return ReasonBrokenTracking
	}

	switch {
	case errors.Is(err, ErrBusy):
		return ReasonBusy
	case errors.Is(err, ErrAlreadyExists):
		return ReasonAlreadyExists
	case errors.Is(err, ErrNotInitialized):
		return ReasonNotInitialized
	case errors.Is(err, ErrResolutionRequired):
		return ReasonResolutionRequired
	case errors.Is(err, ErrDetachedState):
		return ReasonDetachedState
	case errors.Is(err, ErrRebaseActive):
		return ReasonRebaseActive
	case errors.Is(err, ErrDirtyDocument):
		return ReasonDirtyDocument
	case errors.Is(err, ErrUntrackedItem):
		return ReasonUntrackedItem
	}

	var exhausted *remote.RetryExhaustedError
	if errors.As(err, &exhausted) {
		return ReasonRetryExhausted
	}
	var remoteErr *remote.Error
	if errors.As(err, &remoteErr) {
		return "remote-" + string(remoteErr.Reason)
	}

	var validationErr *ValidationError
	var fieldErr *domain.FieldError
	if errors.As(err, &validationErr) || errors.As(err, &fieldErr) {
		return ReasonValidation
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	}
	return ReasonInternal
}
