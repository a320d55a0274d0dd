package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the repository adapter and the sync engine
var (
	ErrAlreadyExists  = errors.New("already exists")
	ErrNotInitialized = errors.New("not initialized")
	ErrDetachedState  = errors.New("repository is not on the expected branch")
	ErrUntrackedItem  = errors.New("item is not tracked")
	ErrDirtyDocument  = errors.New("plan document has uncommitted changes")
	ErrRebaseActive   = errors.New("a rebase is in progress")
)

// RepoCondition names a repository state that blocks an operation
type RepoCondition string

const (
	ConditionBranchMissing    RepoCondition = "branch-missing"
	ConditionDetachedHead     RepoCondition = "detached-head"
	ConditionRebaseInProgress RepoCondition = "rebase-in-progress"
	ConditionDirtyDocument    RepoCondition = "dirty-document"
	ConditionBrokenTracking   RepoCondition = "broken-tracking"
)

// RepositoryStateError reports that the repository is not in a state
// the operation can start from.
type RepositoryStateError struct {
	Condition RepoCondition
	Branch    string
	Detail    string
}

func (e *RepositoryStateError) Error() string {
	msg := fmt.Sprintf("repository %s", e.Condition)
	if e.Branch != "" {
		msg += " (" + e.Branch + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *RepositoryStateError) Is(target error) bool {
	switch e.Condition {
	case ConditionBranchMissing:
		return target == ErrNotInitialized
	case ConditionDetachedHead:
		return target == ErrDetachedState
	case ConditionRebaseInProgress:
		return target == ErrRebaseActive
	case ConditionDirtyDocument:
		return target == ErrDirtyDocument
	}
	return false
}

// UntrackedItemError names an id found in the working document that the
// tracking document never contained.
type UntrackedItemError struct {
	ID string
}

func (e *UntrackedItemError) Error() string {
	return fmt.Sprintf("item %s is not tracked; ids are assigned by the planning service", e.ID)
}

func (e *UntrackedItemError) Is(target error) bool {
	return target == ErrUntrackedItem
}
