package ports

import (
	"context"
	"time"

	"plansync/internal/domain"
)

// BranchRef names a branch and the commit it pointed at when returned
type BranchRef struct {
	Name string
	Hash string
}

// CommitRef identifies one commit
type CommitRef struct {
	Hash string
}

// RawDiff is the textual difference between two revisions of a plan
// document, along with both full revisions for structural comparison.
type RawDiff struct {
	BaseRef     string
	HeadRef     string
	BaseContent []byte
	HeadContent []byte
	Patch       string
}

// IsEmpty reports whether the two revisions are identical
func (d RawDiff) IsEmpty() bool {
	return string(d.BaseContent) == string(d.HeadContent)
}

// CommitInfo describes one commit on the working branch together with
// the plan document before and after it.
type CommitInfo struct {
	Hash        string
	Message     string
	AuthoredAt  time.Time
	CommittedAt time.Time

	// Engine is true for commits plansync wrote itself
	Engine bool

	Before []byte
	After  []byte
}

// TouchedAt is the later of the author and committer timestamps
func (c CommitInfo) TouchedAt() time.Time {
	if c.CommittedAt.After(c.AuthoredAt) {
		return c.CommittedAt
	}
	return c.AuthoredAt
}

// ConflictRegion is one conflict-marker hunk in a document, mapped back
// to the item and fields it covers.
type ConflictRegion struct {
	ItemID   string
	ItemName string
	Fields   []domain.Field
	Ours     string
	Theirs   string
}

// MergeOutcome is the result of replaying the working branch. A
// conflicted outcome is a valid terminal state, not an error.
type MergeOutcome struct {
	Conflicted bool
	Paths      []string
	Regions    []ConflictRegion
}

// Clean reports whether the replay finished without conflicts
func (m MergeOutcome) Clean() bool {
	return !m.Conflicted
}

// RepoState is a summary of the working tree relevant to sync
type RepoState struct {
	CurrentBranch    string
	Detached         bool
	RebaseInProgress bool
	MergeInProgress  bool

	// DirtyPaths lists uncommitted changes to tracked plan documents
	DirtyPaths []string
}

// PlanRepository owns the git branch lifecycle for plan documents. It
// knows nothing about plan semantics beyond document paths.
type PlanRepository interface {
	TrackingBranch(target domain.Target) string
	WorkingBranch(target domain.Target) string
	DocumentPath(target domain.Target) string

	BranchExists(ctx context.Context, branch string) (bool, error)
	Head(ctx context.Context, branch string) (string, error)
	State(ctx context.Context) (RepoState, error)
	Checkout(ctx context.Context, branch string) error

	CreateTracking(ctx context.Context, target domain.Target, content []byte) (BranchRef, error)
	CreateWorking(ctx context.Context, target domain.Target, from BranchRef) (BranchRef, error)
	UpdateTracking(ctx context.Context, target domain.Target, content []byte) (CommitRef, error)
	ReplayOntoWorking(ctx context.Context, target domain.Target, tracking CommitRef) (MergeOutcome, error)
	ResetWorking(ctx context.Context, target domain.Target, to CommitRef) error
	CommitWorking(ctx context.Context, target domain.Target, content []byte, message string) (CommitRef, error)

	Diff(ctx context.Context, target domain.Target, baseRef, headRef string) (RawDiff, error)
	WorkingCommits(ctx context.Context, target domain.Target) ([]CommitInfo, error)
	ReadDocument(ctx context.Context, target domain.Target, ref string) ([]byte, error)
}

// Merger replays one branch onto another with the host VCS's native
// three-way merge. Implementations must not resolve conflicts.
type Merger interface {
	Replay(ctx context.Context, branch, onto string) (MergeOutcome, error)
	Abort(ctx context.Context) error
}
