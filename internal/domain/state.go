package domain

import "time"

// Phase is the lifecycle state of one target
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseTrackingReady Phase = "tracking-ready"
	PhaseWorkingReady  Phase = "working-ready"
	PhasePullRunning   Phase = "pull-running"
	PhaseConflicted    Phase = "conflicted"
	PhasePushRunning   Phase = "push-running"
	PhasePushConflict  Phase = "push-conflict"
)

var transitions = map[Phase][]Phase{
	PhaseUninitialized: {PhaseTrackingReady},
	PhaseTrackingReady: {PhaseWorkingReady},
	PhaseWorkingReady:  {PhasePullRunning, PhasePushRunning},
	PhasePullRunning:   {PhaseWorkingReady, PhaseConflicted},
	PhasePushRunning:   {PhaseWorkingReady, PhasePushConflict, PhaseConflicted},
	PhaseConflicted:    {PhaseWorkingReady},
	PhasePushConflict:  {PhaseWorkingReady},
}

// CanTransition reports whether the state machine allows p -> next
func (p Phase) CanTransition(next Phase) bool {
	for _, allowed := range transitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NeedsResolution reports whether a human must commit a resolution
// before another pull or push may start.
func (p Phase) NeedsResolution() bool {
	return p == PhaseConflicted || p == PhasePushConflict
}

// IsRunning reports whether an operation is in flight
func (p Phase) IsRunning() bool {
	return p == PhasePullRunning || p == PhasePushRunning
}

// SyncState tracks the branches and phase of one target
type SyncState struct {
	Target         Target
	TrackingBranch string
	WorkingBranch  string
	Phase          Phase

	// ConflictTip is the working tip recorded when a push conflict was
	// reported; a new commit past it counts as a resolution.
	ConflictTip string
	UpdatedAt   time.Time
}
