package domain

import "time"

// Operation names a sync operation
type Operation string

const (
	OpInit Operation = "init"
	OpPull Operation = "pull"
	OpPush Operation = "push"

	// OpResolve is reported but never audited
	OpResolve Operation = "resolve"
)

// Outcome is the terminal result of an operation
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeConflict Outcome = "conflict"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// AuditEntry records one sync operation. Entries are append-only and
// never modified after they are written.
type AuditEntry struct {
	ID          string
	Seq         int64 // per target, assigned by the log
	Target      Target
	Operation   Operation
	Outcome     Outcome
	Reason      string
	Message     string
	StartedAt   time.Time
	FinishedAt  time.Time
	TrackingRef string
	WorkingRef  string
	Changes     []AttributedChange
	Hints       []ConflictHint
}
