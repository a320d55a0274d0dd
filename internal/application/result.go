package application

import "plansync/internal/domain"

// Result is what every sync operation reports to its caller. Conflicts
// and rejections are results; Reason is empty on success.
type Result struct {
	Operation     domain.Operation
	Target        domain.Target
	Outcome       domain.Outcome
	Reason        string
	Message       string
	AffectedItems []string
	Hints         []domain.ConflictHint
	Changes       []domain.AttributedChange
	AuditID       string

	// AuditFailure is set when the audit entry could not be written
	AuditFailure string
}

// Succeeded reports whether the operation completed
func (r *Result) Succeeded() bool {
	return r != nil && r.Outcome == domain.OutcomeSuccess
}

// Entry builds the audit entry describing r
func (r *Result) Entry() domain.AuditEntry {
	return domain.AuditEntry{
		Target:    r.Target,
		Operation: r.Operation,
		Outcome:   r.Outcome,
		Reason:    r.Reason,
		Message:   r.Message,
		Changes:   r.Changes,
		Hints:     r.Hints,
	}
}
