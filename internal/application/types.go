package application

import (
	"strings"

	"plansync/internal/domain"
)

// Re-export domain types for use by adapters
type (
	Target           = domain.Target
	ItemRecord       = domain.ItemRecord
	PlanDocument     = domain.PlanDocument
	AttributedChange = domain.AttributedChange
	ConflictHint     = domain.ConflictHint
	AuditEntry       = domain.AuditEntry
	SyncState        = domain.SyncState
	Phase            = domain.Phase
)

// ParseTarget splits "team/release" into a Target
func ParseTarget(s string) (Target, error) {
	team, release, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || team == "" || release == "" {
		return Target{}, &ValidationError{Field: "target", Message: "expected team/release, got: " + s}
	}
	t := Target{Team: team, Release: release}
	if err := ValidateTarget(t); err != nil {
		return Target{}, err
	}
	return t, nil
}
