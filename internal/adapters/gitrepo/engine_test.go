package gitrepo

import (
	"testing"

	"plansync/internal/domain"
)

func TestIsEngineCommit(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{domain.EngineMessage("pull", domain.Target{Team: "core", Release: "r1"}), true},
		{"chore(plansync): push core/r1\n\nwithheld removals: EP-2\n", true},
		{"chore(release): bump version", false},
		{"fix: correct effort for retry budget", false},
		{"raise effort for retry budget", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := IsEngineCommit(tt.message); got != tt.want {
				t.Errorf("IsEngineCommit(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}
