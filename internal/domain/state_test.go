package domain

import "testing"

func TestPhaseTransitions(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseUninitialized, PhaseTrackingReady, true},
		{PhaseTrackingReady, PhaseWorkingReady, true},
		{PhaseWorkingReady, PhasePullRunning, true},
		{PhasePullRunning, PhaseConflicted, true},
		{PhasePushRunning, PhasePushConflict, true},
		{PhaseConflicted, PhasePullRunning, false},
		{PhasePushConflict, PhasePushRunning, false},
		{PhaseUninitialized, PhasePullRunning, false},
		{PhasePullRunning, PhasePushRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPhaseNeedsResolution(t *testing.T) {
	for _, p := range []Phase{PhaseConflicted, PhasePushConflict} {
		if !p.NeedsResolution() {
			t.Errorf("%s should need resolution", p)
		}
	}
	for _, p := range []Phase{PhaseWorkingReady, PhasePullRunning, PhaseTrackingReady} {
		if p.NeedsResolution() {
			t.Errorf("%s should not need resolution", p)
		}
	}
}
