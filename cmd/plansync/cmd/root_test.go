package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"plansync/internal/application"
	"plansync/internal/domain"
)

func TestReport(t *testing.T) {
	target := domain.Target{Team: "core", Release: "r1"}

	tests := []struct {
		name     string
		res      *application.Result
		err      error
		wantCode int // 0 means nil error
		wantOut  string
	}{
		{
			name:    "success",
			res:     &application.Result{Operation: domain.OpPull, Target: target, Outcome: domain.OutcomeSuccess, Message: "pulled 0 remote changes"},
			wantOut: "pull core/r1: success",
		},
		{
			name:     "conflict",
			res:      &application.Result{Operation: domain.OpPull, Target: target, Outcome: domain.OutcomeConflict, Reason: application.ReasonMergeConflict},
			wantCode: 2,
			wantOut:  "(merge-conflict)",
		},
		{
			name:     "rejected",
			res:      &application.Result{Operation: domain.OpPush, Target: target, Outcome: domain.OutcomeRejected, Reason: application.ReasonFieldConflict},
			wantCode: 1,
		},
		{
			name:     "failed with error",
			res:      &application.Result{Operation: domain.OpPush, Target: target, Outcome: domain.OutcomeFailed, Message: "boom"},
			err:      errors.New("boom"),
			wantCode: 1,
			wantOut:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := &cobra.Command{}
			c.SetOut(&out)

			err := report(c, tt.res, tt.err)
			if tt.wantCode == 0 {
				assert.NoError(t, err)
			} else {
				var exit *exitError
				if assert.ErrorAs(t, err, &exit) {
					assert.Equal(t, tt.wantCode, exit.code)
				}
			}
			assert.Contains(t, out.String(), tt.wantOut)
		})
	}
}

func TestReport_NoResult(t *testing.T) {
	err := errors.New("invalid target")
	assert.Equal(t, err, report(&cobra.Command{}, nil, err))
}
