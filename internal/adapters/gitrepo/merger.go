package gitrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"plansync/internal/clock"
	"plansync/internal/ports"
)

// RebaseMerger replays a branch with "git rebase". Conflicts stop the
// rebase and are reported, never resolved. Replayed commits get the
// injected clock's time as committer date.
type RebaseMerger struct {
	git    runner
	logger zerolog.Logger
}

var _ ports.Merger = (*RebaseMerger)(nil)

// NewRebaseMerger creates a merger for the repository at dir
func NewRebaseMerger(dir string, clk clock.Clock, logger zerolog.Logger) *RebaseMerger {
	return &RebaseMerger{git: runner{dir: dir, clock: clk}, logger: logger}
}

// Replay implements ports.Merger
func (m *RebaseMerger) Replay(ctx context.Context, branch, onto string) (ports.MergeOutcome, error) {
	env := m.git.dateEnv()[1:]
	_, err := m.git.runEnv(ctx, env, "rebase", "--no-autostash", onto, branch)
	if err == nil {
		return ports.MergeOutcome{}, nil
	}

	inProgress, stateErr := m.git.rebaseInProgress(ctx)
	if stateErr != nil {
		return ports.MergeOutcome{}, fmt.Errorf("%w (state check failed: %v)", err, stateErr)
	}
	if !inProgress {
		return ports.MergeOutcome{}, err
	}

	out, pathErr := m.git.run(ctx, "diff", "--name-only", "--diff-filter=U")
	if pathErr != nil {
		return ports.MergeOutcome{}, pathErr
	}
	var paths []string
	for _, p := range strings.Split(out, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	m.logger.Debug().Str("branch", branch).Str("onto", short(onto)).Strs("paths", paths).Msg("rebase stopped")
	return ports.MergeOutcome{Conflicted: true, Paths: paths}, nil
}

// Abort implements ports.Merger
func (m *RebaseMerger) Abort(ctx context.Context) error {
	inProgress, err := m.git.rebaseInProgress(ctx)
	if err != nil || !inProgress {
		return err
	}
	_, err = m.git.run(ctx, "rebase", "--abort")
	return err
}
