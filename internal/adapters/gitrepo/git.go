// Package gitrepo implements ports.PlanRepository on top of a git
// working tree.
//
// Every mutation and merge goes through the git CLI so that hooks,
// config and the user's merge settings apply; reads go through go-git.
// All commands target the repository directory via "git -C <dir>".
package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"plansync/internal/clock"
)

// runner executes git commands against one directory
type runner struct {
	dir   string
	clock clock.Clock
}

// run executes git and returns stdout without trailing newlines. Stderr is captured into
// the error on failure.
func (r runner) run(ctx context.Context, args ...string) (string, error) {
	return r.runEnv(ctx, nil, args...)
}

func (r runner) runEnv(ctx context.Context, env []string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	if len(env) > 0 {
		command.Env = append(command.Environ(), env...)
	}

	if err := command.Run(); err != nil {
		return "", &CommandError{
			Args:   args,
			Dir:    r.dir,
			Stderr: strings.TrimSpace(stderr.String()),
			Stdout: strings.TrimSpace(stdout.String()),
			Err:    err,
		}
	}
	return strings.TrimRight(stdout.String(), "\r\n"), nil
}

// succeeds runs a git command used as a predicate. A non-zero exit is
// false; failure to run git at all is an error.
func (r runner) succeeds(ctx context.Context, args ...string) (bool, error) {
	_, err := r.run(ctx, args...)
	if err == nil {
		return true, nil
	}
	var cmdErr *CommandError
	var exitErr *exec.ExitError
	if errors.As(err, &cmdErr) && errors.As(cmdErr.Err, &exitErr) {
		return false, nil
	}
	return false, err
}

// rebaseInProgress checks for the state directories git keeps while a
// rebase is stopped.
func (r runner) rebaseInProgress(ctx context.Context) (bool, error) {
	for _, dir := range []string{"rebase-merge", "rebase-apply"} {
		p, err := r.run(ctx, "rev-parse", "--git-path", dir)
		if err != nil {
			return false, err
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(r.dir, p)
		}
		if _, err := os.Stat(p); err == nil {
			return true, nil
		}
	}
	return false, nil
}

// dateEnv pins author and committer dates to the injected clock, in
// that order.
func (r runner) dateEnv() []string {
	stamp := r.clock.Now().UTC().Format(time.RFC3339)
	return []string{"GIT_AUTHOR_DATE=" + stamp, "GIT_COMMITTER_DATE=" + stamp}
}

// CommandError is a failed git invocation
type CommandError struct {
	Args   []string
	Dir    string
	Stdout string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("git %s in %s: %v (stderr: %s)", strings.Join(e.Args, " "), e.Dir, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
