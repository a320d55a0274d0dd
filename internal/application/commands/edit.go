package commands

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"plansync/internal/application"
	"plansync/internal/ports"
)

// EditResult describes the document opened for editing
type EditResult struct {
	Branch  string
	Path    string
	Message string
}

// EditCommand checks out a target's working branch and prepares its
// plan document for the user's editor. During a rebase the branch is
// left alone so conflicts can be edited in place.
type EditCommand struct {
	repo    ports.PlanRepository
	opener  ports.EditorOpener
	repoDir string
	Target  string
}

// NewEditCommand creates a new EditCommand
func NewEditCommand(repo ports.PlanRepository, opener ports.EditorOpener, repoDir, target string) *EditCommand {
	return &EditCommand{repo: repo, opener: opener, repoDir: repoDir, Target: target}
}

// Validate checks the target
func (c *EditCommand) Validate() error {
	_, err := parseTarget(c.Target)
	return err
}

// Prepare checks out the working branch and returns the editor command
// without running it, for callers that manage the terminal themselves.
func (c *EditCommand) Prepare(ctx context.Context) (*EditResult, *exec.Cmd, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	target, _ := parseTarget(c.Target)

	branch := c.repo.WorkingBranch(target)
	exists, err := c.repo.BranchExists(ctx, branch)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, fmt.Errorf("%s has no working branch, run init first: %w", target, application.ErrNotInitialized)
	}

	state, err := c.repo.State(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !state.RebaseInProgress && state.CurrentBranch != branch {
		if err := c.repo.Checkout(ctx, branch); err != nil {
			return nil, nil, fmt.Errorf("failed to check out %s: %w", branch, err)
		}
	}

	path := filepath.Join(c.repoDir, c.repo.DocumentPath(target))
	cmd, err := c.opener.Command(path)
	if err != nil {
		return nil, nil, err
	}
	return &EditResult{
		Branch:  branch,
		Path:    path,
		Message: fmt.Sprintf("editing %s on %s; commit your changes, then push", c.repo.DocumentPath(target), branch),
	}, cmd, nil
}

// Execute opens the document and waits for the editor to exit
func (c *EditCommand) Execute(ctx context.Context) (*EditResult, error) {
	result, cmd, err := c.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("editor failed: %w", err)
	}
	return result, nil
}
