package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"plansync/internal/clock"
	"plansync/internal/domain"
	"plansync/internal/ports"
)

// Options configures branch and document naming
type Options struct {
	TrackingPrefix string // default "plansync"
	WorkingPrefix  string // default "plan"
	DocumentDir    string // default "plans", relative to the repository root
}

func (o Options) withDefaults() Options {
	if o.TrackingPrefix == "" {
		o.TrackingPrefix = "plansync"
	}
	if o.WorkingPrefix == "" {
		o.WorkingPrefix = "plan"
	}
	if o.DocumentDir == "" {
		o.DocumentDir = "plans"
	}
	return o
}

// Repository implements ports.PlanRepository for the git working tree at
// dir. Mutating methods are serialized: a git working tree has one HEAD.
type Repository struct {
	git    runner
	opts   Options
	merger ports.Merger
	codec  ports.DocumentCodec
	logger zerolog.Logger

	mu sync.Mutex
}

var _ ports.PlanRepository = (*Repository)(nil)

// New creates a Repository. codec is used to map conflict markers back
// to items after a conflicted replay.
func New(dir string, opts Options, merger ports.Merger, codec ports.DocumentCodec, clk clock.Clock, logger zerolog.Logger) *Repository {
	return &Repository{
		git:    runner{dir: dir, clock: clk},
		opts:   opts.withDefaults(),
		merger: merger,
		codec:  codec,
		logger: logger,
	}
}

// Dir returns the repository directory
func (r *Repository) Dir() string {
	return r.git.dir
}

// TrackingBranch implements ports.PlanRepository
func (r *Repository) TrackingBranch(target domain.Target) string {
	return r.opts.TrackingPrefix + "/" + target.Slug()
}

// WorkingBranch implements ports.PlanRepository
func (r *Repository) WorkingBranch(target domain.Target) string {
	return r.opts.WorkingPrefix + "/" + target.Slug()
}

// DocumentPath implements ports.PlanRepository. The path is slash
// separated and relative to the repository root.
func (r *Repository) DocumentPath(target domain.Target) string {
	return path.Join(filepath.ToSlash(r.opts.DocumentDir), target.Team, target.Release+".md")
}

// State implements ports.PlanRepository
func (r *Repository) State(ctx context.Context) (ports.RepoState, error) {
	var state ports.RepoState

	branch, err := r.git.run(ctx, "symbolic-ref", "-q", "--short", "HEAD")
	if err != nil {
		state.Detached = true
	} else {
		state.CurrentBranch = branch
	}

	rebasing, err := r.git.rebaseInProgress(ctx)
	if err != nil {
		return state, fmt.Errorf("check rebase state: %w", err)
	}
	state.RebaseInProgress = rebasing

	merging, err := r.git.succeeds(ctx, "rev-parse", "-q", "--verify", "MERGE_HEAD")
	if err != nil {
		return state, err
	}
	state.MergeInProgress = merging

	out, err := r.git.run(ctx, "status", "--porcelain", "--", r.opts.DocumentDir)
	if err != nil {
		return state, err
	}
	for _, line := range strings.Split(out, "\n") {
		if len(line) > 3 {
			state.DirtyPaths = append(state.DirtyPaths, strings.TrimSpace(line[3:]))
		}
	}
	return state, nil
}

// Checkout implements ports.PlanRepository
func (r *Repository) Checkout(ctx context.Context, branch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkout(ctx, branch)
}

func (r *Repository) checkout(ctx context.Context, branch string) error {
	exists, err := r.BranchExists(ctx, branch)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.RepositoryStateError{Condition: domain.ConditionBranchMissing, Branch: branch}
	}
	if _, err := r.git.run(ctx, "checkout", "-q", branch); err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	return nil
}

// CreateTracking implements ports.PlanRepository. The branch is rooted
// at HEAD, or is an orphan when the repository has no commits yet.
func (r *Repository) CreateTracking(ctx context.Context, target domain.Target, content []byte) (ports.BranchRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch := r.TrackingBranch(target)
	exists, err := r.BranchExists(ctx, branch)
	if err != nil {
		return ports.BranchRef{}, err
	}
	if exists {
		return ports.BranchRef{}, fmt.Errorf("tracking branch %s: %w", branch, domain.ErrAlreadyExists)
	}

	born, err := r.git.succeeds(ctx, "rev-parse", "-q", "--verify", "HEAD")
	if err != nil {
		return ports.BranchRef{}, err
	}
	prev, err := r.headPosition(ctx, born, r.DocumentPath(target))
	if err != nil {
		return ports.BranchRef{}, err
	}

	args := []string{"checkout", "-q", "-b", branch}
	if !born {
		args = []string{"checkout", "-q", "--orphan", branch}
	}
	if _, err := r.git.run(ctx, args...); err != nil {
		return ports.BranchRef{}, fmt.Errorf("create %s: %w", branch, err)
	}

	hash, _, err := r.commitDocument(ctx, target, content, domain.EngineMessage("init", target), true)
	if err != nil {
		if undoErr := r.abandonBranch(context.WithoutCancel(ctx), branch, prev); undoErr != nil {
			r.logger.Error().Err(undoErr).Str("branch", branch).Msg("could not remove unfinished tracking branch")
			return ports.BranchRef{}, errors.Join(err, undoErr)
		}
		return ports.BranchRef{}, err
	}
	r.logger.Info().Str("branch", branch).Str("commit", hash).Msg("created tracking branch")
	return ports.BranchRef{Name: branch, Hash: hash}, nil
}

// position is where HEAD stood before a branch was created, with the
// document as it was in the worktree
type position struct {
	born     bool
	ref      string // symbolic ref, empty when detached
	hash     string
	docPath  string
	document []byte // nil when the document did not exist
}

func (r *Repository) headPosition(ctx context.Context, born bool, docPath string) (position, error) {
	p := position{born: born, docPath: docPath}
	if ref, err := r.git.run(ctx, "symbolic-ref", "-q", "HEAD"); err == nil {
		p.ref = ref
	}
	if born {
		hash, err := r.git.run(ctx, "rev-parse", "HEAD")
		if err != nil {
			return p, err
		}
		p.hash = hash
	}
	content, err := os.ReadFile(filepath.Join(r.git.dir, filepath.FromSlash(docPath)))
	switch {
	case err == nil:
		p.document = content
	case !errors.Is(err, os.ErrNotExist):
		return p, fmt.Errorf("read document: %w", err)
	}
	return p, nil
}

// abandonBranch undoes a branch creation whose first commit failed: the
// document is unstaged and restored, HEAD returns to prev and the new
// branch is deleted.
func (r *Repository) abandonBranch(ctx context.Context, branch string, prev position) error {
	unstage := []string{"reset", "-q", "--", prev.docPath}
	if !prev.born {
		unstage = []string{"rm", "--cached", "-q", "--ignore-unmatch", "--", prev.docPath}
	}
	if _, err := r.git.run(ctx, unstage...); err != nil {
		return fmt.Errorf("unstage %s: %w", prev.docPath, err)
	}

	abs := filepath.Join(r.git.dir, filepath.FromSlash(prev.docPath))
	if prev.document != nil {
		if err := os.WriteFile(abs, prev.document, 0o644); err != nil {
			return fmt.Errorf("restore document: %w", err)
		}
	} else if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove document: %w", err)
	}

	if !prev.born {
		// An orphan branch has no ref until its first commit
		if prev.ref == "" {
			return nil
		}
		_, err := r.git.run(ctx, "symbolic-ref", "HEAD", prev.ref)
		return err
	}

	back := strings.TrimPrefix(prev.ref, "refs/heads/")
	if back == "" {
		back = prev.hash
	}
	if _, err := r.git.run(ctx, "checkout", "-q", back); err != nil {
		return fmt.Errorf("return to %s: %w", back, err)
	}
	if _, err := r.git.run(ctx, "branch", "-q", "-D", branch); err != nil {
		return fmt.Errorf("delete %s: %w", branch, err)
	}
	r.logger.Warn().Str("branch", branch).Str("head", back).Msg("removed unfinished branch")
	return nil
}

// CreateWorking implements ports.PlanRepository and leaves HEAD on the
// new working branch.
func (r *Repository) CreateWorking(ctx context.Context, target domain.Target, from ports.BranchRef) (ports.BranchRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch := r.WorkingBranch(target)
	exists, err := r.BranchExists(ctx, branch)
	if err != nil {
		return ports.BranchRef{}, err
	}
	if exists {
		return ports.BranchRef{}, fmt.Errorf("working branch %s: %w", branch, domain.ErrAlreadyExists)
	}

	start := from.Hash
	if start == "" {
		start = from.Name
	}
	if _, err := r.git.run(ctx, "checkout", "-q", "-b", branch, start); err != nil {
		return ports.BranchRef{}, fmt.Errorf("create %s: %w", branch, err)
	}
	hash, err := r.Head(ctx, branch)
	if err != nil {
		return ports.BranchRef{}, err
	}
	return ports.BranchRef{Name: branch, Hash: hash}, nil
}

// UpdateTracking implements ports.PlanRepository. HEAD must be the
// tracking branch. Unchanged content returns the current tip.
func (r *Repository) UpdateTracking(ctx context.Context, target domain.Target, content []byte) (ports.CommitRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch := r.TrackingBranch(target)
	if err := r.requireHead(ctx, branch); err != nil {
		return ports.CommitRef{}, err
	}
	hash, _, err := r.commitDocument(ctx, target, content, domain.EngineMessage("pull", target), false)
	if err != nil {
		return ports.CommitRef{}, err
	}
	return ports.CommitRef{Hash: hash}, nil
}

// ReplayOntoWorking implements ports.PlanRepository. A conflicted replay
// is left stopped for the user to resolve; its regions are mapped back
// to items.
func (r *Repository) ReplayOntoWorking(ctx context.Context, target domain.Target, tracking ports.CommitRef) (ports.MergeOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch := r.WorkingBranch(target)
	exists, err := r.BranchExists(ctx, branch)
	if err != nil {
		return ports.MergeOutcome{}, err
	}
	if !exists {
		return ports.MergeOutcome{}, &domain.RepositoryStateError{Condition: domain.ConditionBranchMissing, Branch: branch}
	}

	outcome, err := r.merger.Replay(ctx, branch, tracking.Hash)
	if err != nil {
		return ports.MergeOutcome{}, fmt.Errorf("replay %s onto %s: %w", branch, short(tracking.Hash), err)
	}
	if outcome.Clean() {
		return outcome, nil
	}

	docPath := r.DocumentPath(target)
	content, err := os.ReadFile(filepath.Join(r.git.dir, filepath.FromSlash(docPath)))
	if err == nil {
		outcome.Regions = r.codec.LocateConflicts(content)
	} else if !errors.Is(err, os.ErrNotExist) {
		return outcome, fmt.Errorf("read conflicted document: %w", err)
	}
	r.logger.Warn().
		Str("branch", branch).
		Strs("paths", outcome.Paths).
		Int("regions", len(outcome.Regions)).
		Msg("replay stopped on conflicts")
	return outcome, nil
}

// ResetWorking implements ports.PlanRepository. It checks out the
// working branch and moves it to ref.
func (r *Repository) ResetWorking(ctx context.Context, target domain.Target, to ports.CommitRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkout(ctx, r.WorkingBranch(target)); err != nil {
		return err
	}
	if _, err := r.git.run(ctx, "reset", "-q", "--hard", to.Hash); err != nil {
		return fmt.Errorf("reset working to %s: %w", short(to.Hash), err)
	}
	return nil
}

// CommitWorking implements ports.PlanRepository. Unchanged content
// returns the current tip without committing.
func (r *Repository) CommitWorking(ctx context.Context, target domain.Target, content []byte, message string) (ports.CommitRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkout(ctx, r.WorkingBranch(target)); err != nil {
		return ports.CommitRef{}, err
	}
	hash, _, err := r.commitDocument(ctx, target, content, message, false)
	if err != nil {
		return ports.CommitRef{}, err
	}
	return ports.CommitRef{Hash: hash}, nil
}

func (r *Repository) requireHead(ctx context.Context, branch string) error {
	current, err := r.git.run(ctx, "symbolic-ref", "-q", "--short", "HEAD")
	if err != nil || current != branch {
		detail := "HEAD is detached"
		if current != "" {
			detail = "HEAD is " + current
		}
		return &domain.RepositoryStateError{Condition: domain.ConditionDetachedHead, Branch: branch, Detail: detail}
	}
	return nil
}

// commitDocument writes content to the document path and commits it on
// the current branch. It reports whether a commit was created; without
// allowEmpty an unchanged document returns the current HEAD.
func (r *Repository) commitDocument(ctx context.Context, target domain.Target, content []byte, message string, allowEmpty bool) (string, bool, error) {
	docPath := r.DocumentPath(target)
	abs := filepath.Join(r.git.dir, filepath.FromSlash(docPath))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", false, fmt.Errorf("create document directory: %w", err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		return "", false, fmt.Errorf("write document: %w", err)
	}
	if _, err := r.git.run(ctx, "add", "--", docPath); err != nil {
		return "", false, err
	}

	unchanged, err := r.git.succeeds(ctx, "diff", "--cached", "--quiet", "--", docPath)
	if err != nil {
		return "", false, err
	}
	if unchanged && !allowEmpty {
		head, err := r.git.run(ctx, "rev-parse", "HEAD")
		if err != nil {
			return "", false, err
		}
		return head, false, nil
	}

	args := []string{"commit", "-q", "--no-verify", "-m", message}
	if unchanged {
		args = append(args, "--allow-empty")
	} else {
		args = append(args, "--", docPath)
	}
	if _, err := r.git.runEnv(ctx, r.git.dateEnv(), args...); err != nil {
		return "", false, fmt.Errorf("commit %s: %w", docPath, err)
	}
	head, err := r.git.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", false, err
	}
	return head, true, nil
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
