package gitrepo

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plansync/internal/adapters/markdown"
	"plansync/internal/clock"
	"plansync/internal/domain"
	"plansync/internal/ports"
)

var (
	target  = domain.Target{Team: "core", Release: "r1"}
	synced  = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctxTest = context.Background()
)

type testRepo struct {
	*Repository
	dir   string
	clock *clock.FakeClock
	codec *markdown.Codec
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	gitCmd(t, dir, nil, "init", "-q")
	gitCmd(t, dir, nil, "symbolic-ref", "HEAD", "refs/heads/main")
	gitCmd(t, dir, nil, "config", "user.name", "Test User")
	gitCmd(t, dir, nil, "config", "user.email", "test@example.com")
	gitCmd(t, dir, nil, "config", "commit.gpgsign", "false")

	clk := clock.Fake(synced)
	codec := markdown.New()
	merger := NewRebaseMerger(dir, clk, zerolog.Nop())
	return &testRepo{
		Repository: New(dir, Options{}, merger, codec, clk, zerolog.Nop()),
		dir:        dir,
		clock:      clk,
		codec:      codec,
	}
}

func gitCmd(t *testing.T, dir string, env []string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

// userCommit writes content to the target document and commits it as a
// human at the given time.
func (r *testRepo) userCommit(t *testing.T, content []byte, message string, at time.Time) string {
	t.Helper()
	abs := filepath.Join(r.dir, filepath.FromSlash(r.DocumentPath(target)))
	require.NoError(t, os.WriteFile(abs, content, 0o644))
	stamp := "GIT_AUTHOR_DATE=" + at.Format(time.RFC3339)
	gitCmd(t, r.dir, []string{stamp, "GIT_COMMITTER_DATE=" + at.Format(time.RFC3339)}, "commit", "-q", "-am", message)
	return gitCmd(t, r.dir, nil, "rev-parse", "HEAD")
}

func (r *testRepo) render(t *testing.T, items ...domain.ItemRecord) []byte {
	t.Helper()
	doc := domain.NewDocument(domain.Snapshot{Target: target, ReleaseName: "Release 1", Items: items}, synced)
	content, err := r.codec.Render(doc)
	require.NoError(t, err)
	return content
}

func objective(effort int) domain.ItemRecord {
	return domain.ItemRecord{ID: "OBJ-1", Kind: domain.KindObjective, Team: "core", Release: "r1", Name: "Reliability", Status: "active", Effort: domain.Effort(effort)}
}

func epic(effort int, owner string) domain.ItemRecord {
	return domain.ItemRecord{ID: "EP-1", Kind: domain.KindEpic, Team: "core", Release: "r1", Name: "Retry budget", Effort: domain.Effort(effort), Owner: owner, ParentID: "OBJ-1"}
}

func (r *testRepo) initPair(t *testing.T, content []byte) (ports.BranchRef, ports.BranchRef) {
	t.Helper()
	tracking, err := r.CreateTracking(ctxTest, target, content)
	require.NoError(t, err)
	working, err := r.CreateWorking(ctxTest, target, tracking)
	require.NoError(t, err)
	return tracking, working
}

func TestRepository_Naming(t *testing.T) {
	repo := New("/tmp/x", Options{TrackingPrefix: "sync", DocumentDir: "docs/plans"}, nil, nil, clock.Real(), zerolog.Nop())

	assert.Equal(t, "sync/core/r1", repo.TrackingBranch(target))
	assert.Equal(t, "plan/core/r1", repo.WorkingBranch(target))
	assert.Equal(t, "docs/plans/core/r1.md", repo.DocumentPath(target))
}

func TestRepository_CreateTrackingInEmptyRepository(t *testing.T) {
	r := newTestRepo(t)
	content := r.render(t, objective(13))

	tracking, working := r.initPair(t, content)

	assert.Equal(t, "plansync/core/r1", tracking.Name)
	assert.NotEmpty(t, tracking.Hash)
	assert.Equal(t, tracking.Hash, working.Hash)

	stored, err := r.ReadDocument(ctxTest, target, tracking.Name)
	require.NoError(t, err)
	assert.Equal(t, string(content), string(stored))

	state, err := r.State(ctxTest)
	require.NoError(t, err)
	assert.Equal(t, "plan/core/r1", state.CurrentBranch)
	assert.False(t, state.RebaseInProgress)
	assert.Empty(t, state.DirtyPaths)

	message := gitCmd(t, r.dir, nil, "log", "-1", "--format=%s", tracking.Name)
	assert.True(t, IsEngineCommit(message), "init commit %q should be an engine commit", message)
}

func TestRepository_CreateIsNotRepeatable(t *testing.T) {
	r := newTestRepo(t)
	content := r.render(t, objective(13))
	tracking, _ := r.initPair(t, content)

	_, err := r.CreateTracking(ctxTest, target, r.render(t, objective(1)))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = r.CreateWorking(ctxTest, target, tracking)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	head, err := r.Head(ctxTest, tracking.Name)
	require.NoError(t, err)
	assert.Equal(t, tracking.Hash, head, "failed create must not move the tracking branch")
}

func TestRepository_CreateTrackingRootedAtHead(t *testing.T) {
	r := newTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.dir, "README.md"), []byte("hello\n"), 0o644))
	gitCmd(t, r.dir, nil, "add", "README.md")
	gitCmd(t, r.dir, nil, "commit", "-q", "-m", "initial")
	mainHead := gitCmd(t, r.dir, nil, "rev-parse", "HEAD")

	tracking, _ := r.initPair(t, r.render(t, objective(13)))

	parent := gitCmd(t, r.dir, nil, "rev-parse", tracking.Hash+"^")
	assert.Equal(t, mainHead, parent)
}

func TestRepository_UpdateTrackingRequiresTrackingHead(t *testing.T) {
	r := newTestRepo(t)
	tracking, _ := r.initPair(t, r.render(t, objective(13)))

	_, err := r.UpdateTracking(ctxTest, target, r.render(t, objective(21)))
	assert.ErrorIs(t, err, domain.ErrDetachedState)

	var stateErr *domain.RepositoryStateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, domain.ConditionDetachedHead, stateErr.Condition)

	require.NoError(t, r.Checkout(ctxTest, tracking.Name))
	updated, err := r.UpdateTracking(ctxTest, target, r.render(t, objective(21)))
	require.NoError(t, err)
	assert.NotEqual(t, tracking.Hash, updated.Hash)

	same, err := r.UpdateTracking(ctxTest, target, r.render(t, objective(21)))
	require.NoError(t, err)
	assert.Equal(t, updated.Hash, same.Hash, "unchanged content must not create a commit")
}

func TestRepository_CheckoutMissingBranch(t *testing.T) {
	r := newTestRepo(t)

	err := r.Checkout(ctxTest, "plan/none/r9")
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}

func TestRepository_WorkingCommits(t *testing.T) {
	r := newTestRepo(t)
	r.initPair(t, r.render(t, objective(13), epic(20, "")))

	first := synced.Add(time.Hour)
	r.userCommit(t, r.render(t, objective(13), epic(34, "")), "raise retry budget", first)
	_, err := r.CommitWorking(ctxTest, target, r.render(t, objective(13), epic(34, "bob")), domain.EngineMessage("push", target))
	require.NoError(t, err)
	second := synced.Add(2 * time.Hour)
	r.userCommit(t, r.render(t, objective(8), epic(34, "bob")), "shrink objective", second)

	commits, err := r.WorkingCommits(ctxTest, target)
	require.NoError(t, err)
	require.Len(t, commits, 3)

	assert.Equal(t, "raise retry budget", strings.TrimSpace(commits[0].Message))
	assert.False(t, commits[0].Engine)
	assert.True(t, commits[0].AuthoredAt.Equal(first))
	assert.Contains(t, string(commits[0].Before), "- effort: 20")
	assert.Contains(t, string(commits[0].After), "- effort: 34")

	assert.True(t, commits[1].Engine)
	assert.True(t, commits[1].CommittedAt.Equal(synced), "engine commits use the injected clock")

	assert.False(t, commits[2].Engine)
	assert.True(t, commits[2].TouchedAt().Equal(second))
}

func TestRepository_WorkingCommitsEmptyAfterInit(t *testing.T) {
	r := newTestRepo(t)
	r.initPair(t, r.render(t, objective(13)))

	commits, err := r.WorkingCommits(ctxTest, target)
	require.NoError(t, err)
	assert.Empty(t, commits)
}

func TestRepository_Diff(t *testing.T) {
	r := newTestRepo(t)
	tracking, working := r.initPair(t, r.render(t, objective(13), epic(20, "")))

	diff, err := r.Diff(ctxTest, target, tracking.Name, working.Name)
	require.NoError(t, err)
	assert.True(t, diff.IsEmpty())
	assert.Empty(t, diff.Patch)

	r.userCommit(t, r.render(t, objective(13), epic(34, "")), "raise retry budget", synced.Add(time.Hour))

	diff, err = r.Diff(ctxTest, target, tracking.Name, working.Name)
	require.NoError(t, err)
	assert.False(t, diff.IsEmpty())
	assert.Contains(t, diff.Patch, "-- effort: 20")
	assert.Contains(t, diff.Patch, "+- effort: 34")
	assert.Equal(t, tracking.Hash, diff.BaseRef)
}

func TestRepository_ReplayClean(t *testing.T) {
	r := newTestRepo(t)
	tracking, _ := r.initPair(t, r.render(t, objective(13), epic(20, "")))

	r.userCommit(t, r.render(t, objective(13), epic(34, "")), "raise retry budget", synced.Add(time.Hour))

	require.NoError(t, r.Checkout(ctxTest, tracking.Name))
	updated, err := r.UpdateTracking(ctxTest, target, r.render(t, objective(13), epic(20, "carol")))
	require.NoError(t, err)

	outcome, err := r.ReplayOntoWorking(ctxTest, target, updated)
	require.NoError(t, err)
	assert.True(t, outcome.Clean())

	content, err := r.ReadDocument(ctxTest, target, r.WorkingBranch(target))
	require.NoError(t, err)
	doc, err := r.codec.Parse(content)
	require.NoError(t, err)
	ep := doc.Index()["EP-1"]
	assert.Equal(t, "34", domain.FormatEffort(ep.Effort), "local edit kept")
	assert.Equal(t, "carol", ep.Owner, "remote edit applied")

	state, err := r.State(ctxTest)
	require.NoError(t, err)
	assert.Equal(t, r.WorkingBranch(target), state.CurrentBranch)
}

func TestRepository_ReplayConflict(t *testing.T) {
	r := newTestRepo(t)
	tracking, _ := r.initPair(t, r.render(t, objective(13), epic(20, "")))

	r.userCommit(t, r.render(t, objective(13), epic(34, "")), "raise retry budget", synced.Add(time.Hour))

	require.NoError(t, r.Checkout(ctxTest, tracking.Name))
	updated, err := r.UpdateTracking(ctxTest, target, r.render(t, objective(13), epic(25, "")))
	require.NoError(t, err)

	outcome, err := r.ReplayOntoWorking(ctxTest, target, updated)
	require.NoError(t, err, "a conflict is an outcome, not an error")
	require.True(t, outcome.Conflicted)
	assert.Equal(t, []string{r.DocumentPath(target)}, outcome.Paths)
	require.Len(t, outcome.Regions, 1)
	assert.Equal(t, "EP-1", outcome.Regions[0].ItemID)
	assert.Equal(t, []domain.Field{domain.FieldEffort}, outcome.Regions[0].Fields)

	state, err := r.State(ctxTest)
	require.NoError(t, err)
	assert.True(t, state.RebaseInProgress)
	assert.True(t, state.Detached)

	require.NoError(t, r.merger.Abort(ctxTest))
	state, err = r.State(ctxTest)
	require.NoError(t, err)
	assert.False(t, state.RebaseInProgress)
	assert.Equal(t, r.WorkingBranch(target), state.CurrentBranch)
}

func TestRepository_ResetWorking(t *testing.T) {
	r := newTestRepo(t)
	tracking, _ := r.initPair(t, r.render(t, objective(13)))
	r.userCommit(t, r.render(t, objective(21)), "bump", synced.Add(time.Hour))

	require.NoError(t, r.ResetWorking(ctxTest, target, ports.CommitRef{Hash: tracking.Hash}))

	head, err := r.Head(ctxTest, r.WorkingBranch(target))
	require.NoError(t, err)
	assert.Equal(t, tracking.Hash, head)
}

func TestRepository_StateReportsDirtyDocument(t *testing.T) {
	r := newTestRepo(t)
	r.initPair(t, r.render(t, objective(13)))

	abs := filepath.Join(r.dir, filepath.FromSlash(r.DocumentPath(target)))
	require.NoError(t, os.WriteFile(abs, r.render(t, objective(99)), 0o644))

	state, err := r.State(ctxTest)
	require.NoError(t, err)
	assert.Equal(t, []string{r.DocumentPath(target)}, state.DirtyPaths)

	working, err := r.ReadDocument(ctxTest, target, "")
	require.NoError(t, err)
	assert.Contains(t, string(working), "- effort: 99")
}

// withoutIdentity makes every commit in dir fail for want of an email
func withoutIdentity(t *testing.T, dir string) {
	t.Helper()
	empty := filepath.Join(t.TempDir(), "gitconfig")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	t.Setenv("GIT_CONFIG_GLOBAL", empty)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	for _, key := range []string{"GIT_AUTHOR_EMAIL", "GIT_COMMITTER_EMAIL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	gitCmd(t, dir, nil, "config", "user.useConfigOnly", "true")
	gitCmd(t, dir, nil, "config", "--unset", "user.email")
}

func TestRepository_FailedCreateTrackingLeavesNothingBehind(t *testing.T) {
	t.Run("rooted at head", func(t *testing.T) {
		r := newTestRepo(t)
		require.NoError(t, os.WriteFile(filepath.Join(r.dir, "README.md"), []byte("hello\n"), 0o644))
		gitCmd(t, r.dir, nil, "add", "README.md")
		gitCmd(t, r.dir, nil, "commit", "-q", "-m", "initial")
		mainHead := gitCmd(t, r.dir, nil, "rev-parse", "HEAD")
		withoutIdentity(t, r.dir)

		_, err := r.CreateTracking(ctxTest, target, r.render(t, objective(13)))
		require.Error(t, err)

		exists, err := r.BranchExists(ctxTest, r.TrackingBranch(target))
		require.NoError(t, err)
		assert.False(t, exists, "tracking branch left behind")
		assert.Equal(t, "main", gitCmd(t, r.dir, nil, "symbolic-ref", "--short", "HEAD"))
		assert.Equal(t, mainHead, gitCmd(t, r.dir, nil, "rev-parse", "HEAD"))
		assert.Empty(t, gitCmd(t, r.dir, nil, "status", "--porcelain"))
		assert.NoFileExists(t, filepath.Join(r.dir, filepath.FromSlash(r.DocumentPath(target))))

		gitCmd(t, r.dir, nil, "config", "user.email", "test@example.com")
		tracking, _ := r.initPair(t, r.render(t, objective(13)))
		assert.Equal(t, mainHead, gitCmd(t, r.dir, nil, "rev-parse", tracking.Hash+"^"))
	})

	t.Run("orphan", func(t *testing.T) {
		r := newTestRepo(t)
		withoutIdentity(t, r.dir)

		_, err := r.CreateTracking(ctxTest, target, r.render(t, objective(13)))
		require.Error(t, err)

		assert.Equal(t, "refs/heads/main", gitCmd(t, r.dir, nil, "symbolic-ref", "HEAD"))
		assert.Empty(t, gitCmd(t, r.dir, nil, "status", "--porcelain"))
		assert.NoFileExists(t, filepath.Join(r.dir, filepath.FromSlash(r.DocumentPath(target))))

		gitCmd(t, r.dir, nil, "config", "user.email", "test@example.com")
		tracking, _ := r.initPair(t, r.render(t, objective(13)))
		stored, err := r.ReadDocument(ctxTest, target, tracking.Name)
		require.NoError(t, err)
		assert.NotEmpty(t, stored)
	})
}
