package orchestrator

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
	"golang.org/x/sync/errgroup"

	"plansync/internal/adapters/gitrepo"
	"plansync/internal/adapters/markdown"
	"plansync/internal/adapters/memory"
	"plansync/internal/application"
	"plansync/internal/clock"
	"plansync/internal/domain"
	"plansync/internal/remote"
)

var (
	ctxTest = context.Background()
	target  = domain.Target{Team: "core", Release: "r1"}
	start   = time.Date(2026, 3, 1, 9, 0, 0, 250_000_000, time.UTC)
)

type fixture struct {
	dir     string
	clock   *clock.FakeClock
	service *memory.Service
	gateway *remote.Gateway
	repo    *gitrepo.Repository
	codec   *markdown.Codec
	audit   *memory.AuditLog
	states  *memory.StateStore
	orch    *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	f := &fixture{dir: t.TempDir(), clock: clock.Fake(start), codec: markdown.New()}
	f.git(t, "init", "-q")
	f.git(t, "symbolic-ref", "HEAD", "refs/heads/main")
	f.git(t, "config", "user.name", "Test User")
	f.git(t, "config", "user.email", "test@example.com")
	f.git(t, "config", "commit.gpgsign", "false")
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "README.md"), []byte("# plans\n"), 0o644))
	f.git(t, "add", "README.md")
	f.git(t, "commit", "-q", "-m", "initial commit")

	logger := zerolog.Nop()
	f.service = memory.New(f.clock)
	f.service.AddRelease(target, "Release 1")
	f.service.Put(domain.ItemRecord{ID: "OBJ-1", Kind: domain.KindObjective, Team: "core", Release: "r1", Name: "Reliability", Status: "active"})
	f.service.Put(domain.ItemRecord{ID: "EP-1", Kind: domain.KindEpic, Team: "core", Release: "r1", Name: "Retry budget", Status: "planned", Effort: domain.Effort(20), ParentID: "OBJ-1"})
	f.service.Put(domain.ItemRecord{ID: "EP-2", Kind: domain.KindEpic, Team: "core", Release: "r1", Name: "Legacy cleanup", Effort: domain.Effort(3), ParentID: "OBJ-1"})

	policy := remote.Policy{MaxRetries: 2, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2, PerCallTimeout: time.Second}
	f.gateway = remote.NewGateway(f.service, remote.NewCaller(policy, f.clock, logger), remote.NewCache(time.Hour, f.clock), f.clock, logger)
	f.repo = gitrepo.New(f.dir, gitrepo.Options{}, gitrepo.NewRebaseMerger(f.dir, f.clock, logger), f.codec, f.clock, logger)
	f.audit = memory.NewAuditLog()
	f.states = memory.NewStateStore()
	f.orch = New(Deps{
		Repo:   f.repo,
		Remote: f.gateway,
		Codec:  f.codec,
		Audit:  f.audit,
		States: f.states,
		Clock:  f.clock,
		Logger: logger,
	})
	return f
}

// git runs git in the fixture repository with dates from the fake clock
func (f *fixture) git(t *testing.T, args ...string) string {
	t.Helper()
	stamp := f.clock.Now().UTC().Format(time.RFC3339)
	cmd := exec.Command("git", append([]string{"-C", f.dir}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_AUTHOR_DATE="+stamp, "GIT_COMMITTER_DATE="+stamp, "GIT_EDITOR=true")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

func (f *fixture) init(t *testing.T) {
	t.Helper()
	res, err := f.orch.Init(ctxTest, target)
	require.NoError(t, err)
	require.True(t, res.Succeeded())
}

func (f *fixture) docPath() string {
	return filepath.Join(f.dir, filepath.FromSlash(f.repo.DocumentPath(target)))
}

func (f *fixture) document(t *testing.T, branch string) domain.PlanDocument {
	t.Helper()
	content, err := f.repo.ReadDocument(ctxTest, target, branch)
	require.NoError(t, err)
	doc, err := f.codec.Parse(content)
	require.NoError(t, err)
	return doc
}

func (f *fixture) write(t *testing.T, doc domain.PlanDocument) {
	t.Helper()
	content, err := f.codec.Render(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.docPath(), content, 0o644))
}

// edit commits a change to the working document as a human, one minute
// after the previous clock reading.
func (f *fixture) edit(t *testing.T, message string, fn func(doc *domain.PlanDocument)) {
	t.Helper()
	f.clock.Advance(time.Minute)
	working := f.repo.WorkingBranch(target)
	doc := f.document(t, working)
	fn(&doc)
	f.git(t, "checkout", "-q", working)
	f.write(t, doc)
	f.git(t, "add", f.repo.DocumentPath(target))
	f.git(t, "commit", "-q", "-m", message)
}

// remoteEdit changes an item as another client of the service would
func (f *fixture) remoteEdit(t *testing.T, id string, fn func(r *domain.ItemRecord)) {
	t.Helper()
	f.clock.Advance(time.Minute)
	item, ok := f.service.Get(id)
	require.True(t, ok, "remote item %s", id)
	fn(&item)
	f.service.Put(item)
}

func (f *fixture) head(t *testing.T, branch string) string {
	t.Helper()
	hash, err := f.repo.Head(ctxTest, branch)
	require.NoError(t, err)
	return hash
}

func (f *fixture) phase(t *testing.T) domain.Phase {
	t.Helper()
	st, err := f.states.Load(ctxTest, target)
	require.NoError(t, err)
	require.NotNil(t, st)
	return st.Phase
}

func (f *fixture) mutations() int {
	return f.service.CountCalls("create") + f.service.CountCalls("update") + f.service.CountCalls("delete")
}

func setEffort(id string, n int) func(doc *domain.PlanDocument) {
	return func(doc *domain.PlanDocument) {
		for i := range doc.Items {
			if doc.Items[i].ID == id {
				doc.Items[i].Effort = domain.Effort(n)
			}
		}
	}
}

func itemByID(t *testing.T, doc domain.PlanDocument, id string) domain.ItemRecord {
	t.Helper()
	item, ok := doc.Index()[id]
	require.True(t, ok, "item %s not in document", id)
	return item
}

func TestInit_CreatesBranchesFromFreshSnapshot(t *testing.T) {
	f := newFixture(t)

	res, err := f.orch.Init(ctxTest, target)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.ElementsMatch(t, []string{"OBJ-1", "EP-1", "EP-2"}, res.AffectedItems)
	assert.NotEmpty(t, res.AuditID)
	assert.Equal(t, domain.PhaseWorkingReady, f.phase(t))

	doc := f.document(t, f.repo.WorkingBranch(target))
	assert.Len(t, doc.Items, 3)
	assert.Equal(t, "Release 1", doc.Meta.ReleaseName)
	assert.Equal(t, start.Truncate(time.Second), doc.Meta.SyncedAt)
	assert.Equal(t, f.head(t, f.repo.TrackingBranch(target)), f.head(t, f.repo.WorkingBranch(target)))

	entries, err := f.orch.History(ctxTest, target, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OpInit, entries[0].Operation)
	assert.Equal(t, int64(1), entries[0].Seq)
}

func TestInit_IsNotRepeatable(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	tracking := f.head(t, f.repo.TrackingBranch(target))
	f.remoteEdit(t, "EP-1", func(r *domain.ItemRecord) { r.Effort = domain.Effort(99) })

	res, err := f.orch.Init(ctxTest, target)

	require.ErrorIs(t, err, application.ErrAlreadyExists)
	assert.Equal(t, domain.OutcomeRejected, res.Outcome)
	assert.Equal(t, application.ReasonAlreadyExists, res.Reason)
	assert.Equal(t, tracking, f.head(t, f.repo.TrackingBranch(target)))
	assert.Equal(t, "20", itemByID(t, f.document(t, f.repo.TrackingBranch(target)), "EP-1").Value(domain.FieldEffort))
}

func TestInit_CompletesMissingWorkingBranch(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.git(t, "checkout", "-q", f.repo.TrackingBranch(target))
	f.git(t, "branch", "-q", "-D", f.repo.WorkingBranch(target))

	res, err := f.orch.Init(ctxTest, target)
	require.NoError(t, err)

	assert.Contains(t, res.Message, "working branch")
	exists, err := f.repo.BranchExists(ctxTest, f.repo.WorkingBranch(target))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInit_RefusesTrackingWithoutDocument(t *testing.T) {
	f := newFixture(t)
	f.git(t, "branch", f.repo.TrackingBranch(target), "main")

	res, err := f.orch.Init(ctxTest, target)

	var stateErr *application.RepositoryStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, domain.ConditionBrokenTracking, stateErr.Condition)
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.Equal(t, application.ReasonBrokenTracking, res.Reason)

	exists, err := f.repo.BranchExists(ctxTest, f.repo.WorkingBranch(target))
	require.NoError(t, err)
	assert.False(t, exists, "working branch built on an empty tracking branch")
}

// brokenAudit refuses every entry
type brokenAudit struct {
	*memory.AuditLog
}

func (brokenAudit) Append(context.Context, domain.AuditEntry) (domain.AuditEntry, error) {
	return domain.AuditEntry{}, errors.New("database is locked")
}

func TestOperations_ReportMissingAuditEntry(t *testing.T) {
	f := newFixture(t)
	f.orch = New(Deps{
		Repo:   f.repo,
		Remote: f.gateway,
		Codec:  f.codec,
		Audit:  brokenAudit{memory.NewAuditLog()},
		States: f.states,
		Clock:  f.clock,
		Logger: zerolog.Nop(),
	})

	res, err := f.orch.Init(ctxTest, target)
	require.NoError(t, err)

	assert.True(t, res.Succeeded())
	assert.Empty(t, res.AuditID)
	assert.Equal(t, "database is locked", res.AuditFailure)
	assert.Contains(t, res.Message, "audit entry not recorded")
}

func TestInit_RejectsInvalidTarget(t *testing.T) {
	f := newFixture(t)

	res, err := f.orch.Init(ctxTest, domain.Target{Team: "Core Team", Release: "r1"})

	var validationErr *application.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, application.ReasonValidation, res.Reason)
	assert.Zero(t, f.service.CountCalls("list"))
}

func TestPull_BypassesCache(t *testing.T) {
	f := newFixture(t)
	f.init(t)

	// Init left the cache warm with effort 20.
	epics := domain.NewQuery(domain.KindEpic, target)
	cached, ok := f.gateway.Cache().Get(epics)
	require.True(t, ok)
	require.Equal(t, "20", cached[0].Value(domain.FieldEffort))

	f.remoteEdit(t, "EP-1", func(r *domain.ItemRecord) { r.Effort = domain.Effort(25) })
	lists := f.service.CountCalls("list")

	res, err := f.orch.Pull(ctxTest, target)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.Equal(t, lists+2, f.service.CountCalls("list"))
	require.Len(t, res.Changes, 1)
	assert.Equal(t, domain.SourceRemoteUpdate, res.Changes[0].Source)
	assert.Equal(t, "25", res.Changes[0].New)
	assert.Equal(t, "25", itemByID(t, f.document(t, f.repo.WorkingBranch(target)), "EP-1").Value(domain.FieldEffort))

	refreshed, ok := f.gateway.Cache().Get(epics)
	require.True(t, ok)
	assert.Equal(t, "25", refreshed[0].Value(domain.FieldEffort))
}

func TestPull_KeepsLocalEditsOnOtherFields(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.edit(t, "raise retry budget effort", setEffort("EP-1", 34))
	f.remoteEdit(t, "EP-1", func(r *domain.ItemRecord) { r.Owner = "dana" })

	res, err := f.orch.Pull(ctxTest, target)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)

	item := itemByID(t, f.document(t, f.repo.WorkingBranch(target)), "EP-1")
	assert.Equal(t, "34", item.Value(domain.FieldEffort))
	assert.Equal(t, "dana", item.Owner)
	assert.Equal(t, domain.PhaseWorkingReady, f.phase(t))
}

func TestPull_ConflictRequiresResolution(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.edit(t, "raise retry budget effort", setEffort("EP-1", 34))
	f.remoteEdit(t, "EP-1", func(r *domain.ItemRecord) { r.Effort = domain.Effort(25) })

	res, err := f.orch.Pull(ctxTest, target)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeConflict, res.Outcome)
	assert.Equal(t, application.ReasonMergeConflict, res.Reason)
	assert.Contains(t, res.AffectedItems, "EP-1")
	require.NotEmpty(t, res.Hints)
	assert.Equal(t, "EP-1", res.Hints[0].ItemID)
	assert.Equal(t, domain.FieldEffort, res.Hints[0].Field)
	assert.Equal(t, domain.PhaseConflicted, f.phase(t))

	_, err = f.orch.Pull(ctxTest, target)
	assert.ErrorIs(t, err, application.ErrResolutionRequired)
	_, err = f.orch.Push(ctxTest, target, PushOptions{})
	assert.ErrorIs(t, err, application.ErrResolutionRequired)

	// Keep the local value and finish the rebase.
	resolved := f.document(t, f.repo.TrackingBranch(target))
	setEffort("EP-1", 34)(&resolved)
	f.write(t, resolved)
	f.clock.Advance(time.Minute)
	f.git(t, "add", f.repo.DocumentPath(target))
	f.git(t, "rebase", "--continue")

	res, err = f.orch.Resolve(ctxTest, target)
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, domain.PhaseWorkingReady, f.phase(t))

	res, err = f.orch.Push(ctxTest, target, PushOptions{})
	require.NoError(t, err)
	require.True(t, res.Succeeded(), res.Message)
	item, _ := f.service.Get("EP-1")
	assert.Equal(t, "34", item.Value(domain.FieldEffort))
}

func TestPush_AppliesUserEdits(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.edit(t, "rework reliability plan", func(doc *domain.PlanDocument) {
		setEffort("EP-1", 34)(doc)
		doc.Items = append(doc.Items,
			domain.ItemRecord{Kind: domain.KindObjective, Team: "core", Release: "r1", Name: "Growth"},
			domain.ItemRecord{Kind: domain.KindEpic, Team: "core", Release: "r1", Name: "Referral program", ParentID: "new:objective:Growth"},
		)
	})

	res, err := f.orch.Push(ctxTest, target, PushOptions{})
	require.NoError(t, err)
	require.True(t, res.Succeeded(), res.Message)

	item, _ := f.service.Get("EP-1")
	assert.Equal(t, "34", item.Value(domain.FieldEffort))
	growth, ok := f.service.Get("OBJ-2")
	require.True(t, ok)
	assert.Equal(t, "Growth", growth.Name)
	referral, ok := f.service.Get("EP-3")
	require.True(t, ok)
	assert.Equal(t, "OBJ-2", referral.ParentID)

	sources := map[domain.ChangeSource]int{}
	for _, c := range res.Changes {
		sources[c.Source]++
	}
	assert.Equal(t, map[domain.ChangeSource]int{domain.SourceUserEdit: 1, domain.SourceNewItem: 2}, sources)

	// Working was reset onto the refreshed tracking branch.
	tracking := f.repo.TrackingBranch(target)
	working := f.repo.WorkingBranch(target)
	assert.Equal(t, f.head(t, tracking), f.head(t, working))
	doc := f.document(t, working)
	assert.Equal(t, "OBJ-2", itemByID(t, doc, "EP-3").ParentID)
	assert.True(t, doc.Meta.IsTracked("EP-3"))
	assert.Equal(t, domain.PhaseWorkingReady, f.phase(t))

	again, err := f.orch.Push(ctxTest, target, PushOptions{})
	require.NoError(t, err)
	assert.Equal(t, application.ReasonNothingToPush, again.Reason)
}

func TestPush_RejectsConflictsWithoutRemoteMutation(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.edit(t, "raise retry budget effort", setEffort("EP-1", 34))
	f.remoteEdit(t, "EP-1", func(r *domain.ItemRecord) { r.Effort = domain.Effort(25) })
	tracking := f.head(t, f.repo.TrackingBranch(target))

	res, err := f.orch.Push(ctxTest, target, PushOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeRejected, res.Outcome)
	assert.Equal(t, application.ReasonFieldConflict, res.Reason)
	require.Len(t, res.Hints, 1)
	assert.Equal(t, "20", res.Hints[0].Base)
	assert.Equal(t, "34", res.Hints[0].Local)
	assert.Equal(t, "25", res.Hints[0].Remote)
	assert.Zero(t, f.mutations())
	assert.Equal(t, tracking, f.head(t, f.repo.TrackingBranch(target)))
	assert.Equal(t, domain.PhasePushConflict, f.phase(t))

	_, err = f.orch.Push(ctxTest, target, PushOptions{})
	assert.ErrorIs(t, err, application.ErrResolutionRequired)

	// Pulling is the way out: git reports the same field as conflicted.
	res, err = f.orch.Pull(ctxTest, target)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeConflict, res.Outcome)
	assert.Equal(t, domain.PhaseConflicted, f.phase(t))
}

func TestPush_AtomicFailureLeavesTrackingUntouched(t *testing.T) {
	for k := 1; k <= 3; k++ {
		t.Run("failing mutation "+string(rune('0'+k)), func(t *testing.T) {
			f := newFixture(t)
			f.init(t)
			f.edit(t, "plan chaos drills", func(doc *domain.PlanDocument) {
				setEffort("EP-1", 34)(doc)
				doc.Items = append(doc.Items, domain.ItemRecord{Kind: domain.KindEpic, Team: "core", Release: "r1", Name: "Chaos drills", ParentID: "OBJ-1"})
				for i := range doc.Items {
					if doc.Items[i].ID == "EP-2" {
						doc.Items[i].Owner = "erin"
					}
				}
			})
			before := f.service.All()
			tracking := f.head(t, f.repo.TrackingBranch(target))
			working := f.head(t, f.repo.WorkingBranch(target))

			f.service.FailMutation(k, &remote.Error{Op: "test", Reason: remote.ReasonValidation, StatusCode: 422})
			res, err := f.orch.Push(ctxTest, target, PushOptions{})

			require.Error(t, err)
			assert.Equal(t, domain.OutcomeFailed, res.Outcome)
			assert.Equal(t, "remote-validation", res.Reason)
			f.service.SetHook(nil)

			after := f.service.All()
			require.Len(t, after, len(before))
			for i := range before {
				assert.True(t, before[i].Equal(after[i]), "item %s changed", before[i].ID)
			}
			assert.Equal(t, tracking, f.head(t, f.repo.TrackingBranch(target)))
			assert.Equal(t, working, f.head(t, f.repo.WorkingBranch(target)))
			assert.Equal(t, domain.PhaseWorkingReady, f.phase(t))
		})
	}
}

func TestPush_WithholdsUnconfirmedRemovals(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.edit(t, "drop legacy cleanup", func(doc *domain.PlanDocument) {
		kept := doc.Items[:0]
		for _, item := range doc.Items {
			if item.ID != "EP-2" {
				kept = append(kept, item)
			}
		}
		doc.Items = kept
	})

	res, err := f.orch.Push(ctxTest, target, PushOptions{})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	assert.Contains(t, res.Message, "1 removals withheld")
	_, stillThere := f.service.Get("EP-2")
	assert.True(t, stillThere)

	working := f.document(t, f.repo.WorkingBranch(target))
	_, present := working.Index()["EP-2"]
	assert.False(t, present, "withheld removal must stay on the working branch")

	res, err = f.orch.Push(ctxTest, target, PushOptions{ConfirmRemovals: true})
	require.NoError(t, err)
	require.True(t, res.Succeeded(), res.Message)
	_, stillThere = f.service.Get("EP-2")
	assert.False(t, stillThere)
	assert.Equal(t, f.head(t, f.repo.TrackingBranch(target)), f.head(t, f.repo.WorkingBranch(target)))
}

func TestOperations_RejectWhenBusy(t *testing.T) {
	f := newFixture(t)
	f.init(t)

	release, ok := f.orch.acquire(target)
	require.True(t, ok)

	res, err := f.orch.Pull(ctxTest, target)
	assert.ErrorIs(t, err, application.ErrBusy)
	assert.Equal(t, application.ReasonBusy, res.Reason)
	assert.Equal(t, domain.OutcomeRejected, res.Outcome)
	assert.Empty(t, res.AuditID)

	release()
	res, err = f.orch.Pull(ctxTest, target)
	require.NoError(t, err)
	assert.True(t, res.Succeeded())

	entries, err := f.orch.History(ctxTest, target, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "busy rejections are not audited")
}

func TestOperations_IndependentPairsRunConcurrently(t *testing.T) {
	f := newFixture(t)
	other := domain.Target{Team: "data", Release: "r1"}
	f.service.AddRelease(other, "Data r1")
	f.service.Put(domain.ItemRecord{Kind: domain.KindObjective, Team: "data", Release: "r1", Name: "Freshness"})

	var g errgroup.Group
	for _, tgt := range []domain.Target{target, other} {
		g.Go(func() error {
			_, err := f.orch.Init(ctxTest, tgt)
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, tgt := range []domain.Target{target, other} {
		exists, err := f.repo.BranchExists(ctxTest, f.repo.WorkingBranch(tgt))
		require.NoError(t, err)
		assert.True(t, exists, tgt.String())
	}
}

func TestPull_Preconditions(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.orch.Pull(ctxTest, target)
		assert.ErrorIs(t, err, application.ErrNotInitialized)
		assert.Equal(t, domain.OutcomeRejected, res.Outcome)
	})

	t.Run("dirty document", func(t *testing.T) {
		f := newFixture(t)
		f.init(t)
		doc := f.document(t, f.repo.WorkingBranch(target))
		setEffort("EP-1", 40)(&doc)
		f.write(t, doc)

		res, err := f.orch.Pull(ctxTest, target)
		assert.ErrorIs(t, err, application.ErrDirtyDocument)
		assert.Equal(t, application.ReasonDirtyDocument, res.Reason)
	})
}

func TestPull_RecoversInterruptedState(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	st, err := f.states.Load(ctxTest, target)
	require.NoError(t, err)
	st.Phase = domain.PhasePushRunning
	require.NoError(t, f.states.Save(ctxTest, *st))

	res, err := f.orch.Pull(ctxTest, target)
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, domain.PhaseWorkingReady, f.phase(t))
}

func TestStatus_PreviewsPendingChanges(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.edit(t, "raise retry budget effort", setEffort("EP-1", 34))

	report, err := f.orch.Status(ctxTest, target)
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseWorkingReady, report.State.Phase)
	assert.NotEqual(t, report.TrackingHead, report.WorkingHead)
	assert.Empty(t, report.PreviewError)
	require.Len(t, report.Pending, 1)
	assert.Equal(t, domain.SourceUserEdit, report.Pending[0].Source)
	require.NotNil(t, report.LastEntry)
	assert.Equal(t, domain.OpInit, report.LastEntry.Operation)
	assert.Zero(t, f.mutations())
}

func TestResolve_NothingToResolve(t *testing.T) {
	f := newFixture(t)
	f.init(t)

	res, err := f.orch.Resolve(ctxTest, target)
	require.NoError(t, err)
	assert.Contains(t, res.Message, "nothing to resolve")
}
