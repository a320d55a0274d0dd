package tui

import (
	"context"
	"testing"

	"plansync/internal/adapters/tui/views"
	"plansync/internal/application"
	"plansync/internal/application/orchestrator"
	"plansync/internal/domain"
)

type stubEngine struct {
	pushes []orchestrator.PushOptions
}

func (s *stubEngine) result(op domain.Operation, t domain.Target) *application.Result {
	return &application.Result{Operation: op, Target: t, Outcome: domain.OutcomeSuccess, Message: string(op) + " done"}
}

func (s *stubEngine) Init(_ context.Context, t domain.Target) (*application.Result, error) {
	return s.result(domain.OpInit, t), nil
}

func (s *stubEngine) Pull(_ context.Context, t domain.Target) (*application.Result, error) {
	return s.result(domain.OpPull, t), nil
}

func (s *stubEngine) Push(_ context.Context, t domain.Target, opts orchestrator.PushOptions) (*application.Result, error) {
	s.pushes = append(s.pushes, opts)
	return s.result(domain.OpPush, t), nil
}

func (s *stubEngine) Resolve(_ context.Context, t domain.Target) (*application.Result, error) {
	return s.result(domain.OpResolve, t), nil
}

func (s *stubEngine) Status(_ context.Context, t domain.Target) (*orchestrator.StatusReport, error) {
	return &orchestrator.StatusReport{State: domain.SyncState{Target: t, Phase: domain.PhaseWorkingReady}}, nil
}

func (s *stubEngine) History(context.Context, domain.Target, int) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (s *stubEngine) Entry(_ context.Context, id string) (*domain.AuditEntry, error) {
	return nil, &application.ValidationError{Field: "auditID", Message: "no audit entry " + id}
}

var target = domain.Target{Team: "core", Release: "r1"}

func TestApp_InitWithoutTargetAsksForOne(t *testing.T) {
	app := NewApp(Options{Engine: &stubEngine{}})
	app.Init()
	if app.State() != ViewTarget {
		t.Errorf("State() = %v, want ViewTarget", app.State())
	}
}

func TestApp_InitWithTargetShowsLog(t *testing.T) {
	app := NewApp(Options{Engine: &stubEngine{}, Target: target})
	if cmd := app.Init(); cmd == nil {
		t.Fatal("Init() returned no load command")
	}
	if app.State() != ViewLog {
		t.Errorf("State() = %v, want ViewLog", app.State())
	}
}

func TestApp_RunPushNeverConfirmsRemovals(t *testing.T) {
	engine := &stubEngine{}
	app := NewApp(Options{Engine: engine, Target: target})

	_, cmd := app.Update(views.RunOpMsg{Op: domain.OpPush, Target: target})
	if cmd == nil {
		t.Fatal("Update(RunOpMsg) returned no command")
	}
	msg, ok := cmd().(views.OpFinishedMsg)
	if !ok {
		t.Fatalf("command produced %T, want OpFinishedMsg", msg)
	}
	if msg.Err != nil || !msg.Result.Succeeded() {
		t.Errorf("push finished with %v, %+v", msg.Err, msg.Result)
	}
	if len(engine.pushes) != 1 || engine.pushes[0].ConfirmRemovals {
		t.Errorf("pushes = %+v, want one without removals", engine.pushes)
	}
}

func TestApp_EditWithoutEditorReportsMessage(t *testing.T) {
	app := NewApp(Options{Engine: &stubEngine{}, Target: target})
	_, cmd := app.Update(views.OpenEditorMsg{Target: target})
	if cmd != nil {
		t.Errorf("Update(OpenEditorMsg) = %v, want nil without an editor", cmd)
	}
}
