package views

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"plansync/internal/domain"
)

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPaginator(t *testing.T) {
	p := NewPaginator(3)
	p.SetTotal(7)

	if start, end := p.VisibleRange(); start != 0 || end != 3 {
		t.Errorf("first page = [%d,%d), want [0,3)", start, end)
	}
	for i := 0; i < 3; i++ {
		p.CursorDown()
	}
	if p.Cursor() != 3 || p.CurrentPage() != 2 {
		t.Errorf("cursor %d on page %d, want 3 on page 2", p.Cursor(), p.CurrentPage())
	}
	if !p.NextPage() || p.Cursor() != 6 {
		t.Errorf("next page moved cursor to %d, want 6", p.Cursor())
	}
	if p.NextPage() {
		t.Error("expected no page after the last")
	}
	if start, end := p.VisibleRange(); start != 6 || end != 7 {
		t.Errorf("last page = [%d,%d), want [6,7)", start, end)
	}
	if p.TotalPages() != 3 {
		t.Errorf("total pages = %d, want 3", p.TotalPages())
	}

	p.SetTotal(2)
	if p.Cursor() != 1 || p.CurrentPage() != 1 {
		t.Errorf("after shrinking: cursor %d page %d, want 1 and 1", p.Cursor(), p.CurrentPage())
	}

	p.SetTotal(0)
	if p.Cursor() != 0 || p.CursorDown() || p.TotalPages() != 1 {
		t.Error("empty paginator should stay at 0 with one page")
	}
}

func TestLogModel_NavigateAndOpen(t *testing.T) {
	target := domain.Target{Team: "core", Release: "2026-q2"}
	m := NewLogModel(nil, target)
	m.Update(logLoadedMsg{target: target, entries: []domain.AuditEntry{
		{ID: "c3", Seq: 3, Operation: domain.OpPush, Outcome: domain.OutcomeRejected, Reason: "field-conflict"},
		{ID: "b2", Seq: 2, Operation: domain.OpPull, Outcome: domain.OutcomeSuccess},
		{ID: "a1", Seq: 1, Operation: domain.OpInit, Outcome: domain.OutcomeSuccess},
	}})

	m.Update(runes("j"))
	entry, ok := m.Selected()
	if !ok || entry.ID != "b2" {
		t.Fatalf("selected %q, want b2", entry.ID)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg, ok := cmd().(SwitchToEntryMsg)
	if !ok || msg.Entry.ID != "b2" {
		t.Errorf("expected SwitchToEntryMsg for b2, got %#v", msg)
	}

	view := m.View()
	if !contains(view, "field-conflict") || !contains(view, "core/2026-q2") {
		t.Errorf("view missing entries:\n%s", view)
	}
}

func TestLogModel_IgnoresStaleTarget(t *testing.T) {
	m := NewLogModel(nil, domain.Target{Team: "core", Release: "q3"})
	m.Update(logLoadedMsg{target: domain.Target{Team: "core", Release: "q2"}, entries: []domain.AuditEntry{{ID: "x"}}})
	if _, ok := m.Selected(); ok {
		t.Error("entries of another plan were shown")
	}
}

func TestLogModel_PushAsksForConfirmation(t *testing.T) {
	target := domain.Target{Team: "core", Release: "2026-q2"}
	m := NewLogModel(nil, target)

	_, cmd := m.Update(runes("p"))
	msg, ok := cmd().(SwitchToConfirmMsg)
	if !ok || msg.Op != domain.OpPush || msg.Target != target {
		t.Errorf("expected push confirmation, got %#v", msg)
	}
}

func TestEntryModel_CopiesSelectedHint(t *testing.T) {
	m := NewEntryModel()
	var copied string
	m.copy = func(s string) error { copied = s; return nil }

	m.SetEntry(domain.AuditEntry{
		ID: "c3", Seq: 3, Operation: domain.OpPush, Outcome: domain.OutcomeRejected,
		Hints: []domain.ConflictHint{
			{ItemID: "EP-1", ItemName: "Search", Field: domain.FieldEffort, Base: "20", Local: "34", Remote: "25"},
			{ItemID: "EP-2", ItemName: "Billing", Field: domain.FieldOwner, Base: "ana", Local: "bo", Remote: "cy"},
		},
	})

	m.Update(runes("l"))
	if copied != "34" {
		t.Errorf("copied %q, want local effort 34", copied)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m.Update(runes("r"))
	if copied != "cy" {
		t.Errorf("copied %q, want remote owner cy", copied)
	}
	if !contains(m.Message, "remote owner of EP-2") {
		t.Errorf("unexpected message %q", m.Message)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if h, _ := m.SelectedHint(); h.ItemID != "EP-1" {
		t.Errorf("selection should wrap to EP-1, got %s", h.ItemID)
	}
}

func TestEntryModel_CopyFailures(t *testing.T) {
	m := NewEntryModel()
	m.copy = func(string) error { return errors.New("no display") }

	m.SetEntry(domain.AuditEntry{ID: "a1"})
	m.Update(runes("b"))
	if !m.MessageErr || !contains(m.Message, "no conflicts") {
		t.Errorf("unexpected message %q", m.Message)
	}

	m.SetEntry(domain.AuditEntry{ID: "c3", Hints: []domain.ConflictHint{{ItemID: "EP-1"}}})
	m.Update(runes("b"))
	if !m.MessageErr || !contains(m.Message, "no display") {
		t.Errorf("unexpected message %q", m.Message)
	}
}

func TestChangeLine(t *testing.T) {
	c := domain.AttributedChange{
		FieldChange: domain.FieldChange{ItemKey: "EP-1", ItemName: "Search", Field: domain.FieldEffort, Old: "20", New: "34"},
		Source:      domain.SourceBothConflicting,
		Remote:      "25",
	}
	line := ChangeLine(c)
	for _, want := range []string{"both-conflicting", `EP-1 "Search"`, "20 → 34", "remote 25"} {
		if !contains(line, want) {
			t.Errorf("line missing %q: %s", want, line)
		}
	}

	created := ChangeLine(domain.AttributedChange{
		FieldChange: domain.FieldChange{ItemKey: "new:epic:Chaos drills", Field: domain.FieldItem},
		Source:      domain.SourceNewItem,
	})
	if contains(created, "→") {
		t.Errorf("whole-item change rendered as a field change: %s", created)
	}
}
