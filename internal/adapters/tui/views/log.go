package views

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"plansync/internal/adapters/tui/styles"
	"plansync/internal/application/commands"
	"plansync/internal/application/orchestrator"
	"plansync/internal/domain"
)

// LogKeyMap defines key bindings for the audit log view
type LogKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	NextPage key.Binding
	PrevPage key.Binding
	Open     key.Binding
	Copy     key.Binding
	Reload   key.Binding
	Pull     key.Binding
	Push     key.Binding
	Edit     key.Binding
	Target   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

var LogKeys = LogKeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	NextPage: key.NewBinding(
		key.WithKeys("l", "right", "pgdown"),
		key.WithHelp("l/→", "next page"),
	),
	PrevPage: key.NewBinding(
		key.WithKeys("h", "left", "pgup"),
		key.WithHelp("h/←", "prev page"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "details"),
	),
	Copy: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy id"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Pull: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "pull"),
	),
	Push: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "push"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit plan"),
	),
	Target: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "switch plan"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// LogModel lists the audit entries of one plan with its current status
type LogModel struct {
	ViewState
	engine  commands.Engine
	target  domain.Target
	entries []domain.AuditEntry
	report  *orchestrator.StatusReport
	pager   *Paginator
	loading bool
}

// NewLogModel creates a log view for target
func NewLogModel(engine commands.Engine, target domain.Target) *LogModel {
	return &LogModel{
		engine: engine,
		target: target,
		pager:  NewPaginator(15),
	}
}

type logLoadedMsg struct {
	target  domain.Target
	entries []domain.AuditEntry
	report  *orchestrator.StatusReport
}

type errMsg struct {
	err error
}

// Init loads the log
func (m *LogModel) Init() tea.Cmd {
	return m.Reload()
}

// Target returns the plan being reviewed
func (m *LogModel) Target() domain.Target {
	return m.target
}

// SetTarget switches to another plan and reloads
func (m *LogModel) SetTarget(t domain.Target) tea.Cmd {
	m.target = t
	m.entries = nil
	m.report = nil
	m.pager.SetTotal(0)
	return m.Reload()
}

// Selected returns the entry under the cursor
func (m *LogModel) Selected() (domain.AuditEntry, bool) {
	if len(m.entries) == 0 {
		return domain.AuditEntry{}, false
	}
	return m.entries[m.pager.Cursor()], true
}

// Reload fetches the status and every audit entry of the target
func (m *LogModel) Reload() tea.Cmd {
	m.loading = true
	engine, target := m.engine, m.target
	return func() tea.Msg {
		ctx := context.Background()
		result, err := commands.NewLogCommand(engine, target.String(), -1).Execute(ctx)
		if err != nil {
			return errMsg{err}
		}
		report, err := commands.NewStatusCommand(engine, target.String()).Execute(ctx)
		if err != nil {
			return errMsg{err}
		}
		return logLoadedMsg{target: target, entries: result.Entries, report: report}
	}
}

// SetSize updates the dimensions and the page size
func (m *LogModel) SetSize(width, height int) {
	m.ViewState.SetSize(width, height)
	// title, status lines, message and help take about 12 rows
	m.pager.SetPageSize(max(height-12, 3))
}

// Update handles messages for the log view
func (m *LogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case logLoadedMsg:
		if msg.target != m.target {
			return m, nil
		}
		m.loading = false
		m.entries = msg.entries
		m.report = msg.report
		m.pager.SetTotal(len(m.entries))
		return m, nil

	case errMsg:
		m.loading = false
		m.SetMessage(msg.err.Error(), true)
		return m, nil

	case tea.KeyMsg:
		m.ClearMessage()
		switch {
		case key.Matches(msg, LogKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, LogKeys.Up):
			m.pager.CursorUp()
		case key.Matches(msg, LogKeys.Down):
			m.pager.CursorDown()
		case key.Matches(msg, LogKeys.NextPage):
			m.pager.NextPage()
		case key.Matches(msg, LogKeys.PrevPage):
			m.pager.PrevPage()
		case key.Matches(msg, LogKeys.Reload):
			return m, m.Reload()
		case key.Matches(msg, LogKeys.Open):
			if entry, ok := m.Selected(); ok {
				return m, func() tea.Msg { return SwitchToEntryMsg{Entry: entry} }
			}
		case key.Matches(msg, LogKeys.Copy):
			if entry, ok := m.Selected(); ok {
				if err := clipboard.WriteAll(entry.ID); err != nil {
					m.SetMessage("clipboard unavailable: "+err.Error(), true)
				} else {
					m.SetMessage("copied "+entry.ID, false)
				}
			}
		case key.Matches(msg, LogKeys.Pull):
			return m, m.confirm(domain.OpPull)
		case key.Matches(msg, LogKeys.Push):
			return m, m.confirm(domain.OpPush)
		case key.Matches(msg, LogKeys.Edit):
			target := m.target
			return m, func() tea.Msg { return OpenEditorMsg{Target: target} }
		case key.Matches(msg, LogKeys.Target):
			return m, func() tea.Msg { return SwitchToTargetMsg{} }
		case key.Matches(msg, LogKeys.Help):
			return m, func() tea.Msg { return SwitchToHelpMsg{} }
		}
	}
	return m, nil
}

func (m *LogModel) confirm(op domain.Operation) tea.Cmd {
	target := m.target
	return func() tea.Msg { return SwitchToConfirmMsg{Op: op, Target: target} }
}

// View renders the log view
func (m *LogModel) View() string {
	v := NewViewBuilder().Title("plansync review: " + m.target.String())
	v.Line(m.statusLine())
	if m.report != nil && len(m.report.Unresolved) > 0 {
		for _, u := range m.report.Unresolved {
			v.Line(styles.ErrorMsg.Render("unresolved: ") + u)
		}
	}
	v.BlankLine()

	switch {
	case m.loading && len(m.entries) == 0:
		v.Muted("loading…")
	case len(m.entries) == 0:
		v.Muted("No audit entries.")
	default:
		start, end := m.pager.VisibleRange()
		for i := start; i < end; i++ {
			row := EntryRow(m.entries[i])
			if i == m.pager.Cursor() {
				v.Line(styles.RowSelected.Render(row))
			} else {
				v.Line(styles.Row.Foreground(styles.OutcomeColor(m.entries[i].Outcome)).Render(row))
			}
		}
		if m.pager.TotalPages() > 1 {
			v.Muted(fmt.Sprintf("page %d/%d", m.pager.CurrentPage(), m.pager.TotalPages()))
		}
	}

	v.BlankLine().Message(m.Message, m.MessageErr)
	return v.Help(LogKeys.Open, LogKeys.Pull, LogKeys.Push, LogKeys.Edit, LogKeys.Help, LogKeys.Quit).String()
}

func (m *LogModel) statusLine() string {
	if m.report == nil {
		return styles.MutedText.Render("status unknown")
	}
	st := m.report.State
	line := styles.Label.Render(string(st.Phase))
	if st.Phase == domain.PhaseUninitialized {
		return line
	}
	line += styles.MutedText.Render(fmt.Sprintf("  %s @ %s  %s @ %s",
		st.TrackingBranch, shortRef(m.report.TrackingHead), st.WorkingBranch, shortRef(m.report.WorkingHead)))
	switch {
	case m.report.PreviewError != "":
		line += "  " + styles.MutedText.Render("("+m.report.PreviewError+")")
	case len(m.report.Pending) > 0:
		line += "  " + styles.Success.Render(fmt.Sprintf("%d pending", len(m.report.Pending)))
	}
	return line
}
