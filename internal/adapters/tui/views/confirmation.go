package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"plansync/internal/adapters/tui/styles"
	"plansync/internal/domain"
)

// ConfirmKeyMap defines key bindings for confirmation views
type ConfirmKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultConfirmKeys returns the default confirmation key bindings
var DefaultConfirmKeys = ConfirmKeyMap{
	Confirm: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "confirm"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("n", "esc"),
		key.WithHelp("n/esc", "cancel"),
	),
}

// ConfirmationModel asks before running a sync operation
type ConfirmationModel struct {
	ViewState
	Op     domain.Operation
	Target domain.Target
	Keys   ConfirmKeyMap
}

// NewConfirmationModel creates a new confirmation model with default keys
func NewConfirmationModel() *ConfirmationModel {
	return &ConfirmationModel{Keys: DefaultConfirmKeys}
}

// SetOperation sets what is being confirmed
func (m *ConfirmationModel) SetOperation(op domain.Operation, target domain.Target) {
	m.Op = op
	m.Target = target
}

// Init implements tea.Model
func (m *ConfirmationModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the confirmation view
func (m *ConfirmationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.Keys.Cancel):
		return m, func() tea.Msg { return SwitchToLogMsg{} }
	case key.Matches(keyMsg, m.Keys.Confirm):
		op, target := m.Op, m.Target
		return m, func() tea.Msg { return RunOpMsg{Op: op, Target: target} }
	}
	return m, nil
}

// View renders the confirmation view
func (m *ConfirmationModel) View() string {
	return NewViewBuilder().
		Title("Confirm "+string(m.Op)+" of "+m.Target.String()).
		Line(describeOp(m.Op)).
		BlankLine().
		Line(RenderConfirmPrompt("Run " + string(m.Op) + "?")).
		String()
}

func describeOp(op domain.Operation) string {
	switch op {
	case domain.OpPull:
		return styles.MutedText.Render("Fetches the plan from the service and replays your edits on top.")
	case domain.OpPush:
		return styles.MutedText.Render("Applies your committed edits to the service. Removals stay withheld.")
	default:
		return ""
	}
}

// RenderConfirmPrompt renders the standard confirmation prompt
func RenderConfirmPrompt(question string) string {
	var b strings.Builder
	b.WriteString(question)
	b.WriteString(" ")
	b.WriteString(styles.HelpKey.Render("y"))
	b.WriteString(styles.HelpDesc.Render(" to confirm, "))
	b.WriteString(styles.HelpKey.Render("n"))
	b.WriteString(styles.HelpDesc.Render(" to cancel"))
	return b.String()
}
