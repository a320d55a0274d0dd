package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"plansync/internal/adapters/tui/styles"
	"plansync/internal/application"
)

// TargetKeyMap defines key bindings for the plan switcher
type TargetKeyMap struct {
	Submit key.Binding
	Cancel key.Binding
}

var TargetKeys = TargetKeyMap{
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
}

// TargetModel asks for the team/release of another plan
type TargetModel struct {
	ViewState
	input textinput.Model
}

// NewTargetModel creates the plan switcher
func NewTargetModel() *TargetModel {
	input := textinput.New()
	input.Placeholder = "team/release"
	input.CharLimit = 128
	return &TargetModel{input: input}
}

// Open resets the input to current and focuses it
func (m *TargetModel) Open(current string) tea.Cmd {
	m.ClearMessage()
	m.input.SetValue(current)
	m.input.CursorEnd()
	return m.input.Focus()
}

// Init returns the blink command for the input
func (m *TargetModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the plan switcher
func (m *TargetModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, TargetKeys.Cancel):
			m.input.Blur()
			return m, func() tea.Msg { return SwitchToLogMsg{} }

		case key.Matches(keyMsg, TargetKeys.Submit):
			target, err := application.ParseTarget(strings.TrimSpace(m.input.Value()))
			if err != nil {
				m.SetMessage(err.Error(), true)
				return m, nil
			}
			m.input.Blur()
			return m, func() tea.Msg { return TargetChangedMsg{Target: target} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the plan switcher
func (m *TargetModel) View() string {
	return NewViewBuilder().
		Title("Switch plan").
		Line(styles.Label.Render("Plan")).
		Line(styles.InputField.Render(m.input.View())).
		BlankLine().
		Message(m.Message, m.MessageErr).
		Help(TargetKeys.Submit, TargetKeys.Cancel).
		String()
}
