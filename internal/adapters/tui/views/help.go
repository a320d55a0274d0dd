package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"plansync/internal/adapters/tui/styles"
)

// HelpKeyMap defines key bindings for the help view
type HelpKeyMap struct {
	Close key.Binding
}

var HelpKeys = HelpKeyMap{
	Close: key.NewBinding(
		key.WithKeys("esc", "q", "?"),
		key.WithHelp("esc/q/?", "close"),
	),
}

// HelpModel is the model for the help view
type HelpModel struct {
	ViewState
}

// NewHelpModel creates a new help view model
func NewHelpModel() *HelpModel {
	return &HelpModel{}
}

// Init implements tea.Model
func (m *HelpModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view
func (m *HelpModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && key.Matches(keyMsg, HelpKeys.Close) {
		return m, func() tea.Msg { return SwitchToLogMsg{} }
	}
	return m, nil
}

// View renders the help view
func (m *HelpModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("plansync review"))
	b.WriteString("\n\n")
	b.WriteString(styles.Subtitle.Render("Audit log and conflicts of a synced plan"))
	b.WriteString("\n\n")

	b.WriteString(styles.Label.Render("Audit log"))
	b.WriteString("\n")
	for _, binding := range []key.Binding{
		LogKeys.Up, LogKeys.Down, LogKeys.NextPage, LogKeys.PrevPage, LogKeys.Open,
		LogKeys.Copy, LogKeys.Reload, LogKeys.Pull, LogKeys.Push, LogKeys.Edit, LogKeys.Target,
	} {
		b.WriteString(helpLine(binding))
	}
	b.WriteString("\n")

	b.WriteString(styles.Label.Render("Entry"))
	b.WriteString("\n")
	for _, binding := range []key.Binding{
		EntryKeys.NextHint, EntryKeys.PrevHint, EntryKeys.CopyLocal, EntryKeys.CopyRemote, EntryKeys.CopyBase, EntryKeys.Back,
	} {
		b.WriteString(helpLine(binding))
	}
	b.WriteString("\n")

	b.WriteString(styles.Label.Render("Change sources"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("  user-edit         changed in the document since the last sync\n"))
	b.WriteString(styles.MutedText.Render("  remote-update     changed on the planning service\n"))
	b.WriteString(styles.MutedText.Render("  both-conflicting  changed on both sides to different values\n"))
	b.WriteString(styles.MutedText.Render("  new-item          added in the document, created on push\n"))
	b.WriteString(styles.MutedText.Render("  removed-item      removed from the document\n"))
	b.WriteString("\n")

	b.WriteString(styles.HelpDesc.Render("Press "))
	b.WriteString(styles.HelpKey.Render("esc"))
	b.WriteString(styles.HelpDesc.Render(" or "))
	b.WriteString(styles.HelpKey.Render("?"))
	b.WriteString(styles.HelpDesc.Render(" to close"))

	return styles.App.Render(b.String())
}

func helpLine(binding key.Binding) string {
	help := binding.Help()
	return "  " + styles.HelpKey.Render(padRight(help.Key, 16)) + styles.HelpDesc.Render(help.Desc) + "\n"
}

func padRight(s string, length int) string {
	if len([]rune(s)) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len([]rune(s)))
}
