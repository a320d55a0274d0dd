package views

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"plansync/internal/adapters/tui/styles"
	"plansync/internal/domain"
)

// EntryKeyMap defines key bindings for the entry view
type EntryKeyMap struct {
	NextHint   key.Binding
	PrevHint   key.Binding
	CopyBase   key.Binding
	CopyLocal  key.Binding
	CopyRemote key.Binding
	Back       key.Binding
}

var EntryKeys = EntryKeyMap{
	NextHint: key.NewBinding(
		key.WithKeys("tab", "n"),
		key.WithHelp("tab", "next conflict"),
	),
	PrevHint: key.NewBinding(
		key.WithKeys("shift+tab", "N"),
		key.WithHelp("shift+tab", "prev conflict"),
	),
	CopyBase: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "copy base"),
	),
	CopyLocal: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "copy local"),
	),
	CopyRemote: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "copy remote"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "q"),
		key.WithHelp("esc", "back"),
	),
}

// EntryModel shows one audit entry: its changes and conflict hints. The
// selected hint's values can be copied to paste into a resolution.
type EntryModel struct {
	ViewState
	entry    domain.AuditEntry
	hint     int
	viewport viewport.Model
	copy     func(string) error
}

// NewEntryModel creates an entry view
func NewEntryModel() *EntryModel {
	return &EntryModel{
		viewport: viewport.New(80, 20),
		copy:     clipboard.WriteAll,
	}
}

// SetEntry shows entry from the top
func (m *EntryModel) SetEntry(entry domain.AuditEntry) {
	m.entry = entry
	m.hint = 0
	m.ClearMessage()
	m.viewport.SetContent(m.body())
	m.viewport.GotoTop()
}

// SetSize updates the dimensions of the scrollable body
func (m *EntryModel) SetSize(width, height int) {
	m.ViewState.SetSize(width, height)
	m.viewport.Width = max(width-4, 20)
	m.viewport.Height = max(height-10, 5)
}

// SelectedHint returns the conflict hint currently selected
func (m *EntryModel) SelectedHint() (domain.ConflictHint, bool) {
	if len(m.entry.Hints) == 0 {
		return domain.ConflictHint{}, false
	}
	return m.entry.Hints[m.hint], true
}

// Init implements tea.Model
func (m *EntryModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the entry view
func (m *EntryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, EntryKeys.Back):
		return m, func() tea.Msg { return SwitchToLogMsg{} }
	case key.Matches(keyMsg, EntryKeys.NextHint):
		m.moveHint(1)
		return m, nil
	case key.Matches(keyMsg, EntryKeys.PrevHint):
		m.moveHint(-1)
		return m, nil
	case key.Matches(keyMsg, EntryKeys.CopyBase):
		m.copyValue("base", func(h domain.ConflictHint) string { return h.Base })
		return m, nil
	case key.Matches(keyMsg, EntryKeys.CopyLocal):
		m.copyValue("local", func(h domain.ConflictHint) string { return h.Local })
		return m, nil
	case key.Matches(keyMsg, EntryKeys.CopyRemote):
		m.copyValue("remote", func(h domain.ConflictHint) string { return h.Remote })
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *EntryModel) moveHint(delta int) {
	n := len(m.entry.Hints)
	if n == 0 {
		return
	}
	m.hint = (m.hint + delta + n) % n
	m.viewport.SetContent(m.body())
}

func (m *EntryModel) copyValue(label string, pick func(domain.ConflictHint) string) {
	h, ok := m.SelectedHint()
	if !ok {
		m.SetMessage("no conflicts in this entry", true)
		return
	}
	if err := m.copy(pick(h)); err != nil {
		m.SetMessage("clipboard unavailable: "+err.Error(), true)
		return
	}
	m.SetMessage(fmt.Sprintf("copied %s %s of %s", label, h.Field, h.ItemID), false)
}

func (m *EntryModel) body() string {
	e := m.entry
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s  %s", styles.Label.Render(string(e.Operation)), e.Target, styles.Outcome(e.Outcome))
	if e.Reason != "" {
		b.WriteString("  " + styles.MutedText.Render(e.Reason))
	}
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render(fmt.Sprintf("%s, took %s, tracking @ %s, working @ %s",
		e.StartedAt.Local().Format(timeLayout), duration(e.StartedAt, e.FinishedAt),
		shortRef(e.TrackingRef), shortRef(e.WorkingRef))))
	b.WriteString("\n\n")
	if e.Message != "" {
		b.WriteString(e.Message + "\n\n")
	}

	if len(e.Changes) > 0 {
		b.WriteString(styles.Label.Render(fmt.Sprintf("Changes (%d)", len(e.Changes))) + "\n")
		for _, c := range e.Changes {
			b.WriteString("  " + ChangeLine(c) + "\n")
		}
		b.WriteString("\n")
	}

	if len(e.Hints) > 0 {
		b.WriteString(styles.Label.Render(fmt.Sprintf("Conflicts (%d)", len(e.Hints))) + "\n")
		for i, h := range e.Hints {
			marker := "  "
			if i == m.hint {
				marker = styles.HelpKey.Render("▶ ")
			}
			b.WriteString(marker + strings.ReplaceAll(HintBlock(h), "\n", "\n  ") + "\n")
		}
	}
	return b.String()
}

// View renders the entry view
func (m *EntryModel) View() string {
	v := NewViewBuilder().Title(fmt.Sprintf("audit entry #%d", m.entry.Seq)).Subtitle(m.entry.ID)
	v.Line(m.viewport.View()).BlankLine()
	v.Message(m.Message, m.MessageErr)
	if len(m.entry.Hints) > 0 {
		return v.Help(EntryKeys.NextHint, EntryKeys.CopyLocal, EntryKeys.CopyRemote, EntryKeys.CopyBase, EntryKeys.Back).String()
	}
	return v.Help(EntryKeys.Back).String()
}
