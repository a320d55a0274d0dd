package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"

	"plansync/internal/adapters/tui/styles"
	"plansync/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// RenderKeyHelp formats a key binding as help text (key + description)
func RenderKeyHelp(b key.Binding) string {
	help := b.Help()
	return fmt.Sprintf("%s %s",
		styles.HelpKey.Render(help.Key),
		styles.HelpDesc.Render(help.Desc),
	)
}

// RenderHelpLine renders key bindings separated by bullets
func RenderHelpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, RenderKeyHelp(b))
	}
	return strings.Join(parts, styles.HelpSeparator.String())
}

// RenderMessage renders a message with appropriate styling based on isError
func RenderMessage(message string, isError bool) string {
	if message == "" {
		return ""
	}
	if isError {
		return styles.ErrorMsg.Render(message)
	}
	return styles.Success.Render(message)
}

// EntryRow renders one audit entry as a list row, unstyled so the
// caller can highlight the selection.
func EntryRow(e domain.AuditEntry) string {
	row := fmt.Sprintf("#%-4d %s  %-5s %-8s", e.Seq, e.FinishedAt.Local().Format(timeLayout), e.Operation, e.Outcome)
	if e.Reason != "" {
		row += " " + e.Reason
	}
	if n := len(e.Changes); n > 0 {
		row += fmt.Sprintf("  (%d changes)", n)
	}
	return row
}

// ChangeLine renders an attributed change with its source colored
func ChangeLine(c domain.AttributedChange) string {
	name := c.ItemKey
	if c.ItemName != "" {
		name += fmt.Sprintf(" %q", c.ItemName)
	}
	line := styles.Source(c.Source) + "  " + name
	if c.Field == domain.FieldItem {
		return line
	}
	line += fmt.Sprintf(" %s: %s → %s", c.Field, valueOrNone(c.Old), valueOrNone(c.New))
	if c.Source == domain.SourceBothConflicting {
		line += styles.Remote.Render(" remote " + valueOrNone(c.Remote))
	}
	return line
}

// HintBlock renders a conflict hint with its three values
func HintBlock(h domain.ConflictHint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q %s\n", h.ItemID, h.ItemName, styles.Label.Render(string(h.Field)))
	b.WriteString("  " + styles.Base.Render("base   "+valueOrNone(h.Base)) + "\n")
	b.WriteString("  " + styles.Local.Render("local  "+valueOrNone(h.Local)) + "\n")
	b.WriteString("  " + styles.Remote.Render("remote "+valueOrNone(h.Remote)))
	if h.Message != "" {
		b.WriteString("\n  " + styles.MutedText.Render(h.Message))
	}
	return b.String()
}

func valueOrNone(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}

func shortRef(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	if hash == "" {
		return "-"
	}
	return hash
}

func duration(from, to time.Time) string {
	return to.Sub(from).Round(time.Millisecond).String()
}

// ViewBuilder helps construct view output with consistent formatting
type ViewBuilder struct {
	b strings.Builder
}

// NewViewBuilder creates a new view builder
func NewViewBuilder() *ViewBuilder {
	return &ViewBuilder{}
}

// Title adds a title section
func (v *ViewBuilder) Title(title string) *ViewBuilder {
	v.b.WriteString(styles.Title.Render(title))
	v.b.WriteString("\n\n")
	return v
}

// Subtitle adds a subtitle section
func (v *ViewBuilder) Subtitle(subtitle string) *ViewBuilder {
	v.b.WriteString(styles.Subtitle.Render(subtitle))
	v.b.WriteString("\n\n")
	return v
}

// Line adds a line of text
func (v *ViewBuilder) Line(text string) *ViewBuilder {
	v.b.WriteString(text)
	v.b.WriteString("\n")
	return v
}

// BlankLine adds a blank line
func (v *ViewBuilder) BlankLine() *ViewBuilder {
	v.b.WriteString("\n")
	return v
}

// Muted adds muted text followed by a newline
func (v *ViewBuilder) Muted(text string) *ViewBuilder {
	v.b.WriteString(styles.MutedText.Render(text))
	v.b.WriteString("\n")
	return v
}

// Message adds a message if non-empty, with appropriate error/success styling
func (v *ViewBuilder) Message(message string, isError bool) *ViewBuilder {
	if message == "" {
		return v
	}
	v.b.WriteString(RenderMessage(message, isError))
	v.b.WriteString("\n\n")
	return v
}

// Help adds a help line with key bindings
func (v *ViewBuilder) Help(bindings ...key.Binding) *ViewBuilder {
	v.b.WriteString(RenderHelpLine(bindings...))
	return v
}

// String returns the built view string wrapped in the app style
func (v *ViewBuilder) String() string {
	return styles.App.Render(v.b.String())
}
