package commands

import (
	"fmt"
	"strings"
	"time"

	"plansync/internal/application"
	"plansync/internal/application/orchestrator"
	"plansync/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05Z07:00"

// FormatResult renders an operation result for terminals and agents
func FormatResult(res *application.Result) string {
	if res == nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s: %s", res.Operation, res.Target, res.Outcome)
	if res.Reason != "" {
		fmt.Fprintf(&sb, " (%s)", res.Reason)
	}
	sb.WriteByte('\n')
	if res.Message != "" {
		sb.WriteString(res.Message)
		sb.WriteByte('\n')
	}
	if len(res.AffectedItems) > 0 {
		fmt.Fprintf(&sb, "items: %s\n", strings.Join(res.AffectedItems, ", "))
	}
	writeChanges(&sb, res.Changes)
	writeHints(&sb, res.Hints)
	switch {
	case res.AuditID != "":
		fmt.Fprintf(&sb, "audit: %s\n", res.AuditID)
	case res.AuditFailure != "":
		sb.WriteString("audit: not recorded\n")
	}
	return sb.String()
}

// FormatStatus renders a status report
func FormatStatus(report *orchestrator.StatusReport) string {
	var sb strings.Builder
	st := report.State
	fmt.Fprintf(&sb, "%s: %s\n", st.Target, st.Phase)
	if st.Phase == domain.PhaseUninitialized {
		return sb.String()
	}

	fmt.Fprintf(&sb, "tracking %s @ %s\n", st.TrackingBranch, short(report.TrackingHead))
	fmt.Fprintf(&sb, "working  %s @ %s\n", st.WorkingBranch, short(report.WorkingHead))
	switch {
	case report.Repo.RebaseInProgress:
		sb.WriteString("a rebase is in progress\n")
	case report.Repo.CurrentBranch != "":
		fmt.Fprintf(&sb, "checked out: %s\n", report.Repo.CurrentBranch)
	}
	for _, p := range report.Repo.DirtyPaths {
		fmt.Fprintf(&sb, "uncommitted: %s\n", p)
	}
	for _, u := range report.Unresolved {
		fmt.Fprintf(&sb, "unresolved: %s\n", u)
	}

	switch {
	case report.PreviewError != "":
		fmt.Fprintf(&sb, "no push preview: %s\n", report.PreviewError)
	case len(report.Pending) == 0:
		sb.WriteString("nothing to push\n")
	default:
		fmt.Fprintf(&sb, "%d pending changes:\n", len(report.Pending))
		writeChanges(&sb, report.Pending)
		writeHints(&sb, report.Hints)
	}

	if e := report.LastEntry; e != nil {
		fmt.Fprintf(&sb, "last: %s %s at %s\n", e.Operation, e.Outcome, e.FinishedAt.Format(timeLayout))
	}
	return sb.String()
}

// FormatEntries renders audit entries one per line
func FormatEntries(entries []domain.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries.\n"
	}
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "#%d  %s  %-5s %-8s", e.Seq, e.FinishedAt.Format(timeLayout), e.Operation, e.Outcome)
		if e.Reason != "" {
			fmt.Fprintf(&sb, " %s", e.Reason)
		}
		fmt.Fprintf(&sb, "  %s\n", e.ID)
	}
	return sb.String()
}

// FormatEntry renders one audit entry in full
func FormatEntry(e *domain.AuditEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "entry %s (#%d)\n", e.ID, e.Seq)
	fmt.Fprintf(&sb, "%s %s: %s", e.Operation, e.Target, e.Outcome)
	if e.Reason != "" {
		fmt.Fprintf(&sb, " (%s)", e.Reason)
	}
	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "ran %s to %s (%s)\n", e.StartedAt.Format(timeLayout), e.FinishedAt.Format(timeLayout),
		e.FinishedAt.Sub(e.StartedAt).Round(time.Millisecond))
	if e.TrackingRef != "" || e.WorkingRef != "" {
		fmt.Fprintf(&sb, "tracking @ %s, working @ %s\n", short(e.TrackingRef), short(e.WorkingRef))
	}
	if e.Message != "" {
		sb.WriteString(e.Message)
		sb.WriteByte('\n')
	}
	writeChanges(&sb, e.Changes)
	writeHints(&sb, e.Hints)
	return sb.String()
}

// FormatChange renders one attributed change on a single line
func FormatChange(c domain.AttributedChange) string {
	name := c.ItemKey
	if c.ItemName != "" {
		name += fmt.Sprintf(" %q", c.ItemName)
	}
	if c.Field == domain.FieldItem {
		return fmt.Sprintf("%-16s %s", c.Source, name)
	}
	line := fmt.Sprintf("%-16s %s %s: %s -> %s", c.Source, name, c.Field, orNone(c.Old), orNone(c.New))
	if c.Source == domain.SourceBothConflicting {
		line += fmt.Sprintf(" (remote %s)", orNone(c.Remote))
	}
	return line
}

func writeChanges(sb *strings.Builder, changes []domain.AttributedChange) {
	for _, c := range changes {
		sb.WriteString("  ")
		sb.WriteString(FormatChange(c))
		sb.WriteByte('\n')
	}
}

func writeHints(sb *strings.Builder, hints []domain.ConflictHint) {
	for _, h := range hints {
		fmt.Fprintf(sb, "  conflict %s %s: base %s, local %s, remote %s\n",
			h.ItemID, h.Field, orNone(h.Base), orNone(h.Local), orNone(h.Remote))
		if h.Message != "" {
			fmt.Fprintf(sb, "    %s\n", h.Message)
		}
	}
}

func orNone(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	if hash == "" {
		return "-"
	}
	return hash
}
