// Package markdown renders plan documents as markdown with a YAML front
// matter block and parses them back.
//
// The body puts every field on its own line, separated by blank lines,
// so that git's line-based three-way merge resolves edits to different
// fields independently. git treats changes to adjacent lines as one
// conflicting hunk.
//
//	## Reliability
//	<!-- id: OBJ-1 -->
//
//	- status: active
//
//	- effort: 13
//
//	- owner: alice
//
//	### Retry budget
//	<!-- id: EP-4 -->
//
//	- status: planned
//	...
//
// Epics belong to the objective heading above them. An epic whose
// objective is not in the document carries an explicit "- parent:" line.
package markdown

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"plansync/internal/domain"
	"plansync/internal/ports"
)

const (
	delimiter       = "---"
	objectivePrefix = "## "
	epicPrefix      = "### "
	titlePrefix     = "# "
	idPrefix        = "<!-- id:"
	idSuffix        = "-->"

	markerOurs   = "<<<<<<<"
	markerBase   = "|||||||"
	markerSplit  = "======="
	markerTheirs = ">>>>>>>"
)

// ErrUnresolvedConflict is returned by Parse for content that still
// contains conflict markers.
var ErrUnresolvedConflict = errors.New("document contains unresolved conflict markers")

// ParseError reports malformed document content
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return "parse plan document: " + e.Reason
	}
	return fmt.Sprintf("parse plan document: line %d: %s", e.Line, e.Reason)
}

type trackedEntry struct {
	ID       string `yaml:"id"`
	SyncedAt string `yaml:"synced_at"`
}

type frontMatter struct {
	Team        string         `yaml:"team"`
	Release     string         `yaml:"release"`
	ReleaseName string         `yaml:"release_name,omitempty"`
	SyncedAt    string         `yaml:"synced_at"`
	Tracked     []trackedEntry `yaml:"tracked"`
}

// Codec implements ports.DocumentCodec
type Codec struct{}

var _ ports.DocumentCodec = (*Codec)(nil)

// New creates a Codec
func New() *Codec {
	return &Codec{}
}

// Render produces the text form of doc. Items are rendered in document
// order (domain.SortItems); the input slice is not modified.
func (c *Codec) Render(doc domain.PlanDocument) ([]byte, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("render plan document: %w", err)
	}

	fm := frontMatter{
		Team:        doc.Meta.Team,
		Release:     doc.Meta.Release,
		ReleaseName: doc.Meta.ReleaseName,
		SyncedAt:    formatTime(doc.Meta.SyncedAt),
		Tracked:     make([]trackedEntry, 0, len(doc.Meta.Tracked)),
	}
	for _, t := range doc.Meta.Tracked {
		fm.Tracked = append(fm.Tracked, trackedEntry{ID: t.ID, SyncedAt: formatTime(t.SyncedAt)})
	}

	header, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("render front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	buf.Write(header)
	buf.WriteString(delimiter + "\n")

	title := doc.Meta.ReleaseName
	if title == "" {
		title = doc.Meta.Target().String()
	}
	fmt.Fprintf(&buf, "\n%s%s\n", titlePrefix, title)

	items := make([]domain.ItemRecord, len(doc.Items))
	copy(items, doc.Items)
	domain.SortItems(items)

	section := ""
	for _, item := range items {
		if err := checkRenderable(item); err != nil {
			return nil, err
		}
		buf.WriteString("\n")

		switch item.Kind {
		case domain.KindObjective:
			section = item.Key()
			buf.WriteString(objectivePrefix + item.Name + "\n")
		case domain.KindEpic:
			buf.WriteString(epicPrefix + item.Name + "\n")
		}
		if item.ID != "" {
			fmt.Fprintf(&buf, "%s %s %s\n", idPrefix, item.ID, idSuffix)
		}
		writeField(&buf, domain.FieldStatus, item.Status)
		writeField(&buf, domain.FieldEffort, domain.FormatEffort(item.Effort))
		writeField(&buf, domain.FieldOwner, item.Owner)
		if item.Kind == domain.KindEpic && item.ParentID != section {
			writeField(&buf, domain.FieldParent, item.ParentID)
		}
	}

	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, f domain.Field, value string) {
	if value == "" {
		fmt.Fprintf(buf, "\n- %s:\n", f)
		return
	}
	fmt.Fprintf(buf, "\n- %s: %s\n", f, value)
}

func checkRenderable(item domain.ItemRecord) error {
	if strings.TrimSpace(item.Name) == "" {
		return &domain.FieldError{Field: domain.FieldName, Value: item.Name, Reason: "must not be empty"}
	}
	for _, f := range domain.EditableFields {
		v := item.Value(f)
		if strings.ContainsAny(v, "\r\n") {
			return &domain.FieldError{Field: f, Value: v, Reason: "must be a single line"}
		}
		if v != strings.TrimSpace(v) {
			return &domain.FieldError{Field: f, Value: v, Reason: "must not have surrounding whitespace"}
		}
	}
	return nil
}

// Parse reads a document produced by Render and possibly edited by a
// human since.
func (c *Codec) Parse(content []byte) (domain.PlanDocument, error) {
	var doc domain.PlanDocument

	lines := splitLines(content)
	for _, line := range lines {
		if isMarker(line) {
			return doc, ErrUnresolvedConflict
		}
	}

	body, meta, err := parseFrontMatter(lines)
	if err != nil {
		return doc, err
	}
	doc.Meta = meta

	items, err := parseBody(lines, body, meta.Target())
	if err != nil {
		return doc, err
	}
	doc.Items = items

	if err := doc.Validate(); err != nil {
		return doc, fmt.Errorf("parse plan document: %w", err)
	}
	return doc, nil
}

func parseFrontMatter(lines []string) (int, domain.Metadata, error) {
	var meta domain.Metadata
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delimiter {
		return 0, meta, &ParseError{Line: 1, Reason: "missing front matter"}
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			end = i
			break
		}
	}
	if end < 0 {
		return 0, meta, &ParseError{Reason: "unterminated front matter"}
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &fm); err != nil {
		return 0, meta, &ParseError{Line: 2, Reason: "invalid front matter: " + err.Error()}
	}

	syncedAt, err := parseTime(fm.SyncedAt)
	if err != nil {
		return 0, meta, &ParseError{Reason: "invalid synced_at: " + err.Error()}
	}
	meta = domain.Metadata{
		Team:        fm.Team,
		Release:     fm.Release,
		ReleaseName: fm.ReleaseName,
		SyncedAt:    syncedAt,
		Tracked:     make([]domain.TrackedItem, 0, len(fm.Tracked)),
	}
	for _, t := range fm.Tracked {
		at, err := parseTime(t.SyncedAt)
		if err != nil {
			return 0, meta, &ParseError{Reason: fmt.Sprintf("invalid synced_at for %s: %v", t.ID, err)}
		}
		meta.Tracked = append(meta.Tracked, domain.TrackedItem{ID: t.ID, SyncedAt: at})
	}
	return end + 1, meta, nil
}

// pending is an item being assembled by parseBody
type pending struct {
	record         domain.ItemRecord
	explicitParent bool
	seen           map[domain.Field]bool
}

func parseBody(lines []string, start int, target domain.Target) ([]domain.ItemRecord, error) {
	var (
		items   []domain.ItemRecord
		current *pending
		section string
	)

	flush := func() {
		if current == nil {
			return
		}
		if current.record.Kind == domain.KindEpic && !current.explicitParent {
			current.record.ParentID = section
		}
		if current.record.Kind == domain.KindObjective {
			section = current.record.Key()
		}
		items = append(items, current.record)
		current = nil
	}

	for i := start; i < len(lines); i++ {
		lineNo := i + 1
		line := strings.TrimRight(lines[i], " \t")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			continue

		case strings.HasPrefix(line, epicPrefix), strings.HasPrefix(line, objectivePrefix):
			flush()
			kind := domain.KindObjective
			name := strings.TrimPrefix(line, objectivePrefix)
			if strings.HasPrefix(line, epicPrefix) {
				kind = domain.KindEpic
				name = strings.TrimPrefix(line, epicPrefix)
			}
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, &ParseError{Line: lineNo, Reason: "heading without a name"}
			}
			current = &pending{
				record: domain.ItemRecord{
					Kind:    kind,
					Team:    target.Team,
					Release: target.Release,
					Name:    name,
				},
				seen: make(map[domain.Field]bool),
			}

		case strings.HasPrefix(line, titlePrefix):
			if current != nil || len(items) > 0 {
				return nil, &ParseError{Line: lineNo, Reason: "title must precede all items"}
			}

		case strings.HasPrefix(trimmed, idPrefix):
			if current == nil {
				return nil, &ParseError{Line: lineNo, Reason: "id comment outside an item"}
			}
			if current.record.ID != "" {
				return nil, &ParseError{Line: lineNo, Reason: "item has more than one id"}
			}
			id, ok := parseID(trimmed)
			if !ok {
				return nil, &ParseError{Line: lineNo, Reason: "malformed id comment"}
			}
			current.record.ID = id

		case strings.HasPrefix(trimmed, "- "):
			if current == nil {
				return nil, &ParseError{Line: lineNo, Reason: "field outside an item"}
			}
			field, value, ok := parseFieldLine(trimmed)
			if !ok {
				return nil, &ParseError{Line: lineNo, Reason: fmt.Sprintf("unrecognized field line %q", trimmed)}
			}
			if current.seen[field] {
				return nil, &ParseError{Line: lineNo, Reason: fmt.Sprintf("field %s repeated", field)}
			}
			current.seen[field] = true
			if err := setField(current, field, value); err != nil {
				return nil, &ParseError{Line: lineNo, Reason: err.Error()}
			}

		default:
			return nil, &ParseError{Line: lineNo, Reason: fmt.Sprintf("unexpected content %q", trimmed)}
		}
	}
	flush()

	return items, nil
}

func setField(p *pending, field domain.Field, value string) error {
	switch field {
	case domain.FieldStatus:
		p.record.Status = value
	case domain.FieldOwner:
		p.record.Owner = value
	case domain.FieldEffort:
		effort, err := domain.ParseEffort(value)
		if err != nil {
			return err
		}
		p.record.Effort = effort
	case domain.FieldParent:
		if p.record.Kind != domain.KindEpic {
			return fmt.Errorf("only epics have a parent")
		}
		p.record.ParentID = value
		p.explicitParent = true
	default:
		return fmt.Errorf("field %s cannot be set here", field)
	}
	return nil
}

func parseFieldLine(line string) (domain.Field, string, bool) {
	rest := strings.TrimPrefix(line, "- ")
	name, value, ok := strings.Cut(rest, ":")
	if !ok {
		return "", "", false
	}
	field := domain.Field(strings.TrimSpace(name))
	if !field.IsEditable() || field == domain.FieldName {
		return "", "", false
	}
	return field, strings.TrimSpace(value), true
}

func parseID(line string) (string, bool) {
	if !strings.HasSuffix(line, idSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(line, idPrefix), idSuffix)
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, " \t") {
		return "", false
	}
	return id, true
}

// splitLines splits content into lines without a length limit. A final
// newline does not start another line.
func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	lines := strings.Split(string(content), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func isMarker(line string) bool {
	for _, m := range []string{markerOurs, markerBase, markerSplit, markerTheirs} {
		if strings.HasPrefix(line, m) {
			return true
		}
	}
	return false
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
