package domain

import (
	"strconv"
	"strings"
	"time"
)

// ItemKind distinguishes objectives from their child epics
type ItemKind int

const (
	KindUnknown ItemKind = iota
	KindObjective
	KindEpic
)

func (k ItemKind) String() string {
	switch k {
	case KindObjective:
		return "objective"
	case KindEpic:
		return "epic"
	default:
		return "unknown"
	}
}

// ParseItemKind is the inverse of ItemKind.String
func ParseItemKind(s string) ItemKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "objective":
		return KindObjective
	case "epic":
		return KindEpic
	default:
		return KindUnknown
	}
}

// Field names one editable attribute of an ItemRecord
type Field string

const (
	FieldName   Field = "name"
	FieldStatus Field = "status"
	FieldEffort Field = "effort"
	FieldOwner  Field = "owner"
	FieldParent Field = "parent"

	// FieldItem stands for the whole item in creations and removals
	FieldItem Field = "*"
)

// EditableFields lists the fields compared during attribution, in
// document order.
var EditableFields = []Field{FieldName, FieldStatus, FieldEffort, FieldOwner, FieldParent}

// IsEditable reports whether f is one of EditableFields
func (f Field) IsEditable() bool {
	for _, e := range EditableFields {
		if e == f {
			return true
		}
	}
	return false
}

// ItemRecord is one planning item as stored by the remote service
type ItemRecord struct {
	ID       string // empty until the first push creates it
	Kind     ItemKind
	Team     string
	Release  string
	Name     string
	Status   string
	Effort   *int // nil when unset
	Owner    string
	ParentID string

	// UpdatedAt is maintained by the remote service and never rendered
	UpdatedAt time.Time
}

// Key identifies the item across document revisions. Saved items use
// their remote id; unsaved items fall back to kind and name.
func (r ItemRecord) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return "new:" + r.Kind.String() + ":" + r.Name
}

// IsNew reports whether the item has never been saved remotely
func (r ItemRecord) IsNew() bool {
	return r.ID == ""
}

// Value returns the canonical string form of a field
func (r ItemRecord) Value(f Field) string {
	switch f {
	case FieldName:
		return r.Name
	case FieldStatus:
		return r.Status
	case FieldEffort:
		return FormatEffort(r.Effort)
	case FieldOwner:
		return r.Owner
	case FieldParent:
		return r.ParentID
	default:
		return ""
	}
}

// Equal compares the editable fields and identity, ignoring UpdatedAt
func (r ItemRecord) Equal(o ItemRecord) bool {
	if r.ID != o.ID || r.Kind != o.Kind || r.Team != o.Team || r.Release != o.Release {
		return false
	}
	for _, f := range EditableFields {
		if r.Value(f) != o.Value(f) {
			return false
		}
	}
	return true
}

// FormatEffort renders an effort value; unset renders as ""
func FormatEffort(e *int) string {
	if e == nil {
		return ""
	}
	return strconv.Itoa(*e)
}

// ParseEffort parses a rendered effort value. Empty input means unset.
func ParseEffort(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, &FieldError{Field: FieldEffort, Value: s, Reason: "not an integer"}
	}
	if n < 0 {
		return nil, &FieldError{Field: FieldEffort, Value: s, Reason: "must not be negative"}
	}
	return &n, nil
}

// Effort is a helper for building records with a set effort
func Effort(n int) *int {
	return &n
}

// FieldError reports an invalid field value
type FieldError struct {
	Field  Field
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	return string(e.Field) + " " + strconv.Quote(e.Value) + ": " + e.Reason
}

// ItemPatch carries a partial update for one item. Only fields present
// in Set are sent to the remote service.
type ItemPatch struct {
	Set map[Field]string
}

// NewItemPatch returns an empty patch
func NewItemPatch() ItemPatch {
	return ItemPatch{Set: make(map[Field]string)}
}

// Apply returns a copy of r with the patch applied
func (p ItemPatch) Apply(r ItemRecord) (ItemRecord, error) {
	for f, v := range p.Set {
		switch f {
		case FieldName:
			r.Name = v
		case FieldStatus:
			r.Status = v
		case FieldEffort:
			e, err := ParseEffort(v)
			if err != nil {
				return r, err
			}
			r.Effort = e
		case FieldOwner:
			r.Owner = v
		case FieldParent:
			r.ParentID = v
		}
	}
	return r, nil
}

// Inverse returns the patch that restores the fields of before which p
// changes.
func (p ItemPatch) Inverse(before ItemRecord) ItemPatch {
	inv := NewItemPatch()
	for f := range p.Set {
		inv.Set[f] = before.Value(f)
	}
	return inv
}

// IsEmpty reports whether the patch changes nothing
func (p ItemPatch) IsEmpty() bool {
	return len(p.Set) == 0
}
