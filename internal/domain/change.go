package domain

import "time"

// ChangeSource classifies who changed a field
type ChangeSource string

const (
	SourceUserEdit        ChangeSource = "user-edit"
	SourceRemoteUpdate    ChangeSource = "remote-update"
	SourceBothConflicting ChangeSource = "both-conflicting"
	SourceNewItem         ChangeSource = "new-item"
	SourceRemovedItem     ChangeSource = "removed-item"
)

// FieldChange is one detected difference for one field of one item
// between two document revisions.
type FieldChange struct {
	ItemKey    string
	ItemID     string
	ItemName   string
	Field      Field
	Old        string
	New        string
	DetectedAt time.Time
}

// AttributedChange is a FieldChange tagged with its source. Remote holds
// the fresh remote value when one was compared.
type AttributedChange struct {
	FieldChange
	Source ChangeSource
	Remote string
}

// IsConflict reports whether the change blocks a push
func (c AttributedChange) IsConflict() bool {
	return c.Source == SourceBothConflicting
}

// ConflictHint explains a conflict to a human instead of resolving it.
// Base is the value at the last sync.
type ConflictHint struct {
	ItemID   string
	ItemName string
	Field    Field
	Base     string
	Local    string
	Remote   string
	Message  string
}

// RemovedRemotely is the remote value reported for items that no
// longer exist on the remote service.
const RemovedRemotely = "<deleted>"
