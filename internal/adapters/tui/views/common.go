package views

import (
	"plansync/internal/application"
	"plansync/internal/domain"
)

// ViewState contains common state shared by all view models.
// Embed this struct in view models to get width/height and message handling.
type ViewState struct {
	Width      int
	Height     int
	Message    string
	MessageErr bool
}

// SetSize updates the view dimensions
func (s *ViewState) SetSize(width, height int) {
	s.Width = width
	s.Height = height
}

// SetMessage sets a message to display in the view
func (s *ViewState) SetMessage(msg string, isErr bool) {
	s.Message = msg
	s.MessageErr = isErr
}

// ClearMessage clears the current message
func (s *ViewState) ClearMessage() {
	s.Message = ""
	s.MessageErr = false
}

// View switching messages

type SwitchToLogMsg struct{}

type SwitchToHelpMsg struct{}

type SwitchToTargetMsg struct{}

type SwitchToEntryMsg struct {
	Entry domain.AuditEntry
}

type SwitchToConfirmMsg struct {
	Op     domain.Operation
	Target domain.Target
}

// TargetChangedMsg selects another plan to review
type TargetChangedMsg struct {
	Target domain.Target
}

// OpenEditorMsg asks the app to edit a plan document
type OpenEditorMsg struct {
	Target domain.Target
}

// RunOpMsg asks the app to run a confirmed sync operation
type RunOpMsg struct {
	Op     domain.Operation
	Target domain.Target
}

// OpFinishedMsg reports a sync operation run from the app
type OpFinishedMsg struct {
	Result *application.Result
	Err    error
}
