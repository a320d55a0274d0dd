package ports

import "os/exec"

// EditorOpener opens plan documents in the user's editor
type EditorOpener interface {
	// OpenFile opens path and waits for the editor to exit
	OpenFile(path string) error

	// Command returns the editor process without starting it, for
	// callers such as bubbletea's ExecProcess that run it themselves
	Command(path string) (*exec.Cmd, error)
}
