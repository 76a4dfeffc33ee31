package ports

import "os/exec"

// EditorOpener opens mapped source files in the user's editor
type EditorOpener interface {
	// Command returns an exec.Cmd that opens path at line (line <= 0 opens at
	// the top). Suitable for bubbletea's ExecProcess.
	Command(path string, line int) (*exec.Cmd, error)
}
