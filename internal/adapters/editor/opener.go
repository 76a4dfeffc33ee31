package editor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"specbook/internal/ports"
)

// Opener implements ports.EditorOpener
type Opener struct {
	workspace string
}

var _ ports.EditorOpener = (*Opener)(nil)

// NewOpener creates an opener that resolves relative paths against workspace
func NewOpener(workspace string) *Opener {
	return &Opener{workspace: workspace}
}

// Command returns an exec.Cmd that opens path at line in the user's editor
func (o *Opener) Command(path string, line int) (*exec.Cmd, error) {
	editor := o.findEditor()
	if editor == "" {
		return nil, fmt.Errorf("no editor found: set $EDITOR environment variable")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(o.workspace, filepath.FromSlash(path))
	}

	// $EDITOR may carry flags, e.g. "code --wait"
	fields := strings.Fields(editor)
	args := append(fields[1:], lineArgs(fields[0], path, line)...)

	cmd := exec.Command(fields[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd, nil
}

// lineArgs builds the editor-specific arguments for jumping to a line
func lineArgs(editor, path string, line int) []string {
	if line <= 0 {
		return []string{path}
	}
	switch filepath.Base(editor) {
	case "code", "code-insiders", "cursor":
		return []string{"--goto", path + ":" + strconv.Itoa(line)}
	case "nvim", "vim", "vi", "nano", "emacs", "hx", "kak", "micro":
		return []string{"+" + strconv.Itoa(line), path}
	default:
		return []string{path}
	}
}

// FirstLine extracts the starting line of a line range such as "12-40" or "12"
func FirstLine(lineRange string) int {
	start, _, _ := strings.Cut(strings.TrimSpace(lineRange), "-")
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(start), "L"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// findEditor returns the editor to use
func (o *Opener) findEditor() string {
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}

	if visual := os.Getenv("VISUAL"); visual != "" {
		return visual
	}

	editors := []string{"nvim", "vim", "vi", "nano", "code"}
	for _, editor := range editors {
		if path, err := exec.LookPath(editor); err == nil {
			return path
		}
	}

	return ""
}
