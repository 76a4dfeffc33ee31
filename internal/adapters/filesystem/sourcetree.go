package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	gitignore "github.com/sabhiram/go-gitignore"

	"specbook/internal/ports"
)

// DefaultIgnorePatterns are always applied on top of .gitignore
var DefaultIgnorePatterns = []string{
	".git",
	".specbook",
	"node_modules",
	".DS_Store",
}

// SourceTree implements ports.SourceTree by walking the workspace
type SourceTree struct {
	fsys       fs.FS
	ignorer    *gitignore.GitIgnore
	maxFiles   int
	detectText bool
}

var _ ports.SourceTree = (*SourceTree)(nil)

// SourceTreeOption configures the SourceTree
type SourceTreeOption func(*SourceTree)

// WithMaxFiles caps the number of candidate files (0 means no cap)
func WithMaxFiles(n int) SourceTreeOption {
	return func(t *SourceTree) {
		t.maxFiles = n
	}
}

// WithBinaryDetection skips files whose content is not text
func WithBinaryDetection(enabled bool) SourceTreeOption {
	return func(t *SourceTree) {
		t.detectText = enabled
	}
}

// NewSourceTree creates a source tree over fsys. Ignore rules are the
// defaults, the root .gitignore of fsys if any, and extra.
func NewSourceTree(fsys fs.FS, extra []string, opts ...SourceTreeOption) *SourceTree {
	t := &SourceTree{
		fsys:       fsys,
		ignorer:    loadIgnorer(fsys, extra),
		detectText: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewWorkspaceSourceTree creates a source tree rooted at a directory
func NewWorkspaceSourceTree(workspace string, extra []string, opts ...SourceTreeOption) *SourceTree {
	return NewSourceTree(os.DirFS(workspace), extra, opts...)
}

func loadIgnorer(fsys fs.FS, extra []string) *gitignore.GitIgnore {
	patterns := append([]string(nil), DefaultIgnorePatterns...)
	if content, err := fs.ReadFile(fsys, ".gitignore"); err == nil {
		patterns = append(patterns, strings.Split(string(content), "\n")...)
	}
	patterns = append(patterns, extra...)
	return gitignore.CompileIgnoreLines(patterns...)
}

// ListFiles returns the sorted candidate files and their directory tree
func (t *SourceTree) ListFiles(ctx context.Context) (*ports.SourceListing, error) {
	var files []string
	err := fs.WalkDir(t.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p == "." {
			return nil
		}
		if d.IsDir() {
			if t.ignorer.MatchesPath(p + "/") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || t.ignorer.MatchesPath(p) {
			return nil
		}
		if t.detectText && !t.isText(p) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk workspace: %w", err)
	}

	sort.Strings(files)

	listing := &ports.SourceListing{Files: files}
	if t.maxFiles > 0 && len(files) > t.maxFiles {
		listing.Files = files[:t.maxFiles]
		listing.Truncated = true
	}
	listing.DirectoryTree = RenderTree(listing.Files)
	return listing, nil
}

func (t *SourceTree) isText(p string) bool {
	f, err := t.fsys.Open(p)
	if err != nil {
		return false
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return false
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// RenderTree renders sorted slash-separated paths as an indented tree.
// Directories end with a slash.
func RenderTree(files []string) string {
	var b strings.Builder
	var open []string // directory components of the previous file

	for _, f := range files {
		dir, name := path.Split(f)
		parts := strings.Split(strings.TrimSuffix(dir, "/"), "/")
		if dir == "" {
			parts = nil
		}

		common := 0
		for common < len(parts) && common < len(open) && parts[common] == open[common] {
			common++
		}
		for i := common; i < len(parts); i++ {
			fmt.Fprintf(&b, "%s%s/\n", strings.Repeat("  ", i), parts[i])
		}
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", len(parts)), name)
		open = parts
	}
	return b.String()
}
