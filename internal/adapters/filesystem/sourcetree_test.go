package filesystem

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
)

func workspaceFS() fstest.MapFS {
	return fstest.MapFS{
		".gitignore":                  {Data: []byte("*.log\ncoverage/\n# comment\n")},
		"go.mod":                      {Data: []byte("module demo\n")},
		"src/auth/login.ts":           {Data: []byte("export function login() {}\n")},
		"src/auth/login.test.ts":      {Data: []byte("test('login', () => {})\n")},
		"src/report.ts":               {Data: []byte("export const report = 1\n")},
		"debug.log":                   {Data: []byte("noise\n")},
		"coverage/lcov.info":          {Data: []byte("TN:\n")},
		"node_modules/pkg/index.js":   {Data: []byte("module.exports = {}\n")},
		".git/HEAD":                   {Data: []byte("ref: refs/heads/main\n")},
		".specbook/mapping.json":      {Data: []byte("{}\n")},
		"assets/logo.png":             {Data: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")},
		"generated/schema.sql":        {Data: []byte("CREATE TABLE t (id int);\n")},
	}
}

func TestSourceTree_ListFiles(t *testing.T) {
	tree := NewSourceTree(workspaceFS(), []string{"generated"})

	listing, err := tree.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}

	want := ".gitignore,go.mod,src/auth/login.test.ts,src/auth/login.ts,src/report.ts"
	if got := strings.Join(listing.Files, ","); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if listing.Truncated {
		t.Error("did not expect truncation")
	}
}

func TestSourceTree_KeepsBinaryWhenDetectionOff(t *testing.T) {
	tree := NewSourceTree(workspaceFS(), nil, WithBinaryDetection(false))

	listing, err := tree.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if !strings.Contains(strings.Join(listing.Files, ","), "assets/logo.png") {
		t.Errorf("expected binary file to be listed, got %v", listing.Files)
	}
}

func TestSourceTree_MaxFiles(t *testing.T) {
	tree := NewSourceTree(workspaceFS(), nil, WithMaxFiles(2))

	listing, err := tree.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(listing.Files) != 2 || !listing.Truncated {
		t.Errorf("expected 2 files and truncation, got %v (truncated=%v)", listing.Files, listing.Truncated)
	}
}

func TestSourceTree_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewSourceTree(workspaceFS(), nil).ListFiles(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestRenderTree(t *testing.T) {
	got := RenderTree([]string{
		"go.mod",
		"src/auth/login.test.ts",
		"src/auth/login.ts",
		"src/report.ts",
		"web/app.ts",
	})
	want := "go.mod\n" +
		"src/\n" +
		"  auth/\n" +
		"    login.test.ts\n" +
		"    login.ts\n" +
		"  report.ts\n" +
		"web/\n" +
		"  app.ts\n"
	if got != want {
		t.Errorf("unexpected tree:\n%s\nwant:\n%s", got, want)
	}
}
