package domain

import (
	"path"
	"strings"
)

// Classify decides whether a related file is an implementation or a test file.
// An explicit type always wins; otherwise the path shape decides.
func Classify(f RelatedFile) FileKind {
	switch f.Type {
	case FileImpl, FileTest:
		return f.Type
	}

	p := strings.ToLower(strings.ReplaceAll(f.FilePath, "\\", "/"))

	base := path.Base(p)
	parts := strings.Split(base, ".")
	// "foo.test.ts" needs at least a name, the marker and an extension
	for i := 1; i < len(parts)-1; i++ {
		if parts[i] == "test" || parts[i] == "spec" {
			return FileTest
		}
	}

	if strings.HasPrefix(p, "__tests__/") || strings.Contains(p, "/__tests__/") {
		return FileTest
	}
	if strings.HasPrefix(p, "test/") || strings.Contains(p, "/test/") {
		return FileTest
	}
	return FileImpl
}

// SplitFiles classifies files into implementation and test lists. A path is
// kept once, in the list of its first occurrence, so the two lists stay disjoint.
func SplitFiles(files []RelatedFile) (impl, test []RelatedFile) {
	impl = []RelatedFile{}
	test = []RelatedFile{}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if f.FilePath == "" || seen[f.FilePath] {
			continue
		}
		seen[f.FilePath] = true

		kind := Classify(f)
		f.Type = kind
		if kind == FileTest {
			test = append(test, f)
		} else {
			impl = append(impl, f)
		}
	}
	return impl, test
}
