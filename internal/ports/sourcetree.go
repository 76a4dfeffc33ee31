package ports

import "context"

// SourceListing is the set of files the provider is allowed to reference
type SourceListing struct {
	Files         []string // Workspace-relative, slash separated, sorted
	DirectoryTree string   // Indented rendering of Files
	Truncated     bool     // Set when the candidate limit cut the listing short
}

// SourceTree enumerates candidate source files of the workspace.
// Ignore rules are the implementation's concern.
type SourceTree interface {
	ListFiles(ctx context.Context) (*SourceListing, error)
}
