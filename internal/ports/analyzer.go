package ports

import (
	"context"

	"specbook/internal/domain"
)

// AnalyzeRequest is everything the provider needs for one batched scan
type AnalyzeRequest struct {
	Outline        string   // Numbered feature outline, one line per node
	ObjectIDs      []string // Ids of the nodes in the outline, in walk order
	CandidateFiles []string // Workspace-relative paths the provider may reference
	DirectoryTree  string
	SystemPrompt   string
	UserPrompt     string
}

// AnalyzeResult is the raw provider answer. Parsing it is the caller's job.
type AnalyzeResult struct {
	RawResponse   string
	TokenUsage    domain.TokenUsage
	DirectoryTree string
}

// MappingAnalyzer correlates features with source files using an AI provider
type MappingAnalyzer interface {
	// Analyze sends one batched request and returns the verbatim response
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error)

	// IsAvailable returns true if the provider can be reached (binary on PATH, API key set)
	IsAvailable() bool
}
