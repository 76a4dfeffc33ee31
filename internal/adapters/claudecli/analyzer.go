package claudecli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"specbook/internal/domain"
	"specbook/internal/ports"
)

// Analyzer implements ports.MappingAnalyzer using Claude Code CLI
type Analyzer struct {
	binary string
	model  string
	dir    string
}

var _ ports.MappingAnalyzer = (*Analyzer)(nil)

// Option configures the Analyzer
type Option func(*Analyzer)

// WithModel sets the Claude model to use
func WithModel(model string) Option {
	return func(a *Analyzer) {
		a.model = model
	}
}

// WithBinary overrides the claude executable
func WithBinary(path string) Option {
	return func(a *Analyzer) {
		a.binary = path
	}
}

// WithWorkDir runs the CLI inside the workspace
func WithWorkDir(dir string) Option {
	return func(a *Analyzer) {
		a.dir = dir
	}
}

// NewAnalyzer creates a new Claude CLI analyzer
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		binary: "claude",
		model:  "sonnet",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// claudeResponse represents the JSON output from claude CLI
type claudeResponse struct {
	Type         string      `json:"type"`
	Subtype      string      `json:"subtype"`
	DurationMS   int         `json:"duration_ms"`
	IsError      bool        `json:"is_error"`
	NumTurns     int         `json:"num_turns"`
	Result       string      `json:"result"`
	SessionID    string      `json:"session_id"`
	TotalCostUSD float64     `json:"total_cost_usd"`
	Usage        claudeUsage `json:"usage"`
}

type claudeUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// Analyze runs one non-interactive claude invocation with the prompts
func (a *Analyzer) Analyze(ctx context.Context, req ports.AnalyzeRequest) (*ports.AnalyzeResult, error) {
	args := []string{
		"-p", req.UserPrompt,
		"--output-format", "json",
		"--model", a.model,
	}
	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}

	cmd := exec.CommandContext(ctx, a.binary, args...)
	cmd.Dir = a.dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("claude CLI error: %s", strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("claude CLI error: %w", err)
	}

	res, err := parseResponse(output)
	if err != nil {
		return nil, err
	}
	res.DirectoryTree = req.DirectoryTree
	return res, nil
}

// parseResponse unwraps the CLI envelope. The result text is returned
// verbatim; decoding the mapping records happens upstream.
func parseResponse(output []byte) (*ports.AnalyzeResult, error) {
	var response claudeResponse
	if err := json.Unmarshal(output, &response); err != nil {
		return nil, fmt.Errorf("failed to parse claude response: %w", err)
	}

	if response.IsError {
		return nil, fmt.Errorf("claude returned an error: %s", response.Result)
	}

	u := response.Usage
	return &ports.AnalyzeResult{
		RawResponse: response.Result,
		TokenUsage: domain.TokenUsage{
			InputTokens:  u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens,
			OutputTokens: u.OutputTokens,
		},
	}, nil
}

// IsAvailable checks if the claude CLI is installed and accessible
func (a *Analyzer) IsAvailable() bool {
	_, err := exec.LookPath(a.binary)
	return err == nil
}
