package anthropicapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v5"

	"specbook/internal/domain"
	"specbook/internal/ports"
)

const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 16000
)

// Analyzer implements ports.MappingAnalyzer against the Messages API
type Analyzer struct {
	apiKey     string
	model      string
	maxTokens  int64
	maxTries   uint
	maxElapsed time.Duration
	backOff    backoff.BackOff
	clientOpts []option.RequestOption
}

var _ ports.MappingAnalyzer = (*Analyzer)(nil)

// Option configures the Analyzer
type Option func(*Analyzer)

// WithModel sets the model name
func WithModel(model string) Option {
	return func(a *Analyzer) {
		if model != "" {
			a.model = model
		}
	}
}

// WithMaxTokens caps the response length
func WithMaxTokens(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxTokens = int64(n)
		}
	}
}

// WithRetry bounds retries of transient failures
func WithRetry(maxTries int, maxElapsed time.Duration) Option {
	return func(a *Analyzer) {
		if maxTries > 0 {
			a.maxTries = uint(maxTries)
		}
		a.maxElapsed = maxElapsed
	}
}

// WithBackOff replaces the retry schedule
func WithBackOff(b backoff.BackOff) Option {
	return func(a *Analyzer) {
		a.backOff = b
	}
}

// WithBaseURL points the client at another endpoint
func WithBaseURL(url string) Option {
	return func(a *Analyzer) {
		a.clientOpts = append(a.clientOpts, option.WithBaseURL(url))
	}
}

// NewAnalyzer creates an analyzer authenticated with apiKey
func NewAnalyzer(apiKey string, opts ...Option) *Analyzer {
	a := &Analyzer{
		apiKey:     apiKey,
		model:      DefaultModel,
		maxTokens:  DefaultMaxTokens,
		maxTries:   3,
		maxElapsed: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze sends the prompts as one message and returns the text answer
func (a *Analyzer) Analyze(ctx context.Context, req ports.AnalyzeRequest) (*ports.AnalyzeResult, error) {
	if a.apiKey == "" {
		return nil, errors.New("anthropic API key is not set")
	}

	// Retries are driven by backoff so the SDK must not retry on its own
	opts := append([]option.RequestOption{
		option.WithAPIKey(a.apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(5 * time.Minute),
	}, a.clientOpts...)
	client := anthropic.NewClient(opts...)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	operation := func() (*anthropic.Message, error) {
		msg, err := client.Messages.New(ctx, params)
		if err != nil {
			if !isRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return msg, nil
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithMaxTries(a.maxTries),
		backoff.WithMaxElapsedTime(a.maxElapsed),
	}
	if a.backOff != nil {
		retryOpts = append(retryOpts, backoff.WithBackOff(a.backOff))
	}

	msg, err := backoff.Retry(ctx, operation, retryOpts...)
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &ports.AnalyzeResult{
		RawResponse: text.String(),
		TokenUsage: domain.TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
		DirectoryTree: req.DirectoryTree,
	}, nil
}

// isRetryable reports whether a failed call may succeed when repeated:
// rate limits, overload and server errors, and transport failures
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	return true
}

// IsAvailable returns true when an API key is configured
func (a *Analyzer) IsAvailable() bool {
	return a.apiKey != ""
}
