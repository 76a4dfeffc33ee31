package anthropicapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbook/internal/ports"
)

const messageBody = `{
	"id": "msg_01",
	"type": "message",
	"role": "assistant",
	"model": "claude-sonnet-4-5",
	"content": [
		{"type": "text", "text": "[{\"objectTitle\":"},
		{"type": "text", "text": "\"Login\"}]"}
	],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 120, "output_tokens": 30}
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzer_Analyze(t *testing.T) {
	var body map[string]any
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageBody)
	})

	a := NewAnalyzer("secret", WithBaseURL(srv.URL), WithModel("claude-haiku-4-5"))
	res, err := a.Analyze(context.Background(), ports.AnalyzeRequest{
		SystemPrompt:  "system text",
		UserPrompt:    "user text",
		DirectoryTree: "main.go\n",
	})
	require.NoError(t, err)

	assert.Equal(t, `[{"objectTitle":"Login"}]`, res.RawResponse)
	assert.Equal(t, int64(120), res.TokenUsage.InputTokens)
	assert.Equal(t, int64(30), res.TokenUsage.OutputTokens)
	assert.Equal(t, "main.go\n", res.DirectoryTree)

	assert.Equal(t, "claude-haiku-4-5", body["model"])
	system, _ := json.Marshal(body["system"])
	assert.Contains(t, string(system), "system text")
	messages, _ := json.Marshal(body["messages"])
	assert.Contains(t, string(messages), "user text")
}

func TestAnalyzer_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`)
			return
		}
		_, _ = io.WriteString(w, messageBody)
	})

	a := NewAnalyzer("secret",
		WithBaseURL(srv.URL),
		WithRetry(3, 0),
		WithBackOff(&backoff.ZeroBackOff{}),
	)
	res, err := a.Analyze(context.Background(), ports.AnalyzeRequest{UserPrompt: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RawResponse)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnalyzer_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})

	a := NewAnalyzer("bad", WithBaseURL(srv.URL), WithBackOff(&backoff.ZeroBackOff{}))
	_, err := a.Analyze(context.Background(), ports.AnalyzeRequest{UserPrompt: "x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAnalyzer_MissingKey(t *testing.T) {
	a := NewAnalyzer("")
	assert.False(t, a.IsAvailable())

	_, err := a.Analyze(context.Background(), ports.AnalyzeRequest{UserPrompt: "x"})
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(context.Canceled))
	assert.True(t, isRetryable(io.ErrUnexpectedEOF))
}
