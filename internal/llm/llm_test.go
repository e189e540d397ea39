// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"text/template"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	backoffBase = time.Millisecond
}

func TestParseJSON(t *testing.T) {
	type steps struct {
		Steps []struct {
			Action string `json:"action"`
		} `json:"steps"`
	}
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"bare", `{"steps":[{"action":"a"}]}`, 1, false},
		{"fenced", "```json\n{\"steps\":[{\"action\":\"a\"},{\"action\":\"b\"}]}\n```", 2, false},
		{"prose around", "Here is the plan:\n{\"steps\":[]}\nGood luck.", 0, false},
		{"no object", "I cannot help with that.", 0, true},
		{"broken", `{"steps":[{"action":}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got steps
			err := ParseJSON(tt.raw, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got.Steps, tt.want)
		})
	}
}

func TestParseJSONNoObjectSentinel(t *testing.T) {
	var v map[string]any
	assert.ErrorIs(t, ParseJSON("nothing here", &v), ErrNoJSON)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "gantt\n  title X", StripFences("```mermaid\ngantt\n  title X\n```"))
	assert.Equal(t, "plain", StripFences("  plain  "))
}

func TestRetryingGenerate(t *testing.T) {
	calls := 0
	g := WithRetry(GeneratorFunc(func(_ context.Context, _ string) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("overloaded")
		}
		return "ok", nil
	}), 3)

	got, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestRetryingGivesUp(t *testing.T) {
	calls := 0
	g := WithRetry(GeneratorFunc(func(_ context.Context, _ string) (string, error) {
		calls++
		return "", errors.New("down")
	}), 2)

	_, err := g.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 3, calls)
}

func TestGenerateStreamFallsBackToOneChunk(t *testing.T) {
	var chunks []string
	text, err := GenerateStream(context.Background(), GeneratorFunc(func(_ context.Context, _ string) (string, error) {
		return "whole", nil
	}), "p", func(c string) { chunks = append(chunks, c) })
	require.NoError(t, err)
	assert.Equal(t, "whole", text)
	assert.Equal(t, []string{"whole"}, chunks)
}

func TestRender(t *testing.T) {
	tmpl := template.Must(template.New("t").Parse("Topic: {{.Topic}}"))
	got, err := Render(tmpl, struct{ Topic string }{"graphs"})
	require.NoError(t, err)
	assert.Equal(t, "Topic: graphs", got)
}

func withClaudeServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	old := claudeAPIURL
	claudeAPIURL = ts.URL
	t.Cleanup(func() { claudeAPIURL = old })
}

func TestClaudeGenerate(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 4096, req.MaxTokens)
		assert.False(t, req.Stream)
		assert.Equal(t, "hello", req.Messages[0].Content)

		fmt.Fprint(w, `{"content":[{"type":"text","text":"Hi "},{"type":"tool_use"},{"type":"text","text":"there"}]}`)
	})

	c := &ClaudeBackend{APIKey: "test-key", Model: "test-model"}
	got, err := c.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", got)
}

func TestClaudeGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{"http error", http.StatusBadRequest, `{"error":"bad"}`, nil, "returned 400"},
		{"empty content", http.StatusOK, `{"content":[]}`, ErrEmptyResponse, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withClaudeServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			c := &ClaudeBackend{APIKey: "k", Model: "m"}
			_, err := c.Generate(context.Background(), "p")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestClaudeStream(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			`{"type":"message_start"}`,
			`{"type":"content_block_start"}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"# Intro"}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"duction"}}`,
			`{"type":"content_block_stop"}`,
			`{"type":"message_stop"}`,
		}
		for _, e := range events {
			fmt.Fprintf(w, "event: x\ndata: %s\n\n", e)
		}
	})

	c := &ClaudeBackend{APIKey: "k", Model: "m"}
	var chunks []string
	text, err := c.Stream(context.Background(), "p", func(s string) { chunks = append(chunks, s) })
	require.NoError(t, err)
	assert.Equal(t, "# Introduction", text)
	assert.Equal(t, []string{"# Intro", "duction"}, chunks)
}

func TestClaudeStreamError(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"partial\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	})

	c := &ClaudeBackend{APIKey: "k", Model: "m"}
	text, err := c.Stream(context.Background(), "p", func(string) {})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "overloaded_error"))
	assert.Equal(t, "partial", text)
}

func TestRetryingStreamDelegates(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"a\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	})

	g := WithRetry(&ClaudeBackend{APIKey: "k", Model: "m"}, 2)
	var chunks []string
	text, err := GenerateStream(context.Background(), g, "p", func(s string) { chunks = append(chunks, s) })
	require.NoError(t, err)
	assert.Equal(t, "a", text)
	assert.Equal(t, []string{"a"}, chunks)
}
