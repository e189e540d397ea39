// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/proposal-engine/internal/httputil"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const anthropicVersion = "2023-06-01"

// ClaudeBackend calls the Claude Messages API.
type ClaudeBackend struct {
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client
}

// NewClaudeBackend builds a backend from the AI configuration.
func NewClaudeBackend(cfg types.AIConfig, client *http.Client) *ClaudeBackend {
	return &ClaudeBackend{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Client:    client,
	}
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
	Stream    bool            `json:"stream,omitempty"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// claudeStreamEvent is one server-sent event payload in a streamed response.
type claudeStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends prompt as a single user message and returns the text blocks joined.
func (c *ClaudeBackend) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.post(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	var b strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// Stream sends prompt with streaming enabled and calls onChunk for every
// text delta.
func (c *ClaudeBackend) Stream(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	resp, err := c.post(ctx, prompt, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var ev claudeStreamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return full.String(), fmt.Errorf("decoding stream event: %w", err)
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				full.WriteString(ev.Delta.Text)
				onChunk(ev.Delta.Text)
			}
		case "error":
			msg := "unknown stream error"
			if ev.Error != nil {
				msg = ev.Error.Type + ": " + ev.Error.Message
			}
			return full.String(), fmt.Errorf("Claude stream error: %s", msg)
		case "message_stop":
			return full.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("reading stream: %w", err)
	}
	if full.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return full.String(), nil
}

func (c *ClaudeBackend) post(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	bodyBytes, err := json.Marshal(claudeRequest{
		Model:     c.Model,
		MaxTokens: maxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
		Stream:    stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("calling Claude API: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}
	return resp, nil
}
