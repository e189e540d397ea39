// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm abstracts the generative model behind a one-method interface
// so every workflow step can be tested with a scripted mock.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// ErrNoJSON is returned by ParseJSON when the text holds no JSON value.
var ErrNoJSON = errors.New("llm: no JSON object in response")

// Generator produces a completion for a single-turn prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Streamer is implemented by generators that can deliver a completion
// incrementally. onChunk is called in order, from the calling goroutine,
// and the full text is returned at the end.
type Streamer interface {
	Generator
	Stream(ctx context.Context, prompt string, onChunk func(string)) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// GenerateStream streams through g when it implements Streamer. Otherwise
// it generates the whole completion and hands it to onChunk once.
func GenerateStream(ctx context.Context, g Generator, prompt string, onChunk func(string)) (string, error) {
	if s, ok := g.(Streamer); ok {
		return s.Stream(ctx, prompt, onChunk)
	}
	text, err := g.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if text != "" {
		onChunk(text)
	}
	return text, nil
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// Retrying retries failed Generate calls with exponential backoff.
// Streams are not retried because chunks may already have been delivered.
type Retrying struct {
	Inner      Generator
	MaxRetries int
}

// WithRetry wraps g so failed calls are retried up to maxRetries times.
func WithRetry(g Generator, maxRetries int) *Retrying {
	return &Retrying{Inner: g, MaxRetries: maxRetries}
}

// Generate calls the inner generator, retrying on error.
func (r *Retrying) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := r.Inner.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", r.MaxRetries, lastErr)
}

// Stream delegates to the inner generator's Stream when it has one, or
// falls back to a retried Generate delivered as one chunk.
func (r *Retrying) Stream(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	if s, ok := r.Inner.(Streamer); ok {
		return s.Stream(ctx, prompt, onChunk)
	}
	text, err := r.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if text != "" {
		onChunk(text)
	}
	return text, nil
}

// Render executes a prompt template.
func Render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// ParseJSON decodes the first JSON object in raw into v. Models often wrap
// JSON in Markdown code fences or surround it with prose; both are
// tolerated. The object spans from the first '{' to the last '}'.
func ParseJSON(raw string, v any) error {
	s := StripFences(raw)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("parsing model JSON: %w", err)
	}
	return nil
}

// StripFences removes a surrounding Markdown code fence such as ```json ... ```.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
