// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the tools and the model backend.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// throttled responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// MaxRetryAfter caps a server-supplied Retry-After delay.
var MaxRetryAfter = time.Minute

const defaultMaxRetries = 5

// Retryable reports whether a response status means "try again later":
// 429 Too Many Requests, 503 Service Unavailable, or 529 (model overloaded).
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusServiceUnavailable ||
		status == 529
}

// DoWithRetry executes an HTTP request and retries throttled responses
// with exponential backoff starting at RetryBaseDelay. A numeric
// Retry-After header overrides the computed delay, capped at MaxRetryAfter.
//
// When maxRetries is 0 the default (5) is used. Request bodies are replayed
// through req.GetBody, so requests built with http.NewRequest over a bytes
// reader can be retried. If the context is cancelled during a backoff wait
// the function returns ctx.Err(). After exhausting retries the last
// throttled response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if client == nil {
		client = http.DefaultClient
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		backoff := retryAfter(resp.Header.Get("Retry-After"))
		if backoff == 0 {
			backoff = time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// retryAfter parses a Retry-After header given in seconds. HTTP-date
// values and unparseable headers yield zero.
func retryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	secs, err := strconv.Atoi(h)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > MaxRetryAfter {
		return MaxRetryAfter
	}
	return d
}
