// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/proposal-engine/internal/cache"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// WithTimeout bounds h to d. When the deadline passes the call is
// abandoned and an empty, successful result with TimedOut set is returned.
// h runs on its own goroutine, so a panic there is recovered here and
// returned as an error.
func WithTimeout(h Handler, d time.Duration) Handler {
	return &bounded{inner: h, d: d}
}

type bounded struct {
	inner Handler
	d     time.Duration
}

func (b *bounded) Name() string { return b.inner.Name() }

func (b *bounded) Invoke(ctx context.Context, params Params) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, b.d)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("%s panicked: %v", b.Name(), p)}
			}
		}()
		res, err := b.inner.Invoke(ctx, params)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() == context.DeadlineExceeded {
			return Result{TimedOut: true}, nil
		}
		return o.res, o.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return Result{TimedOut: true}, nil
		}
		return Result{}, ctx.Err()
	}
}

// cachedResult is the stored form of a successful Result.
type cachedResult struct {
	Papers  []types.PaperRecord `json:"papers,omitempty"`
	Web     []types.WebRecord   `json:"web,omitempty"`
	Text    string              `json:"text,omitempty"`
	Subject string              `json:"subject,omitempty"`
}

// Cached serves repeated calls of h with identical parameters from store.
// Only successful results are stored. A failed lookup falls through to h
// and a failed write is logged; neither fails the call.
func Cached(h Handler, store *cache.Store, log *zap.Logger) Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &cached{inner: h, store: store, log: log.Named("cache")}
}

type cached struct {
	inner Handler
	store *cache.Store
	log   *zap.Logger
}

func (c *cached) Name() string { return c.inner.Name() }

func (c *cached) Invoke(ctx context.Context, params Params) (Result, error) {
	key := cache.Fingerprint(Canonical(c.inner.Name()), params)

	var hit cachedResult
	ok, err := c.store.GetJSON(ctx, key, &hit)
	if err != nil {
		c.log.Warn("cache lookup failed", zap.String("action", c.Name()), zap.Error(err))
	} else if ok {
		return Result{Papers: hit.Papers, Web: hit.Web, Text: hit.Text, Subject: hit.Subject}, nil
	}

	res, err := c.inner.Invoke(ctx, params)
	if err != nil {
		return res, err
	}
	if res.OK() && !res.TimedOut {
		err := c.store.SetJSON(ctx, key, cachedResult{Papers: res.Papers, Web: res.Web, Text: res.Text, Subject: res.Subject})
		if err != nil {
			c.log.Warn("caching tool result failed", zap.String("action", c.Name()), zap.Error(err))
		}
	}
	return res, nil
}
