// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tools is the tool invoker: a registry of named retrieval and
// generation actions that the workflow engine dispatches plan steps to.
// Handler failures never escape as Go errors or panics; they come back
// inside the Result.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Canonical action names.
const (
	ActionSearchPapers    = "search-papers"
	ActionSearchWeb       = "search-web"
	ActionSearchMetadata  = "search-metadata"
	ActionSummarize       = "summarize-document"
	ActionTimelineDiagram = "generate-timeline-diagram"
)

// ErrUnknownAction is stored in Result.Err when no handler is registered
// for the requested action.
var ErrUnknownAction = errors.New("unknown action")

// legacyNames maps action names used by older plans to canonical names.
var legacyNames = map[string]string{
	"search_arxiv_papers":    ActionSearchPapers,
	"search_web_content":     ActionSearchWeb,
	"search_crossref_papers": ActionSearchMetadata,
	"summarize_pdf":          ActionSummarize,
	"generate_gantt_chart":   ActionTimelineDiagram,
}

// Canonical returns the registry name for action. Legacy names map to
// their replacement and underscores are read as hyphens.
func Canonical(action string) string {
	a := strings.ToLower(strings.TrimSpace(action))
	a = strings.TrimSuffix(a, "_tool")
	if c, ok := legacyNames[a]; ok {
		return c
	}
	return strings.ReplaceAll(a, "_", "-")
}

// Params are the step parameters passed to a handler unchanged.
type Params map[string]any

// String returns the first non-empty string value among keys.
func (p Params) String(keys ...string) string {
	for _, k := range keys {
		switch v := p[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case fmt.Stringer:
			return v.String()
		}
	}
	return ""
}

// Int returns the integer value of key, accepting JSON numbers and numeric
// strings. def is returned when the key is absent, malformed, or not positive.
func (p Params) Int(key string, def int) int {
	var n int
	switch v := p[key].(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		n = parsed
	default:
		return def
	}
	if n <= 0 {
		return def
	}
	return n
}

// Result is the outcome of one invocation.
type Result struct {
	Action string
	Papers []types.PaperRecord
	Web    []types.WebRecord

	// Text carries generated output (document summaries, timeline source).
	Text string

	// Subject names what Text is about, e.g. the identifier of a
	// summarized document.
	Subject string

	// TimedOut is set when a bounded handler was abandoned.
	TimedOut bool

	Err error
}

// OK reports whether the invocation succeeded. A call that returns no
// records and no text is a failure; an abandoned bounded call is not.
func (r Result) OK() bool {
	if r.Err != nil {
		return false
	}
	return r.TimedOut || len(r.Papers) > 0 || len(r.Web) > 0 || strings.TrimSpace(r.Text) != ""
}

// Summary describes the result in one line for the execution memory.
func (r Result) Summary() string {
	switch {
	case r.Err != nil:
		return "error: " + r.Err.Error()
	case r.TimedOut:
		return "timed out, no result"
	case len(r.Papers) > 0:
		titles := make([]string, len(r.Papers))
		for i, p := range r.Papers {
			titles[i] = p.Title
		}
		return fmt.Sprintf("%d papers: %s", len(r.Papers), strings.Join(titles, "; "))
	case len(r.Web) > 0:
		titles := make([]string, len(r.Web))
		for i, w := range r.Web {
			titles[i] = w.Title
		}
		return fmt.Sprintf("%d results: %s", len(r.Web), strings.Join(titles, "; "))
	case strings.TrimSpace(r.Text) != "":
		return strings.Join(strings.Fields(r.Text), " ")
	default:
		return "no results"
	}
}

// Handler implements one action.
type Handler interface {
	Name() string
	Invoke(ctx context.Context, params Params) (Result, error)
}

// HandlerFunc adapts a function to Handler under the given name.
func HandlerFunc(name string, fn func(ctx context.Context, params Params) (Result, error)) Handler {
	return funcHandler{name: name, fn: fn}
}

type funcHandler struct {
	name string
	fn   func(ctx context.Context, params Params) (Result, error)
}

func (h funcHandler) Name() string { return h.name }

func (h funcHandler) Invoke(ctx context.Context, params Params) (Result, error) {
	return h.fn(ctx, params)
}

// Invoker dispatches actions to registered handlers. It is safe for
// concurrent use and is shared by every session.
type Invoker struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      *zap.Logger
}

// NewInvoker returns an invoker with the given handlers registered.
func NewInvoker(log *zap.Logger, handlers ...Handler) *Invoker {
	if log == nil {
		log = zap.NewNop()
	}
	inv := &Invoker{handlers: make(map[string]Handler), log: log.Named("tools")}
	for _, h := range handlers {
		inv.Register(h)
	}
	return inv
}

// Register adds h, replacing any handler with the same name.
func (inv *Invoker) Register(h Handler) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.handlers[Canonical(h.Name())] = h
}

// Has reports whether action resolves to a registered handler.
func (inv *Invoker) Has(action string) bool {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	_, ok := inv.handlers[Canonical(action)]
	return ok
}

// Actions returns the registered action names, sorted.
func (inv *Invoker) Actions() []string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	names := make([]string, 0, len(inv.handlers))
	for n := range inv.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke runs action with params. It never panics; errors, including
// unknown actions and recovered handler panics, are returned in Result.Err.
func (inv *Invoker) Invoke(ctx context.Context, action string, params Params) (res Result) {
	name := Canonical(action)
	inv.mu.RLock()
	h, ok := inv.handlers[name]
	inv.mu.RUnlock()
	if !ok {
		return Result{Action: action, Err: fmt.Errorf("%w: %q", ErrUnknownAction, action)}
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = Result{Action: name, Err: fmt.Errorf("%s panicked: %v", name, p)}
		}
		fields := []zap.Field{
			zap.String("action", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("papers", len(res.Papers)),
			zap.Int("web", len(res.Web)),
		}
		if res.Err != nil {
			inv.log.Warn("tool failed", append(fields, zap.Error(res.Err))...)
			return
		}
		inv.log.Debug("tool finished", append(fields, zap.Bool("timed_out", res.TimedOut))...)
	}()

	if params == nil {
		params = Params{}
	}
	res, err := h.Invoke(ctx, params)
	res.Action = name
	if err != nil {
		res.Err = err
	}
	return res
}
