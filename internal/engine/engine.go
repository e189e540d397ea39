// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine runs a research proposal session: clarify the topic,
// plan, gather literature with tools under a decision loop, draft the four
// sections, review and revise once, and persist the document.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/proposal-engine/internal/ledger"
	"github.com/pdiddy/proposal-engine/internal/llm"
	"github.com/pdiddy/proposal-engine/internal/memory"
	"github.com/pdiddy/proposal-engine/internal/review"
	"github.com/pdiddy/proposal-engine/internal/tools"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// ErrPersist marks a failure to write the final document. It is the only
// error that ends a run as failed.
var ErrPersist = errors.New("engine: persisting proposal failed")

// Sink receives stream messages. *bus.Registry satisfies it.
type Sink interface {
	Push(msg types.StreamMessage) (dropped bool)
}

// Clarifier waits for the user's answer to clarification questions. The
// context carries the wait deadline.
type Clarifier interface {
	Await(ctx context.Context, sessionID string, questions []string) (string, error)
}

// ClarifierFunc adapts a function to Clarifier.
type ClarifierFunc func(ctx context.Context, sessionID string, questions []string) (string, error)

// Await calls f.
func (f ClarifierFunc) Await(ctx context.Context, sessionID string, questions []string) (string, error) {
	return f(ctx, sessionID, questions)
}

// Config is the engine configuration, built once and shared read-only by
// every session.
type Config struct {
	types.EngineConfig

	// OutputDir receives <sessionId>.md and its side files.
	OutputDir string

	// BibTeX also writes <sessionId>.bib.
	BibTeX bool

	// MaxResults is used by the fallback search step.
	MaxResults int

	// Prompts overrides individual prompt templates.
	Prompts *Prompts
}

// Deps are the collaborators of an engine. Generator and Invoker are
// required; the rest have working defaults.
type Deps struct {
	Generator llm.Generator
	Invoker   *tools.Invoker

	// Sink receives progress and drafted text. Nil discards messages.
	Sink Sink

	// Clarifier answers clarification questions. Nil skips the wait.
	Clarifier Clarifier

	// Reviewer defaults to one backed by Generator.
	Reviewer *review.Reviewer

	// Summarizer defaults to one backed by Generator.
	Summarizer *memory.Summarizer

	// Scorer rates references for re-ranking. Defaults to a generator-backed scorer.
	Scorer ledger.Scorer

	Logger *zap.Logger
	Now    func() time.Time
}

// Engine runs sessions. It keeps no per-session state, so one engine may
// run many sessions concurrently.
type Engine struct {
	cfg        Config
	prompts    *Prompts
	gen        llm.Generator
	invoker    *tools.Invoker
	sink       Sink
	clarifier  Clarifier
	reviewer   *review.Reviewer
	summarizer *memory.Summarizer
	scorer     ledger.Scorer
	log        *zap.Logger
	now        func() time.Time
}

type discard struct{}

func (discard) Push(types.StreamMessage) bool { return false }

// New builds an engine from cfg and deps.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("creating engine: generator is required")
	}
	if deps.Invoker == nil {
		return nil, fmt.Errorf("creating engine: tool invoker is required")
	}
	if cfg.MaxIterations <= 0 {
		return nil, fmt.Errorf("creating engine: max iterations must be positive")
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("creating engine: output directory is required")
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}

	e := &Engine{
		cfg:        cfg,
		prompts:    cfg.Prompts.withDefaults(),
		gen:        deps.Generator,
		invoker:    deps.Invoker,
		sink:       deps.Sink,
		clarifier:  deps.Clarifier,
		reviewer:   deps.Reviewer,
		summarizer: deps.Summarizer,
		scorer:     deps.Scorer,
		log:        deps.Logger,
		now:        deps.Now,
	}
	if e.sink == nil {
		e.sink = discard{}
	}
	if e.reviewer == nil {
		e.reviewer = review.NewReviewer(deps.Generator)
	}
	if e.summarizer == nil {
		e.summarizer = memory.NewSummarizer(deps.Generator)
	}
	if e.scorer == nil {
		e.scorer = &generatorScorer{gen: deps.Generator, tmpl: e.prompts.Score}
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	e.log = e.log.Named("engine")
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// SessionOption customizes a new session.
type SessionOption func(*types.Session)

// WithID sets the session id instead of a random one.
func WithID(id string) SessionOption {
	return func(s *types.Session) { s.ID = id }
}

// WithClarification supplies the user's clarification up front, so the
// clarify step does not ask.
func WithClarification(answer string) SessionOption {
	return func(s *types.Session) { s.UserClarification = answer }
}

// WithGuidance pre-seeds revision guidance, turning the session into an
// improvement run of an earlier proposal. The run counts as the session's
// one revision cycle, so its own review never triggers another.
func WithGuidance(g *types.RevisionGuidance) SessionOption {
	return func(s *types.Session) {
		s.Guidance = g
		if g != nil && !g.Empty() {
			s.ImprovementAttempt = 1
		}
	}
}

// NewSession creates a session for topic with a random uuid id.
func (e *Engine) NewSession(topic string, opts ...SessionOption) *types.Session {
	limit := e.cfg.MaxIterations
	if e.cfg.MemoryCap > 0 && e.cfg.MemoryCap < limit {
		limit = e.cfg.MemoryCap
	}
	s := types.NewSession(uuid.NewString(), topic, limit)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes every step of the workflow on s and returns it. Tool and
// model failures degrade the result but never stop the run; only a
// failure to persist the document returns an error, wrapping ErrPersist.
func (e *Engine) Run(ctx context.Context, s *types.Session) (*types.Session, error) {
	log := e.log.With(zap.String("session_id", s.ID))
	log.Info("session started", zap.String("topic", s.Topic))
	start := e.now()

	e.clarify(ctx, s, log)
	e.plan(ctx, s, log)
	e.analyze(ctx, s, log)
	e.research(ctx, s, log)
	if e.cfg.Rerank {
		e.rerank(ctx, s, log)
	}
	e.draftSections(ctx, s, log)
	e.finalizeReferences(s, log)
	e.render(s, log)
	if e.cfg.Review {
		e.reviewAndImprove(ctx, s, log)
	}

	if err := e.persist(s); err != nil {
		s.Status = types.StatusFailed
		s.Err = err.Error()
		log.Error("session failed", zap.Error(err))
		e.push(s, "persist", "Failed", err.Error(), true)
		return s, err
	}
	s.Status = types.StatusCompleted
	log.Info("session completed",
		zap.String("document", s.DocumentPath),
		zap.Int("references", len(s.References)),
		zap.Int("steps", len(s.Memory)),
		zap.Duration("elapsed", e.now().Sub(start)))
	e.push(s, "persist", "Proposal complete", s.DocumentPath, true)
	return s, nil
}

// push streams one message. A message whose stage or title differs from the
// previous one opens a new block with the next step number.
func (e *Engine) push(s *types.Session, stage, title, content string, final bool) {
	if block := stage + "\x00" + title; block != s.StreamBlock || s.StreamStep == 0 {
		s.StreamStep++
		s.StreamBlock = block
	}
	if e.sink.Push(types.StreamMessage{
		SessionID: s.ID,
		Step:      s.StreamStep,
		Stage:     stage,
		Title:     title,
		Content:   content,
		IsFinal:   final,
	}) {
		e.log.Debug("stream backlog full, oldest message dropped", zap.String("session_id", s.ID))
	}
}
