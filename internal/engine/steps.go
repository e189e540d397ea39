// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/proposal-engine/internal/ledger"
	"github.com/pdiddy/proposal-engine/internal/llm"
	"github.com/pdiddy/proposal-engine/internal/memory"
	"github.com/pdiddy/proposal-engine/internal/tools"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// questionPrefix matches list markers and numbering in front of a question.
var questionPrefix = regexp.MustCompile(`^(?:[-*•]\s*|(?:Q(?:uestion)?\s*)?\d+\s*[.):]\s*)+`)

func (e *Engine) clarify(ctx context.Context, s *types.Session, log *zap.Logger) {
	switch {
	case s.HasGuidance():
		log.Info("revision guidance present, clarification skipped")
		return
	case strings.TrimSpace(s.UserClarification) != "":
		log.Debug("clarification supplied")
		return
	}

	prompt, err := llm.Render(e.prompts.Clarify, map[string]any{"Topic": s.Topic, "Max": e.cfg.MaxQuestions})
	if err != nil {
		log.Warn("rendering clarify prompt", zap.Error(err))
		return
	}
	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		log.Warn("generating clarification questions", zap.Error(err))
		return
	}
	questions := ParseQuestions(raw, e.cfg.MaxQuestions)
	if len(questions) == 0 {
		return
	}
	s.ClarificationQuestions = questions

	lines := make([]string, len(questions))
	for i, q := range questions {
		lines[i] = fmt.Sprintf("%d. %s", i+1, q)
	}
	e.push(s, "clarify", "Clarification questions", strings.Join(lines, "\n"), false)

	if e.clarifier == nil || e.cfg.ClarifyWait <= 0 {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, e.cfg.ClarifyWait)
	defer cancel()
	answer, err := e.clarifier.Await(wctx, s.ID, questions)
	if err != nil {
		log.Info("no clarification received", zap.Error(err))
		return
	}
	s.UserClarification = strings.TrimSpace(answer)
	log.Info("clarification received")
}

// ParseQuestions splits model output into at most max questions, one per
// non-empty line, with list markers and numbering removed.
func ParseQuestions(raw string, max int) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		q := strings.TrimSpace(questionPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if q == "" {
			continue
		}
		out = append(out, q)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

func (e *Engine) plan(ctx context.Context, s *types.Session, log *zap.Logger) {
	s.Memory = []types.MemoryEntry{}
	s.CurrentStep = 0
	s.HistorySummary = ""
	s.SummarizedThrough = 0

	s.Plan = s.Topic
	prompt, err := llm.Render(e.prompts.Plan, map[string]string{
		"Question": s.ResearchQuestion(),
		"Guidance": s.Guidance.Render(),
	})
	if err == nil {
		var raw string
		raw, err = e.gen.Generate(ctx, prompt)
		if raw = strings.TrimSpace(raw); err == nil && raw != "" {
			s.Plan = raw
		}
	}
	if err != nil {
		log.Warn("planning failed, using topic as plan", zap.Error(err))
	}
	e.push(s, "plan", "Research plan", s.Plan, false)
}

type rawStep struct {
	Action      string         `json:"action"`
	Parameters  map[string]any `json:"parameters"`
	Description string         `json:"description"`
}

func (e *Engine) analyze(ctx context.Context, s *types.Session, log *zap.Logger) {
	s.CurrentStep = 0
	steps, err := e.proposeSteps(ctx, s)
	if err != nil || len(steps) == 0 {
		log.Warn("step analysis unusable, falling back to a paper search", zap.Error(err))
		steps = []types.ExecutionStep{{
			ID:          1,
			Action:      tools.ActionSearchPapers,
			Parameters:  map[string]any{"query": s.Topic, "max_results": e.cfg.MaxResults},
			Description: "Search for papers on the research topic",
		}}
	}
	s.Steps = steps

	lines := make([]string, len(steps))
	for i, st := range steps {
		lines[i] = fmt.Sprintf("%d. %s: %s", st.ID, st.Action, st.Description)
	}
	log.Info("steps planned", zap.Int("steps", len(steps)))
	e.push(s, "analyze", "Execution steps", strings.Join(lines, "\n"), false)
}

func (e *Engine) proposeSteps(ctx context.Context, s *types.Session) ([]types.ExecutionStep, error) {
	prompt, err := llm.Render(e.prompts.Analyze, map[string]any{
		"Question": s.ResearchQuestion(),
		"Plan":     s.Plan,
		"History":  memory.Context(s),
		"Papers":   len(s.Papers),
		"Web":      len(s.WebResults),
	})
	if err != nil {
		return nil, err
	}
	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("analyzing steps: %w", err)
	}
	var parsed struct {
		Steps []rawStep `json:"steps"`
	}
	if err := llm.ParseJSON(raw, &parsed); err != nil {
		return nil, err
	}

	var steps []types.ExecutionStep
	for _, r := range parsed.Steps {
		if strings.TrimSpace(r.Action) == "" {
			continue
		}
		if len(steps) == e.cfg.MaxPlanSteps {
			break
		}
		params := r.Parameters
		if params == nil {
			params = map[string]any{}
		}
		steps = append(steps, types.ExecutionStep{
			ID:          len(steps) + 1,
			Action:      strings.TrimSpace(r.Action),
			Parameters:  params,
			Description: strings.TrimSpace(r.Description),
		})
	}
	return steps, nil
}

// research runs the decision loop until it says Finish. Every pass either
// grows memory, which MaxIterations bounds, or summarizes, which cannot
// repeat without new memory; the pass limit only guards against a
// misconfigured interval.
func (e *Engine) research(ctx context.Context, s *types.Session, log *zap.Logger) {
	limit := 3*s.MaxIterations + 3
	for pass := 0; pass < limit; pass++ {
		d := Decide(s, e.cfg.EngineConfig)
		log.Debug("decision", zap.Stringer("decision", d), zap.Int("step", s.CurrentStep), zap.Int("memory", len(s.Memory)))
		switch d {
		case Finish:
			log.Info("research finished",
				zap.Int("papers", len(s.Papers)),
				zap.Int("web_results", len(s.WebResults)),
				zap.Int("references", len(s.References)))
			return
		case Summarize:
			e.summarize(ctx, s, log)
		case Replan:
			log.Info("recent steps failing, re-planning")
			e.analyze(ctx, s, log)
			e.execute(ctx, s, log)
		case Execute:
			e.execute(ctx, s, log)
		}
	}
	log.Warn("research loop stopped at pass limit", zap.Int("passes", limit))
}

func (e *Engine) execute(ctx context.Context, s *types.Session, log *zap.Logger) {
	step := s.Steps[s.CurrentStep]
	params := tools.Params(maps.Clone(step.Parameters))
	if params == nil {
		params = tools.Params{}
	}
	if tools.Canonical(step.Action) == tools.ActionSummarize && params.String(tools.IdentifierKeys...) == "" {
		if id := nextUnsummarized(s); id != "" {
			params["identifier"] = id
		}
	}

	res := e.invoker.Invoke(ctx, step.Action, params)
	s.Papers = append(s.Papers, res.Papers...)
	s.WebResults = append(s.WebResults, res.Web...)
	if res.Action == tools.ActionSummarize && res.Text != "" {
		attachSummary(s, res.Subject, res.Text)
	}

	desc := step.Description
	if desc == "" {
		desc = memory.DescribeAction(step.Action, step.Parameters)
	}
	entry := types.MemoryEntry{
		StepID:        step.ID,
		Action:        step.Action,
		Description:   desc,
		ResultSummary: memory.Truncate(res.Summary(), memory.ResultSummaryLen),
		Success:       res.OK(),
	}
	var appended bool
	s.Memory, appended = memory.Append(s.Memory, entry, s.MaxIterations)
	if !appended {
		log.Warn("memory full, step outcome not recorded", zap.Int("step_id", step.ID))
	}
	s.CurrentStep++

	added := 0
	if len(res.Papers)+len(res.Web) > 0 {
		s.References, added = ledger.Ingest(s.References, res.Papers, res.Web)
	}
	log.Info("step executed",
		zap.String("action", step.Action),
		zap.Bool("success", entry.Success),
		zap.Int("new_references", added))
	e.push(s, "execute", fmt.Sprintf("Step %d: %s", step.ID, step.Action), entry.ResultSummary, false)
}

// nextUnsummarized returns the identifier of the first collected paper
// that has no detailed summary yet.
func nextUnsummarized(s *types.Session) string {
	for _, p := range s.Papers {
		if p.DetailedSummary != "" {
			continue
		}
		if p.ArxivID != "" {
			return p.ArxivID
		}
		if p.PDFURL != "" {
			return p.PDFURL
		}
	}
	return ""
}

// attachSummary stores a document summary on the paper it was made from.
func attachSummary(s *types.Session, subject, text string) {
	for i := range s.Papers {
		p := &s.Papers[i]
		if subject != "" && (p.ArxivID == subject || p.PDFURL == subject) {
			p.DetailedSummary = text
			return
		}
	}
}

func (e *Engine) summarize(ctx context.Context, s *types.Session, log *zap.Logger) {
	pending := s.Memory
	if s.HistorySummary != "" {
		pending = s.Memory[s.SummarizedThrough:]
	}
	summary, err := e.summarizer.Update(ctx, s.ResearchQuestion(), s.HistorySummary, pending)
	if err != nil {
		log.Warn("summarization failed, keeping previous summary", zap.Error(err))
	}
	s.HistorySummary = summary
	s.SummarizedThrough = len(s.Memory)
}
