// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/proposal-engine/internal/draft"
	"github.com/pdiddy/proposal-engine/internal/ledger"
	"github.com/pdiddy/proposal-engine/internal/llm"
	"github.com/pdiddy/proposal-engine/internal/review"
	"github.com/pdiddy/proposal-engine/internal/tools"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

func (e *Engine) rerank(ctx context.Context, s *types.Session, log *zap.Logger) {
	if len(s.References) == 0 {
		return
	}
	before := len(s.References)
	s.References = ledger.Rerank(ctx, s.ResearchQuestion(), s.References, e.scorer, ledger.RerankOptions{
		KeepRatio: e.cfg.RerankKeepRatio,
		MinKeep:   e.cfg.RerankMinKeep,
	})
	log.Info("references re-ranked", zap.Int("before", before), zap.Int("after", len(s.References)))
	e.push(s, "rerank", "References ranked", fmt.Sprintf("kept %d of %d references", len(s.References), before), false)
}

type priorSection struct {
	Title string
	Text  string
}

// draftSections writes the four sections in order, each seeing the ones
// before it. With guidance present, each section also gets the matching
// revision instructions and its previous text, and a failed revision keeps
// that text.
func (e *Engine) draftSections(ctx context.Context, s *types.Session, log *zap.Logger) {
	refs := ledger.Numbered(s.References)
	var prior []priorSection

	for _, name := range types.SectionOrder {
		data := map[string]any{
			"Question":   s.ResearchQuestion(),
			"Plan":       s.Plan,
			"Prior":      prior,
			"References": refs,
			"Brief":      sectionBriefs[name],
		}
		if s.HasGuidance() {
			data["Guidance"] = strings.TrimSpace(s.Guidance.Summary)
			if data["Guidance"] == "" {
				data["Guidance"] = "Improve the weaknesses found in review."
			}
			data["Instructions"] = s.Guidance.ForSection(name)
			data["Previous"] = s.Sections[name]
		}

		text, err := e.draftSection(ctx, s, name, data)
		if err != nil {
			text = s.Sections[name]
			log.Warn("drafting section failed", zap.String("section", string(name)),
				zap.Bool("kept_previous", text != ""), zap.Error(err))
		}
		s.Sections[name] = text
		if text != "" {
			prior = append(prior, priorSection{Title: name.Title(), Text: text})
		}
		log.Info("section drafted", zap.String("section", string(name)), zap.Int("chars", len(text)))

		if name == types.SectionDesign {
			e.timeline(ctx, s, log)
		}
	}
}

func (e *Engine) draftSection(ctx context.Context, s *types.Session, name types.SectionName, data map[string]any) (string, error) {
	prompt, err := llm.Render(e.prompts.Section, data)
	if err != nil {
		return "", err
	}
	stage := "draft_" + string(name)
	text, err := llm.GenerateStream(ctx, e.gen, prompt, func(chunk string) {
		e.push(s, stage, name.Title(), chunk, false)
	})
	if err != nil {
		return "", fmt.Errorf("drafting %s: %w", name, err)
	}
	return draft.StripHeading(text), nil
}

// timeline renders the design section's schedule as a gantt diagram when
// the timeline tool is registered. It is not a research step and leaves
// no memory entry.
func (e *Engine) timeline(ctx context.Context, s *types.Session, log *zap.Logger) {
	design := s.Sections[types.SectionDesign]
	if s.Timeline != "" || design == "" || !e.invoker.Has(tools.ActionTimelineDiagram) {
		return
	}
	res := e.invoker.Invoke(ctx, tools.ActionTimelineDiagram, tools.Params{
		"timeline_content": design,
		"research_field":   s.Topic,
	})
	if !res.OK() || strings.TrimSpace(res.Text) == "" {
		log.Warn("timeline diagram not generated", zap.String("result", res.Summary()))
		return
	}
	s.Timeline = res.Text
	e.push(s, "timeline", "Project timeline", s.Timeline, false)
}

func (e *Engine) finalizeReferences(s *types.Session, log *zap.Logger) {
	if err := ledger.Validate(s.References); err != nil {
		log.Warn("ledger ids not contiguous, renumbering", zap.Error(err))
		ledger.Renumber(s.References)
	}
	bib := ledger.Bibliography(s.References, e.now())
	if bib == "" {
		bib = "No references were collected."
	}
	e.push(s, "references", "References", bib, false)
}

func (e *Engine) render(s *types.Session, log *zap.Logger) {
	s.FinalDocument = draft.Assemble(s, e.now())
	if missing := draft.ValidateCitations(s.FinalDocument, s.References); len(missing) > 0 {
		log.Warn("document cites ids missing from the ledger", zap.Ints("ids", missing))
	}
}

// reviewAndImprove reviews the rendered document and, when it scores
// below the threshold, runs the single revision cycle.
func (e *Engine) reviewAndImprove(ctx context.Context, s *types.Session, log *zap.Logger) {
	res, err := e.reviewer.Review(ctx, s.ResearchQuestion(), s.FinalDocument)
	if err != nil {
		log.Warn("review unavailable", zap.Error(err))
		s.Review = nil
		return
	}
	res.Metadata = review.Metadata(s.FinalDocument, s.References)
	s.Review = res
	log.Info("document reviewed", zap.Float64("overall", res.Overall))
	e.push(s, "review", "Review", fmt.Sprintf("overall %.1f/10", res.Overall), false)

	if res.Overall >= e.cfg.ImproveThreshold || s.ImprovementAttempt >= 1 {
		return
	}
	g, err := e.reviewer.Guidance(ctx, s.ResearchQuestion(), res)
	if err != nil || g.Empty() {
		log.Warn("no revision guidance", zap.Error(err))
		return
	}
	s.Guidance = g
	s.ImprovementAttempt++
	log.Info("revising document", zap.Int("attempt", s.ImprovementAttempt))
	e.push(s, "improve", "Revision guidance", g.Render(), false)

	e.draftSections(ctx, s, log)
	e.render(s, log)
}

func (e *Engine) persist(s *types.Session) error {
	paths, err := draft.Write(e.cfg.OutputDir, s, e.cfg.BibTeX)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.DocumentPath = paths.Document
	s.ReferencesPath = paths.ReferencesJSON
	return nil
}

var scorePattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// generatorScorer asks the model for a 0-10 relevance score per reference.
type generatorScorer struct {
	gen  llm.Generator
	tmpl *template.Template
}

func (g *generatorScorer) Score(ctx context.Context, question string, e types.LedgerEntry) (float64, error) {
	prompt, err := llm.Render(g.tmpl, map[string]string{
		"Question": question,
		"Source":   describeEntry(e),
	})
	if err != nil {
		return 0, err
	}
	raw, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		return 0, err
	}
	return ParseScore(raw)
}

// ParseScore reads the first number in a model reply.
func ParseScore(raw string) (float64, error) {
	m := scorePattern.FindString(raw)
	if m == "" {
		return 0, fmt.Errorf("no score in %q", strings.TrimSpace(raw))
	}
	return strconv.ParseFloat(m, 64)
}

func describeEntry(e types.LedgerEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", e.Title)
	switch {
	case e.Summary != "":
		fmt.Fprintf(&b, "Abstract: %s\n", e.Summary)
	case e.ContentPreview != "":
		fmt.Fprintf(&b, "Excerpt: %s\n", e.ContentPreview)
	case e.Journal != "":
		fmt.Fprintf(&b, "Journal: %s\n", e.Journal)
	}
	return b.String()
}
