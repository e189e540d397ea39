// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package review scores a rendered proposal against a fixed rubric and
// turns the review into revision guidance for one improvement cycle.
package review

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"text/template"

	"github.com/pdiddy/proposal-engine/internal/llm"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// ErrUnparsable is returned when the reviewer output carries no usable scores.
var ErrUnparsable = errors.New("review: no review available")

// focusCount is how many of the lowest-scoring criteria guidance targets.
const focusCount = 2

var reviewTmpl = template.Must(template.New("review").Parse(`You are an experienced reviewer of research proposals.

Research question:
{{.Topic}}

Score the proposal below from 0 to 10 on each criterion:
- structure: completeness and logical organization of the sections
- rigor: academic precision, objectivity, appropriate use of citations
- method: whether the research methods fit the question and are described in detail
- novelty: originality and theoretical or practical value
- feasibility: concreteness of the plan, resources, and timeline
- citations: coverage and integration of the literature

Respond with JSON only:
{"scores": {"structure": 0, "rigor": 0, "method": 0, "novelty": 0, "feasibility": 0, "citations": 0},
 "overall": 0,
 "strengths": ["..."],
 "weaknesses": ["..."],
 "suggestions": [{"section": "introduction|literature_review|research_design|conclusion", "issue": "...", "suggestion": "...", "priority": "high|medium|low"}],
 "comments": "..."}

Proposal:
{{.Document}}
`))

var guidanceTmpl = template.Must(template.New("guidance").Parse(`You are helping an author revise a research proposal.

Research question:
{{.Topic}}

The review scored the proposal {{printf "%.1f" .Overall}}/10. Focus the revision on: {{.Focus}}.

Weaknesses:
{{range .Weaknesses}}- {{.}}
{{end}}
Suggestions:
{{range .Suggestions}}- [{{.Section}}, {{.Priority}}] {{.Issue}}: {{.Suggestion}}
{{end}}
Respond with JSON only:
{"summary": "what the revision should achieve",
 "instructions": [{"section": "introduction|literature_review|research_design|conclusion", "operation": "add|expand|rewrite|remove", "instruction": "...", "rationale": "...", "priority": "high|medium|low"}]}
`))

// Reviewer runs the rubric review and the guidance request.
type Reviewer struct {
	gen llm.Generator
}

// NewReviewer returns a reviewer backed by gen.
func NewReviewer(gen llm.Generator) *Reviewer {
	return &Reviewer{gen: gen}
}

type rawReview struct {
	Scores      map[string]float64       `json:"scores"`
	Overall     *float64                 `json:"overall"`
	Strengths   []string                 `json:"strengths"`
	Weaknesses  []string                 `json:"weaknesses"`
	Suggestions []types.ReviewSuggestion `json:"suggestions"`
	Comments    string                   `json:"comments"`

	// Older prompts asked for these names.
	Improvements []types.ReviewSuggestion `json:"improvement_suggestions"`
	Overall2     *float64                 `json:"overall_score"`
}

// Review scores document. A response without any recognizable criterion
// score yields ErrUnparsable. A missing overall score is the mean of the
// criterion scores.
func (r *Reviewer) Review(ctx context.Context, topic, document string) (*types.ReviewResult, error) {
	prompt, err := llm.Render(reviewTmpl, map[string]string{"Topic": topic, "Document": document})
	if err != nil {
		return nil, err
	}
	raw, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("reviewing document: %w", err)
	}
	return ParseReview(raw)
}

// ParseReview decodes reviewer output into a ReviewResult.
func ParseReview(raw string) (*types.ReviewResult, error) {
	var rr rawReview
	if err := llm.ParseJSON(raw, &rr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}

	scores := make(map[types.ReviewCriterion]float64)
	for k, v := range rr.Scores {
		if c, ok := criterionFor(k); ok {
			scores[c] = clamp(v)
		}
	}
	if len(scores) == 0 {
		return nil, ErrUnparsable
	}

	res := &types.ReviewResult{
		Scores:      scores,
		Strengths:   rr.Strengths,
		Weaknesses:  rr.Weaknesses,
		Suggestions: append(rr.Suggestions, rr.Improvements...),
		Comments:    strings.TrimSpace(rr.Comments),
	}
	overall := rr.Overall
	if overall == nil {
		overall = rr.Overall2
	}
	if overall != nil && !math.IsNaN(*overall) {
		res.Overall = clamp(*overall)
	} else {
		res.Overall = Mean(scores)
	}
	return res, nil
}

// Mean returns the average of the criterion scores, rounded to one decimal.
func Mean(scores map[types.ReviewCriterion]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return math.Round(sum/float64(len(scores))*10) / 10
}

// criterionFor maps the reviewer's score keys to rubric criteria. Models
// vary the spelling ("method_fit", "Citation integration"), so matching is
// by stem.
func criterionFor(key string) (types.ReviewCriterion, bool) {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "overall"):
		return "", false
	case strings.Contains(k, "struct"):
		return types.CriterionStructure, true
	case strings.Contains(k, "rigor"), strings.Contains(k, "rigour"):
		return types.CriterionRigor, true
	case strings.Contains(k, "method"):
		return types.CriterionMethod, true
	case strings.Contains(k, "novel"), strings.Contains(k, "innov"):
		return types.CriterionNovelty, true
	case strings.Contains(k, "feasib"):
		return types.CriterionFeasibility, true
	case strings.Contains(k, "citation"), strings.Contains(k, "literature"):
		return types.CriterionCitations, true
	}
	return "", false
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 10:
		return 10
	}
	return v
}

// Lowest returns up to n scored criteria with the lowest scores, ties
// broken by rubric order.
func Lowest(res *types.ReviewResult, n int) []types.ReviewCriterion {
	if res == nil {
		return nil
	}
	var out []types.ReviewCriterion
	for _, c := range types.Criteria {
		if _, ok := res.Scores[c]; ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return res.Scores[out[i]] < res.Scores[out[j]]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

type rawGuidance struct {
	Summary      string                      `json:"summary"`
	Instructions []types.RevisionInstruction `json:"instructions"`

	RevisionFocus        string                      `json:"revision_focus"`
	RevisionInstructions []types.RevisionInstruction `json:"revision_instructions"`
}

// Guidance asks the model how to revise the document given res. When the
// model fails or returns nothing usable, guidance is derived locally from
// the review's suggestions, so a non-nil review always yields guidance.
func (r *Reviewer) Guidance(ctx context.Context, topic string, res *types.ReviewResult) (*types.RevisionGuidance, error) {
	if res == nil {
		return nil, ErrUnparsable
	}
	focus := Lowest(res, focusCount)

	names := make([]string, len(focus))
	for i, f := range focus {
		names[i] = string(f)
	}
	prompt, err := llm.Render(guidanceTmpl, map[string]any{
		"Topic":       topic,
		"Overall":     res.Overall,
		"Focus":       strings.Join(names, ", "),
		"Weaknesses":  res.Weaknesses,
		"Suggestions": res.Suggestions,
	})
	if err != nil {
		return nil, err
	}

	raw, genErr := r.gen.Generate(ctx, prompt)
	if genErr == nil {
		var rg rawGuidance
		if llm.ParseJSON(raw, &rg) == nil {
			instr := keepUsable(append(rg.Instructions, rg.RevisionInstructions...))
			summary := rg.Summary
			if summary == "" {
				summary = rg.RevisionFocus
			}
			if len(instr) > 0 {
				return &types.RevisionGuidance{
					Focus:        focus,
					Summary:      strings.TrimSpace(summary),
					Instructions: instr,
				}, nil
			}
		}
	}
	return Derive(res, focus), nil
}

func keepUsable(in []types.RevisionInstruction) []types.RevisionInstruction {
	var out []types.RevisionInstruction
	for _, i := range in {
		if strings.TrimSpace(i.Instruction) != "" {
			if i.Operation == "" {
				i.Operation = "rewrite"
			}
			out = append(out, i)
		}
	}
	return out
}

var priorityRank = map[string]int{"high": 0, "medium": 1, "low": 2}

// Derive builds guidance from the review alone: each suggestion becomes an
// instruction, highest priority first. Without suggestions, each weakness
// becomes a rewrite instruction for the whole document.
func Derive(res *types.ReviewResult, focus []types.ReviewCriterion) *types.RevisionGuidance {
	g := &types.RevisionGuidance{Focus: focus}
	names := make([]string, len(focus))
	for i, f := range focus {
		names[i] = string(f)
	}
	if len(names) > 0 {
		g.Summary = "Improve " + strings.Join(names, " and ") + "."
	}

	sugg := append([]types.ReviewSuggestion(nil), res.Suggestions...)
	sort.SliceStable(sugg, func(i, j int) bool {
		return rank(sugg[i].Priority) < rank(sugg[j].Priority)
	})
	for _, s := range sugg {
		if strings.TrimSpace(s.Suggestion) == "" {
			continue
		}
		op := "expand"
		if strings.EqualFold(s.Priority, "high") {
			op = "rewrite"
		}
		g.Instructions = append(g.Instructions, types.RevisionInstruction{
			Section:     s.Section,
			Operation:   op,
			Instruction: s.Suggestion,
			Rationale:   s.Issue,
			Priority:    s.Priority,
		})
	}
	if len(g.Instructions) == 0 {
		for _, w := range res.Weaknesses {
			g.Instructions = append(g.Instructions, types.RevisionInstruction{
				Operation:   "rewrite",
				Instruction: "Address this weakness: " + w,
			})
		}
	}
	return g
}

func rank(p string) int {
	if r, ok := priorityRank[strings.ToLower(strings.TrimSpace(p))]; ok {
		return r
	}
	return len(priorityRank)
}
