// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// ReviewCriterion names one rubric dimension. Scores are on a 0-10 scale.
type ReviewCriterion string

const (
	CriterionStructure   ReviewCriterion = "structure"
	CriterionRigor       ReviewCriterion = "rigor"
	CriterionMethod      ReviewCriterion = "method"
	CriterionNovelty     ReviewCriterion = "novelty"
	CriterionFeasibility ReviewCriterion = "feasibility"
	CriterionCitations   ReviewCriterion = "citations"
)

// Criteria lists the rubric in presentation order.
var Criteria = []ReviewCriterion{
	CriterionStructure,
	CriterionRigor,
	CriterionMethod,
	CriterionNovelty,
	CriterionFeasibility,
	CriterionCitations,
}

// ReviewSuggestion is one concrete change proposed by a reviewer.
type ReviewSuggestion struct {
	Section    string `json:"section" yaml:"section"`
	Issue      string `json:"issue" yaml:"issue"`
	Suggestion string `json:"suggestion" yaml:"suggestion"`

	// Priority is "high", "medium", or "low".
	Priority string `json:"priority" yaml:"priority"`
}

// ReviewMetadata holds scores computed from the document text rather than
// by the reviewer model.
type ReviewMetadata struct {
	// CitationMarkers counts bracketed citation groups like [1] or [2, 5].
	CitationMarkers int `json:"citation_markers" yaml:"citation_markers"`

	// CitedReferences counts distinct reference ids cited.
	CitedReferences int `json:"cited_references" yaml:"cited_references"`

	// References is the ledger size.
	References int `json:"references" yaml:"references"`

	// Dangling lists cited ids with no ledger entry.
	Dangling []int `json:"dangling,omitempty" yaml:"dangling,omitempty"`

	// Density is citation markers per ledger entry.
	Density float64 `json:"density" yaml:"density"`

	// DensityScore rates Density on a 0-10 scale; 1.5 to 4 markers per
	// reference scores 10.
	DensityScore float64 `json:"density_score" yaml:"density_score"`
}

// ReviewResult is the outcome of one review of a rendered document.
type ReviewResult struct {
	Scores      map[ReviewCriterion]float64 `json:"scores" yaml:"scores"`
	Overall     float64                     `json:"overall" yaml:"overall"`
	Strengths   []string                    `json:"strengths,omitempty" yaml:"strengths,omitempty"`
	Weaknesses  []string                    `json:"weaknesses,omitempty" yaml:"weaknesses,omitempty"`
	Suggestions []ReviewSuggestion          `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	Metadata    *ReviewMetadata             `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Comments is the reviewer's overall remark.
	Comments string `json:"comments,omitempty" yaml:"comments,omitempty"`
}

// RevisionInstruction tells the drafter how to change one section.
type RevisionInstruction struct {
	Section string `json:"section" yaml:"section"`

	// Operation is one of "add", "expand", "rewrite", "remove".
	Operation   string `json:"operation" yaml:"operation"`
	Instruction string `json:"instruction" yaml:"instruction"`
	Rationale   string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	Priority    string `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// RevisionGuidance is the structured input to a revision cycle.
type RevisionGuidance struct {
	// Focus lists the rubric criteria to improve first.
	Focus        []ReviewCriterion     `json:"focus" yaml:"focus"`
	Summary      string                `json:"summary,omitempty" yaml:"summary,omitempty"`
	Instructions []RevisionInstruction `json:"instructions" yaml:"instructions"`
}

// Empty reports whether the guidance carries nothing to act on.
func (g *RevisionGuidance) Empty() bool {
	return g == nil || (len(g.Instructions) == 0 && strings.TrimSpace(g.Summary) == "")
}

// Render formats the guidance as prompt text.
func (g *RevisionGuidance) Render() string {
	if g.Empty() {
		return ""
	}
	var b strings.Builder
	if len(g.Focus) > 0 {
		focus := make([]string, len(g.Focus))
		for i, f := range g.Focus {
			focus[i] = string(f)
		}
		fmt.Fprintf(&b, "Focus areas: %s\n", strings.Join(focus, ", "))
	}
	if g.Summary != "" {
		fmt.Fprintf(&b, "%s\n", g.Summary)
	}
	for i, in := range g.Instructions {
		fmt.Fprintf(&b, "%d. [%s] %s: %s", i+1, in.Section, in.Operation, in.Instruction)
		if in.Rationale != "" {
			fmt.Fprintf(&b, " (%s)", in.Rationale)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ForSection returns the instructions that apply to the named section.
// Section names match loosely ("Design" matches research_design);
// instructions with an empty section apply everywhere.
func (g *RevisionGuidance) ForSection(name SectionName) []RevisionInstruction {
	if g == nil {
		return nil
	}
	var out []RevisionInstruction
	for _, in := range g.Instructions {
		s := strings.ToLower(strings.TrimSpace(in.Section))
		s = strings.ReplaceAll(s, " ", "_")
		if s == "" || strings.Contains(string(name), s) {
			out = append(out, in)
		}
	}
	return out
}
