// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"text/template"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Prompts holds the templates for every generative step. Callers may
// replace individual templates; nil fields fall back to the defaults.
type Prompts struct {
	Clarify *template.Template
	Plan    *template.Template
	Analyze *template.Template
	Section *template.Template
	Score   *template.Template
}

// sectionBriefs tells the drafter what each section must cover.
var sectionBriefs = map[types.SectionName]string{
	types.SectionIntroduction: "Write the introduction. Establish the background and motivation, " +
		"state the research problem and questions, list the objectives, and explain the significance of the work.",
	types.SectionLiteratureReview: "Write the literature review. Organize prior work by theme, compare approaches, " +
		"and identify the gaps this proposal addresses. Cite sources heavily.",
	types.SectionDesign: "Write the research design and methods. Describe the approach, data, experiments, " +
		"evaluation metrics and baselines, and a phased timeline with concrete durations.",
	types.SectionConclusion: "Write the conclusion. Summarize the expected outcomes and contributions, " +
		"discuss limitations and risks, and outline future directions.",
}

var defaultClarify = template.Must(template.New("clarify").Parse(`You are an experienced research advisor. A student wants to write a research proposal on:

{{.Topic}}

Ask {{.Max}} short questions that would most sharpen the scope of the proposal (for example the target domain, the methods they favor, or the expected outcome).
Write one question per line and nothing else.
`))

var defaultPlan = template.Must(template.New("plan").Parse(`You are an experienced researcher planning a research proposal.

Research question:
{{.Question}}
{{if .Guidance}}
The proposal is being revised. Follow this guidance:
{{.Guidance}}
{{end}}
Write a concise research plan: the sub-questions to investigate, the kinds of literature and web sources to collect, and how the findings will shape the proposal.
`))

var defaultAnalyze = template.Must(template.New("analyze").Parse(`You are planning the information-gathering steps for a research proposal.

Research question:
{{.Question}}

Research plan:
{{.Plan}}

Progress so far:
{{.History}}

Collected so far: {{.Papers}} papers, {{.Web}} web results.

Available actions:
- search-papers: search arXiv. Parameters: query, max_results.
- search-web: search the web. Parameters: query, max_results.
- search-metadata: search Crossref for published papers with DOIs. Parameters: query, max_results.
- summarize-document: read and summarize a paper PDF. Parameters: identifier (arXiv id, DOI, or URL).

Propose 3 to 5 next steps that fill the remaining gaps. Do not repeat searches that already succeeded.
Respond with JSON only:
{"steps": [{"action": "search-papers", "parameters": {"query": "...", "max_results": 5}, "description": "..."}]}
`))

var defaultSection = template.Must(template.New("section").Parse(`You are writing one section of an academic research proposal.

Research question:
{{.Question}}

Research plan:
{{.Plan}}
{{range .Prior}}
Already written, {{.Title}}:
{{.Text}}
{{end}}
Numbered references:
{{.References}}

Task: {{.Brief}}

Cite sources only with their bracketed numbers from the list above, such as [1] or [2, 3]. Never cite a number that is not in the list and do not invent references. Do not include a references list or a section heading.
{{if .Guidance}}
This is a revision. Apply the following guidance:
{{.Guidance}}
{{- range .Instructions}}
- {{.Operation}}: {{.Instruction}}
{{- end}}
{{if .Previous}}
Previous version of this section:
{{.Previous}}
{{end}}{{end}}`))

var defaultScore = template.Must(template.New("score").Parse(`Rate how relevant the following source is to the research question on a scale from 0 (irrelevant) to 10 (essential).

Research question:
{{.Question}}

Source:
{{.Source}}

Reply with the number only.
`))

func (p *Prompts) withDefaults() *Prompts {
	out := Prompts{}
	if p != nil {
		out = *p
	}
	if out.Clarify == nil {
		out.Clarify = defaultClarify
	}
	if out.Plan == nil {
		out.Plan = defaultPlan
	}
	if out.Analyze == nil {
		out.Analyze = defaultAnalyze
	}
	if out.Section == nil {
		out.Section = defaultSection
	}
	if out.Score == nil {
		out.Score = defaultScore
	}
	return &out
}
