// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/proposal-engine/internal/llm"
)

var timelineTmpl = template.Must(template.New("timeline").Parse(`You are a project management expert. Turn the research timeline below into a Mermaid gantt chart.

Research field: {{.Field}}
Today's date: {{.Today}}

Timeline:
{{.Content}}

Requirements:
1. Extract the key phases, tasks, and milestones.
2. Group tasks into sections such as literature review, system design, and evaluation.
3. Use YYYY-MM-DD dates starting from today.
4. Avoid overlapping tasks that depend on each other.

Output only Mermaid code starting with "gantt", for example:
gantt
    dateFormat  YYYY-MM-DD
    title       Project title
    section Phase one
    Task one    :active, 2025-01-01, 30d
    Task two    :        2025-02-01, 20d
`))

// TimelineDiagram implements generate-timeline-diagram, producing Mermaid
// gantt source from a free-text research timeline.
type TimelineDiagram struct {
	Generator llm.Generator
	Now       func() time.Time
}

// Name returns the action name.
func (t *TimelineDiagram) Name() string { return ActionTimelineDiagram }

// Invoke renders params["timeline_content"] as a gantt chart.
func (t *TimelineDiagram) Invoke(ctx context.Context, params Params) (Result, error) {
	content := params.String("timeline_content", "content", "timeline")
	if content == "" {
		return Result{}, fmt.Errorf("generate-timeline-diagram: missing timeline_content")
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}

	prompt, err := llm.Render(timelineTmpl, map[string]string{
		"Field":   params.String("research_field", "topic"),
		"Today":   now().Format(time.DateOnly),
		"Content": content,
	})
	if err != nil {
		return Result{}, err
	}
	raw, err := t.Generator.Generate(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("generating timeline: %w", err)
	}

	gantt := ExtractMermaid(raw)
	if gantt == "" {
		return Result{}, fmt.Errorf("generating timeline: %w", llm.ErrEmptyResponse)
	}
	return Result{Text: gantt}, nil
}

// ExtractMermaid pulls gantt source out of a model response: a ```mermaid
// block wins over a generic fence, and a missing "gantt" header is added.
func ExtractMermaid(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```mermaid"); i >= 0 {
		s = fenceBody(s[i+len("```mermaid"):])
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = fenceBody(s[i+3:])
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "gantt") {
		s = "gantt\n" + s
	}
	return s
}

// fenceBody returns the text up to the closing fence, or all of s when the
// fence is unterminated.
func fenceBody(s string) string {
	if end := strings.Index(s, "```"); end >= 0 {
		return s[:end]
	}
	return s
}
