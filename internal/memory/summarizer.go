// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package memory

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/proposal-engine/internal/llm"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

var fullSummaryTmpl = template.Must(template.New("full-summary").Parse(`You are tracking the progress of a literature search for a research proposal.

Research topic: {{.Topic}}

Summarize the execution history below in one concise paragraph. Keep what was searched, what was found, and what failed, so that later planning can avoid repeating work.

Execution history:
{{.History}}
`))

var incrementalSummaryTmpl = template.Must(template.New("incremental-summary").Parse(`You are tracking the progress of a literature search for a research proposal.

Research topic: {{.Topic}}

Current summary of earlier steps:
{{.Previous}}

Newest steps:
{{.Latest}}

Rewrite the summary in one concise paragraph so that it also covers the newest steps. Do not drop facts from the current summary.
`))

// Summarizer condenses execution memory with a generative model.
type Summarizer struct {
	gen llm.Generator
}

// NewSummarizer returns a summarizer backed by gen.
func NewSummarizer(gen llm.Generator) *Summarizer {
	return &Summarizer{gen: gen}
}

// Update returns the summary that supersedes previous. pending holds the
// entries previous does not cover yet. With no previous summary pending is
// the whole memory and is summarized once; afterwards only the new entries
// (one per step at the default interval) are folded into the previous
// summary, so the prompt size stays flat however long the run gets.
// With nothing pending, previous is returned unchanged.
func (s *Summarizer) Update(ctx context.Context, topic, previous string, pending []types.MemoryEntry) (string, error) {
	if len(pending) == 0 {
		return previous, nil
	}

	var prompt string
	var err error
	if previous == "" {
		prompt, err = llm.Render(fullSummaryTmpl, struct{ Topic, History string }{topic, Render(pending)})
	} else {
		prompt, err = llm.Render(incrementalSummaryTmpl, struct{ Topic, Previous, Latest string }{
			topic, previous, Render(pending),
		})
	}
	if err != nil {
		return previous, err
	}

	out, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return previous, fmt.Errorf("summarizing history: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return previous, llm.ErrEmptyResponse
	}
	return out, nil
}
