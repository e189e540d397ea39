// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package draft assembles a session into a Markdown proposal and persists
// the document with its reference and review side files.
package draft

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/proposal-engine/internal/ledger"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// ReferencesHeading separates the proposal body from its bibliography.
const ReferencesHeading = "## References"

// logResultLen caps result text in the appendix execution log.
const logResultLen = 150

// leadingHeading matches a Markdown heading on the first line of a section.
var leadingHeading = regexp.MustCompile(`^\s*#{1,6}\s+[^\n]*\n+`)

// Assemble renders the session as a Markdown document: title, the four
// sections in order, the timeline, the bibliography, and an appendix with
// the plan, the execution log, and the collected literature. accessed
// dates web references.
func Assemble(s *types.Session, accessed time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", titlePrefix, firstLine(s.Topic))

	for _, name := range types.SectionOrder {
		fmt.Fprintf(&b, "## %s\n\n", name.Title())
		body := StripHeading(s.Sections[name])
		if body == "" {
			body = "_This section could not be generated._"
		}
		b.WriteString(body)
		b.WriteString("\n\n")

		if name == types.SectionDesign && strings.TrimSpace(s.Timeline) != "" {
			b.WriteString("### Timeline\n\n```mermaid\n")
			b.WriteString(strings.TrimSpace(s.Timeline))
			b.WriteString("\n```\n\n")
		}
	}

	b.WriteString(ReferencesHeading + "\n\n")
	if len(s.References) == 0 {
		b.WriteString("No references were collected.\n\n")
	} else {
		b.WriteString(ledger.Bibliography(s.References, accessed))
		b.WriteString("\n\n")
	}

	b.WriteString("---\n\n## Appendix\n\n")
	b.WriteString("### A.1 Initial Research Plan\n\n```markdown\n")
	b.WriteString(strings.TrimSpace(s.Plan))
	b.WriteString("\n```\n\n")

	b.WriteString("### A.2 Execution Log\n\n")
	if len(s.Memory) == 0 {
		b.WriteString("No steps were executed.\n\n")
	}
	for i, m := range s.Memory {
		status := "succeeded"
		if !m.Success {
			status = "failed"
		}
		fmt.Fprintf(&b, "**Step %d: %s** (%s)\n- Status: %s\n- Result: %s\n\n",
			i+1, m.Description, m.Action, status, clip(m.ResultSummary, logResultLen))
	}

	b.WriteString("### A.3 Collected Literature\n\n")
	b.WriteString(Literature(s))
	b.WriteString("\n")
	return b.String()
}

// Literature lists every ledger entry with the best summary available: a
// detailed document summary when one was attached to the paper, otherwise
// the abstract or content preview.
func Literature(s *types.Session) string {
	if len(s.References) == 0 {
		return "No literature was collected.\n"
	}
	detailed := make(map[string]string)
	for _, p := range s.Papers {
		if p.ArxivID != "" && p.DetailedSummary != "" {
			detailed[p.ArxivID] = p.DetailedSummary
		}
	}

	var b strings.Builder
	for _, e := range s.References {
		fmt.Fprintf(&b, "**[%d] %s**", e.ID, e.Title)
		switch e.Kind {
		case types.KindPaper:
			fmt.Fprintf(&b, " (arXiv:%s)\n", e.ArxivID)
			if d, ok := detailed[e.ArxivID]; ok {
				fmt.Fprintf(&b, "\nDetailed summary: %s\n\n", strings.TrimSpace(d))
			} else {
				fmt.Fprintf(&b, "\n%s\n\n", clip(e.Summary, 500))
			}
		case types.KindMetadata:
			fmt.Fprintf(&b, " (DOI: %s)\n\n", e.DOI)
		default:
			fmt.Fprintf(&b, " (%s)\n\n%s\n\n", e.URL, clip(e.ContentPreview, 300))
		}
	}
	return b.String()
}

// titlePrefix opens every assembled document.
const titlePrefix = "# Research Proposal:"

// Topic recovers the topic from an assembled document's title line. It
// returns "" when the document has no such title.
func Topic(document string) string {
	for _, line := range strings.Split(document, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, titlePrefix); ok {
			return strings.TrimSpace(rest)
		}
		return ""
	}
	return ""
}

// Body returns the document text above the references heading.
func Body(document string) string {
	if i := strings.Index(document, "\n"+ReferencesHeading); i >= 0 {
		return document[:i]
	}
	if strings.HasPrefix(document, ReferencesHeading) {
		return ""
	}
	return document
}

// StripHeading removes a heading the model put on the first line of a
// section, since Assemble writes its own.
func StripHeading(section string) string {
	return strings.TrimSpace(leadingHeading.ReplaceAllString(section, ""))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
