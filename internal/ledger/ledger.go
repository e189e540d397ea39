// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger maintains a session's reference ledger: the deduplicated,
// numbered list of every paper, metadata record, and web page the session
// may cite. Functions take and return slices; the caller owns the session.
package ledger

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// previewLen bounds ContentPreview for web entries.
const previewLen = 200

// NormalizeTitle lowercases a title, strips punctuation, and collapses
// whitespace. Two references with equal normalized titles are duplicates.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Ingest appends every new record in papers and web to entries and returns
// the grown ledger plus the number of entries added. A record is new when
// neither its normalized title nor its identifier (arXiv id, DOI, or URL)
// is already present. Records carrying an error or no title are skipped.
// New entries get id len(ledger)+1, so ids stay contiguous.
func Ingest(entries []types.LedgerEntry, papers []types.PaperRecord, web []types.WebRecord) ([]types.LedgerEntry, int) {
	seen := make(map[string]bool, len(entries)*2)
	for _, e := range entries {
		for _, k := range keys(e) {
			seen[k] = true
		}
	}

	added := 0
	add := func(e types.LedgerEntry) {
		if NormalizeTitle(e.Title) == "" {
			return
		}
		ks := keys(e)
		for _, k := range ks {
			if seen[k] {
				return
			}
		}
		for _, k := range ks {
			seen[k] = true
		}
		e.ID = len(entries) + 1
		entries = append(entries, e)
		added++
	}

	for _, p := range papers {
		if p.Error != "" || strings.TrimSpace(p.Title) == "" {
			continue
		}
		summary := p.Summary
		if p.DetailedSummary != "" {
			summary = p.DetailedSummary
		}
		add(types.LedgerEntry{
			Kind:       types.KindPaper,
			Title:      strings.TrimSpace(p.Title),
			Authors:    p.Authors,
			Published:  p.Published,
			ArxivID:    p.ArxivID,
			Categories: p.Categories,
			Summary:    summary,
		})
	}

	for _, w := range web {
		title := strings.TrimSpace(w.Title)
		if title == "" {
			title = strings.TrimSpace(w.URL)
		}
		if w.Error != "" || title == "" {
			continue
		}
		if w.DOI != "" {
			add(types.LedgerEntry{
				Kind:      types.KindMetadata,
				Title:     title,
				Authors:   w.Authors,
				DOI:       w.DOI,
				Journal:   w.Journal,
				Published: w.Published,
				URL:       w.URL,
			})
			continue
		}
		add(types.LedgerEntry{
			Kind:           types.KindWeb,
			Title:          title,
			URL:            w.URL,
			ContentPreview: truncate(w.Content, previewLen),
		})
	}

	return entries, added
}

// keys returns the dedup keys of an entry: its normalized title plus any
// stable identifier.
func keys(e types.LedgerEntry) []string {
	var ks []string
	if t := NormalizeTitle(e.Title); t != "" {
		ks = append(ks, "title:"+t)
	}
	switch {
	case e.ArxivID != "":
		ks = append(ks, "arxiv:"+strings.ToLower(e.ArxivID))
	case e.DOI != "":
		ks = append(ks, "doi:"+strings.ToLower(e.DOI))
	case e.Kind == types.KindWeb && e.URL != "":
		ks = append(ks, "url:"+strings.TrimSuffix(e.URL, "/"))
	}
	return ks
}

// Renumber assigns ids 1..N in slice order.
func Renumber(entries []types.LedgerEntry) {
	for i := range entries {
		entries[i].ID = i + 1
	}
}

// Validate checks that ids are contiguous from 1 and that no normalized
// title repeats.
func Validate(entries []types.LedgerEntry) error {
	titles := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.ID != i+1 {
			return fmt.Errorf("entry %d has id %d, want %d", i, e.ID, i+1)
		}
		t := NormalizeTitle(e.Title)
		if prev, ok := titles[t]; ok {
			return fmt.Errorf("entries %d and %d share title %q", prev, e.ID, t)
		}
		titles[t] = e.ID
	}
	return nil
}

// Lookup returns the entry with the given id.
func Lookup(entries []types.LedgerEntry, id int) (types.LedgerEntry, bool) {
	if id < 1 || id > len(entries) || entries[id-1].ID != id {
		for _, e := range entries {
			if e.ID == id {
				return e, true
			}
		}
		return types.LedgerEntry{}, false
	}
	return entries[id-1], true
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}

// Format renders one entry as a bibliography line. accessed dates web entries.
func Format(e types.LedgerEntry, accessed time.Time) string {
	authors := strings.Join(e.Authors, ", ")
	if authors == "" {
		authors = "Unknown authors"
	}
	switch e.Kind {
	case types.KindPaper:
		s := fmt.Sprintf("[%d] %s. %s. arXiv:%s (%s)", e.ID, authors, e.Title, e.ArxivID, orUnknown(e.Published))
		if len(e.Categories) > 0 {
			s += ". Categories: " + strings.Join(e.Categories, ", ")
		}
		return s
	case types.KindMetadata:
		s := fmt.Sprintf("[%d] %s. %s.", e.ID, authors, e.Title)
		if e.Journal != "" {
			s += " " + e.Journal
		}
		if e.Published != "" {
			s += " (" + e.Published + ")"
		}
		return s + ". DOI: " + e.DOI
	default:
		return fmt.Sprintf("[%d] %s. Accessed %s. URL: %s", e.ID, e.Title, accessed.Format("2006-01-02"), e.URL)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "n.d."
	}
	return s
}

// Bibliography renders every entry in ledger order, one per paragraph.
func Bibliography(entries []types.LedgerEntry, accessed time.Time) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(Format(e, accessed))
	}
	return b.String()
}

// Numbered renders the ledger for a drafting prompt, grouped by kind, with
// enough context for the model to pick citations.
func Numbered(entries []types.LedgerEntry) string {
	if len(entries) == 0 {
		return "(no references collected)"
	}
	var papers, meta, web strings.Builder
	for _, e := range entries {
		switch e.Kind {
		case types.KindPaper:
			fmt.Fprintf(&papers, "[%d] %s\n    Authors: %s\n    Published: %s\n    Summary: %s\n",
				e.ID, e.Title, strings.Join(e.Authors, ", "), orUnknown(e.Published), truncate(e.Summary, 600))
			if len(e.Categories) > 0 {
				fmt.Fprintf(&papers, "    Categories: %s\n", strings.Join(e.Categories, ", "))
			}
		case types.KindMetadata:
			fmt.Fprintf(&meta, "[%d] %s\n    Authors: %s\n    Journal: %s (%s)\n    DOI: %s\n",
				e.ID, e.Title, strings.Join(e.Authors, ", "), e.Journal, orUnknown(e.Published), e.DOI)
		default:
			fmt.Fprintf(&web, "[%d] %s\n    Source: %s\n    Preview: %s...\n", e.ID, e.Title, e.URL, e.ContentPreview)
		}
	}

	var b strings.Builder
	for _, group := range []struct {
		title string
		body  string
	}{
		{"Papers", papers.String()},
		{"Bibliographic records", meta.String()},
		{"Web sources", web.String()},
	} {
		if group.body == "" {
			continue
		}
		fmt.Fprintf(&b, "%s:\n%s\n", group.title, group.body)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Counts returns the number of entries per kind.
func Counts(entries []types.LedgerEntry) map[types.ReferenceKind]int {
	c := make(map[types.ReferenceKind]int)
	for _, e := range entries {
		c[e.Kind]++
	}
	return c
}
