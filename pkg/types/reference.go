// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ReferenceKind classifies a ledger entry by where it came from.
type ReferenceKind string

const (
	// KindPaper is a preprint from the paper search backend.
	KindPaper ReferenceKind = "paper"

	// KindMetadata is a bibliographic record carrying a DOI.
	KindMetadata ReferenceKind = "metadata"

	// KindWeb is a web page.
	KindWeb ReferenceKind = "web"
)

// PaperRecord is a paper returned by the paper search tool.
type PaperRecord struct {
	// ArxivID is the arXiv identifier without version suffix (e.g. "2301.07041").
	ArxivID string `json:"arxiv_id" yaml:"arxiv_id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Published is the publication date in YYYY-MM-DD form.
	Published string `json:"published" yaml:"published"`

	// Summary is the abstract.
	Summary string `json:"summary" yaml:"summary"`

	// Categories are the arXiv subject categories.
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`

	// PDFURL is the direct PDF link.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// DetailedSummary is attached by the document summarizer.
	DetailedSummary string `json:"detailed_summary,omitempty" yaml:"detailed_summary,omitempty"`

	// Error is set when the backend reported a per-record failure.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// WebRecord is a result from the web search or metadata search tools.
// A record with a DOI is bibliographic metadata; one without is a web page.
type WebRecord struct {
	Title     string   `json:"title" yaml:"title"`
	URL       string   `json:"url" yaml:"url"`
	Content   string   `json:"content,omitempty" yaml:"content,omitempty"`
	DOI       string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	Journal   string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	Published string   `json:"published,omitempty" yaml:"published,omitempty"`
	Authors   []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Source names the backend (e.g. "tavily", "crossref").
	Source string `json:"source" yaml:"source"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// LedgerEntry is one numbered reference in the session ledger. Only the
// fields relevant to Kind are populated.
type LedgerEntry struct {
	// ID is the citation number. IDs are unique and contiguous from 1.
	ID int `json:"id" yaml:"id"`

	Kind  ReferenceKind `json:"kind" yaml:"kind"`
	Title string        `json:"title" yaml:"title"`

	Authors   []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Published string   `json:"published,omitempty" yaml:"published,omitempty"`

	// Paper fields.
	ArxivID    string   `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	Summary    string   `json:"summary,omitempty" yaml:"summary,omitempty"`

	// Metadata fields.
	DOI     string `json:"doi,omitempty" yaml:"doi,omitempty"`
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// Web fields. URL is also kept for metadata entries.
	URL            string `json:"url,omitempty" yaml:"url,omitempty"`
	ContentPreview string `json:"content_preview,omitempty" yaml:"content_preview,omitempty"`

	// Score is the relevance score assigned by re-ranking.
	Score float64 `json:"score,omitempty" yaml:"score,omitempty"`
}
