// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/pdiddy/proposal-engine/internal/convert"
	"github.com/pdiddy/proposal-engine/internal/llm"
)

// defaultMaxChars caps the document text sent to the model.
const defaultMaxChars = 10000

// IdentifierKeys are the parameter names summarize-document reads its
// document identifier from, in priority order.
var IdentifierKeys = []string{"identifier", "arxiv_id", "doi", "url", "path", "pdf_url"}

// PDFSource resolves a document identifier to a local PDF.
type PDFSource interface {
	Fetch(ctx context.Context, identifier string) (string, error)
}

var documentSummaryTmpl = template.Must(template.New("document-summary").Parse(`You are an academic assistant specializing in research paper analysis.
Summarize the following paper in 300 to 400 words of academic prose. Cover:
1. The research goal and question
2. The main methodology
3. The key findings and conclusions
4. The contribution and significance

Text:
"""
{{.Text}}
"""
`))

// DocumentSummarizer implements summarize-document: it fetches the PDF
// named by the step, converts it to text, and asks the model for a summary.
type DocumentSummarizer struct {
	Source    PDFSource
	Converter convert.Converter
	Generator llm.Generator

	// MaxChars caps the extracted text (default 10000).
	MaxChars int
}

// Name returns the action name.
func (d *DocumentSummarizer) Name() string { return ActionSummarize }

// Invoke summarizes the document in params["identifier"] (or "arxiv_id",
// "doi", "url", "path"). A path to an existing local PDF skips the download.
func (d *DocumentSummarizer) Invoke(ctx context.Context, params Params) (Result, error) {
	id := params.String(IdentifierKeys...)
	if id == "" {
		return Result{}, fmt.Errorf("summarize-document: missing identifier")
	}

	pdfPath := id
	if fi, err := os.Stat(id); err != nil || fi.IsDir() {
		if d.Source == nil {
			return Result{}, fmt.Errorf("summarize-document: no PDF source configured for %q", id)
		}
		pdfPath, err = d.Source.Fetch(ctx, id)
		if err != nil {
			return Result{}, fmt.Errorf("fetching %s: %w", id, err)
		}
	}

	text, err := convert.ConvertCached(ctx, d.Converter, pdfPath)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("no usable text in %s", pdfPath)
	}

	limit := d.MaxChars
	if limit <= 0 {
		limit = defaultMaxChars
	}
	if r := []rune(text); len(r) > limit {
		text = string(r[:limit])
	}

	prompt, err := llm.Render(documentSummaryTmpl, struct{ Text string }{text})
	if err != nil {
		return Result{}, err
	}
	summary, err := d.Generator.Generate(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("summarizing %s: %w", id, err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return Result{}, fmt.Errorf("summarizing %s: %w", id, llm.ErrEmptyResponse)
	}
	return Result{Text: summary, Subject: id}, nil
}
