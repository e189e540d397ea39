// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/proposal-engine/internal/httputil"
)

// openAlexAPIBase is swapped in tests.
var openAlexAPIBase = "https://api.openalex.org/works/"

type openAlexLocation struct {
	PDFURL string `json:"pdf_url"`
}

type openAlexWork struct {
	BestOALocation  *openAlexLocation  `json:"best_oa_location"`
	PrimaryLocation *openAlexLocation  `json:"primary_location"`
	Locations       []openAlexLocation `json:"locations"`
}

// pdfURLs lists the distinct PDF links of a work, best open-access copy first.
func (w openAlexWork) pdfURLs() []string {
	var out []string
	seen := map[string]bool{}
	add := func(l *openAlexLocation) {
		if l == nil || l.PDFURL == "" || seen[l.PDFURL] {
			return
		}
		seen[l.PDFURL] = true
		out = append(out, l.PDFURL)
	}
	add(w.BestOALocation)
	add(w.PrimaryLocation)
	for i := range w.Locations {
		add(&w.Locations[i])
	}
	return out
}

// openAccessPDFs asks OpenAlex where a DOI can be downloaded as a PDF.
func (f *Fetcher) openAccessPDFs(ctx context.Context, doi string) ([]string, error) {
	apiURL := openAlexAPIBase + "https://doi.org/" + doi
	if f.Mailto != "" {
		apiURL += "?mailto=" + url.QueryEscape(f.Mailto)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAlex request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, f.Client, req, 2)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAlex returned HTTP %d", resp.StatusCode)
	}

	var work openAlexWork
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	return work.pdfURLs(), nil
}
