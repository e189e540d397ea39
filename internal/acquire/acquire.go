// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire resolves document identifiers (arXiv ids, DOIs, URLs) to
// PDFs and downloads them for the document summarizer.
package acquire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pdiddy/proposal-engine/internal/httputil"
)

// ErrUnrecognized is returned for identifiers that are not an arXiv id, DOI, or URL.
var ErrUnrecognized = errors.New("unrecognized identifier format")

// ErrNotPDF is returned when a download does not start with the PDF magic bytes.
var ErrNotPDF = errors.New("downloaded file is not a PDF")

// Fetcher downloads PDFs into Dir, reusing files fetched earlier.
type Fetcher struct {
	Client    *http.Client
	UserAgent string

	// Mailto identifies the caller to OpenAlex's polite pool.
	Mailto string

	// Dir holds downloaded PDFs. Created on first use.
	Dir string
}

// Fetch resolves identifier and returns the local path of its PDF. DOIs
// try every open-access copy OpenAlex knows of before the doi.org
// resolver; a candidate that is not a PDF moves on to the next.
func (f *Fetcher) Fetch(ctx context.Context, identifier string) (string, error) {
	id := Parse(identifier)
	if id.Kind == KindUnknown {
		return "", fmt.Errorf("%w: %q", ErrUnrecognized, identifier)
	}

	dir := f.Dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "proposal-engine")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}

	pdfPath := filepath.Join(dir, id.Slug()+".pdf")
	if _, err := os.Stat(pdfPath); err == nil {
		return pdfPath, nil
	}

	var lastErr error
	for _, u := range f.candidates(ctx, id) {
		err := f.download(ctx, u, pdfPath)
		if err == nil {
			return pdfPath, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
	}
	return "", fmt.Errorf("downloading %s: %w", id, lastErr)
}

// candidates lists download URLs for id in the order they are tried.
func (f *Fetcher) candidates(ctx context.Context, id Identifier) []string {
	var urls []string
	if id.Kind == KindDOI {
		if oa, err := f.openAccessPDFs(ctx, id.Value); err == nil {
			urls = append(urls, oa...)
		}
	}
	return append(urls, id.directURL())
}

// download fetches url to destPath through a temporary file so a partial
// download never appears under the final name.
func (f *Fetcher) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, f.Client, req, 2)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	body := bufio.NewReader(resp.Body)
	magic, err := body.Peek(5)
	if err != nil || string(magic) != "%PDF-" {
		return ErrNotPDF
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
