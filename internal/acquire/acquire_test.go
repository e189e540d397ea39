// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Identifier
	}{
		{"arxiv bare", "2301.07041", Identifier{KindArxiv, "2301.07041"}},
		{"arxiv prefixed", "arXiv:2301.07041", Identifier{KindArxiv, "2301.07041"}},
		{"arxiv versioned", "2301.07041v2", Identifier{KindArxiv, "2301.07041v2"}},
		{"arxiv five digit", "2301.12345", Identifier{KindArxiv, "2301.12345"}},
		{"arxiv abs url", "http://arxiv.org/abs/2301.07041v1", Identifier{KindArxiv, "2301.07041v1"}},
		{"arxiv pdf url", "https://arxiv.org/pdf/2301.07041.pdf", Identifier{KindArxiv, "2301.07041"}},
		{"doi simple", "10.1145/1234567.1234568", Identifier{KindDOI, "10.1145/1234567.1234568"}},
		{"doi resolver url", "https://doi.org/10.1038/s41586-024-07487-w", Identifier{KindDOI, "10.1038/s41586-024-07487-w"}},
		{"doi legacy resolver", "https://dx.doi.org/10.1038/nature14539", Identifier{KindDOI, "10.1038/nature14539"}},
		{"doi prefixed", "doi:10.1145/1234567", Identifier{KindDOI, "10.1145/1234567"}},
		{"url", "https://example.com/paper.pdf", Identifier{KindURL, "https://example.com/paper.pdf"}},
		{"bare word", "not-an-id", Identifier{KindUnknown, "not-an-id"}},
		{"empty", "", Identifier{KindUnknown, ""}},
		{"whitespace trimmed", "  2301.07041  ", Identifier{KindArxiv, "2301.07041"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestSlug(t *testing.T) {
	noName := Identifier{KindURL, "https://example.com/"}
	tests := []struct {
		id   Identifier
		want string
	}{
		{Identifier{KindArxiv, "2301.07041"}, "arxiv-2301.07041"},
		{Identifier{KindDOI, "10.1145/1234567.1234568"}, "doi-10.1145-1234567.1234568"},
		{Identifier{KindURL, "https://example.com/my-paper.pdf"}, "url-my-paper"},
		{Identifier{KindUnknown, "x"}, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.id.Slug())
		})
	}

	slug := noName.Slug()
	assert.True(t, strings.HasPrefix(slug, "url-"))
	assert.Len(t, slug, len("url-")+16)
	assert.Equal(t, slug, noName.Slug(), "stable")
}

func TestDirectURL(t *testing.T) {
	assert.Equal(t, arxivPDFBase+"2301.07041", Identifier{KindArxiv, "2301.07041"}.directURL())
	assert.Equal(t, doiBase+"10.1145/1234567", Identifier{KindDOI, "10.1145/1234567"}.directURL())
	assert.Equal(t, "https://example.com/p.pdf", Identifier{KindURL, "https://example.com/p.pdf"}.directURL())
	assert.Equal(t, "", Identifier{KindUnknown, "foo"}.directURL())
}

const fakePDFContent = "%PDF-1.4 fake"

// newTestServer serves fake PDFs under /pdf/ and /doi/, an OpenAlex
// endpoint with no open-access copy, and HTML under /html/.
func newTestServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/pdf/"), strings.HasPrefix(r.URL.Path, "/doi/"):
			w.Header().Set("Content-Type", "application/pdf")
			fmt.Fprint(w, fakePDFContent)
		case strings.HasPrefix(r.URL.Path, "/openalex/"):
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"best_oa_location": null}`)
		case strings.HasPrefix(r.URL.Path, "/html/"):
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body>paywall</body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

// overrideBaseURLs points the package-level base URLs at the test server
// for the duration of the test.
func overrideBaseURLs(t *testing.T, tsURL string) {
	t.Helper()
	origPDF, origDOI, origOA := arxivPDFBase, doiBase, openAlexAPIBase
	arxivPDFBase = tsURL + "/pdf/"
	doiBase = tsURL + "/doi/"
	openAlexAPIBase = tsURL + "/openalex/"
	t.Cleanup(func() {
		arxivPDFBase, doiBase, openAlexAPIBase = origPDF, origDOI, origOA
	})
}

func newFetcher(ts *httptest.Server, dir string) *Fetcher {
	return &Fetcher{Client: ts.Client(), UserAgent: "proposal-engine-test/0.1", Dir: dir}
}

func TestFetchArxiv(t *testing.T) {
	ts := newTestServer(t, nil)
	overrideBaseURLs(t, ts.URL)
	dir := t.TempDir()

	path, err := newFetcher(ts, dir).Fetch(context.Background(), "arXiv:2301.07041")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "arxiv-2301.07041.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fakePDFContent, string(data))
}

func TestFetchReusesExistingFile(t *testing.T) {
	var hits atomic.Int32
	ts := newTestServer(t, &hits)
	overrideBaseURLs(t, ts.URL)
	f := newFetcher(ts, t.TempDir())

	_, err := f.Fetch(context.Background(), "2301.07041")
	require.NoError(t, err)
	first := hits.Load()

	_, err = f.Fetch(context.Background(), "https://arxiv.org/abs/2301.07041")
	require.NoError(t, err)
	assert.Equal(t, first, hits.Load(), "second fetch of the same paper makes no request")
}

func TestFetchDOIFallsBackToResolver(t *testing.T) {
	ts := newTestServer(t, nil)
	overrideBaseURLs(t, ts.URL)

	path, err := newFetcher(ts, t.TempDir()).Fetch(context.Background(), "10.1145/9999999")
	require.NoError(t, err)
	assert.Equal(t, "doi-10.1145-9999999.pdf", filepath.Base(path))
}

func TestFetchDOIPrefersOpenAccess(t *testing.T) {
	var oaHits atomic.Int32
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/openalex/"):
			fmt.Fprintf(w, `{"best_oa_location": {"pdf_url": %q}}`, ts.URL+"/oa/paper.pdf")
		case strings.HasPrefix(r.URL.Path, "/oa/"):
			oaHits.Add(1)
			fmt.Fprint(w, fakePDFContent)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()
	overrideBaseURLs(t, ts.URL)

	_, err := newFetcher(ts, t.TempDir()).Fetch(context.Background(), "10.1145/1234567.1234568")
	require.NoError(t, err)
	assert.Equal(t, int32(1), oaHits.Load())
}

func TestFetchDOISkipsLandingPages(t *testing.T) {
	var ts *httptest.Server
	var mu sync.Mutex
	var tried []string
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tried = append(tried, r.URL.Path)
		mu.Unlock()
		switch {
		case strings.HasPrefix(r.URL.Path, "/openalex/"):
			fmt.Fprintf(w, `{"best_oa_location": {"pdf_url": %q}, "locations": [{"pdf_url": %q}]}`,
				ts.URL+"/html/landing", ts.URL+"/html/landing")
		case strings.HasPrefix(r.URL.Path, "/html/"):
			fmt.Fprint(w, "<html>paywall</html>")
		case strings.HasPrefix(r.URL.Path, "/doi/"):
			fmt.Fprint(w, fakePDFContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()
	overrideBaseURLs(t, ts.URL)

	_, err := newFetcher(ts, t.TempDir()).Fetch(context.Background(), "doi:10.1145/42")
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, tried, 3, "openalex, one landing page, resolver")
	assert.True(t, strings.HasPrefix(tried[2], "/doi/"))
}

func TestFetchRejectsNonPDF(t *testing.T) {
	ts := newTestServer(t, nil)
	dir := t.TempDir()

	_, err := newFetcher(ts, dir).Fetch(context.Background(), ts.URL+"/html/landing")
	assert.ErrorIs(t, err, ErrNotPDF)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial file after a rejected download")
}

func TestFetchHTTPError(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := newFetcher(ts, t.TempDir()).Fetch(context.Background(), ts.URL+"/missing/paper.pdf")
	assert.ErrorContains(t, err, "HTTP 404")
}

func TestFetchUnknownIdentifier(t *testing.T) {
	_, err := (&Fetcher{Dir: t.TempDir()}).Fetch(context.Background(), "not-an-id")
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestFetchCancelledContext(t *testing.T) {
	ts := newTestServer(t, nil)
	overrideBaseURLs(t, ts.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newFetcher(ts, t.TempDir()).Fetch(ctx, "2301.07041")
	assert.Error(t, err)
}
