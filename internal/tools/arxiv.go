// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/proposal-engine/internal/httputil"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// summaryLen caps abstracts carried in paper records.
const summaryLen = 300

// ArxivSearch implements search-papers against the arXiv Atom API.
type ArxivSearch struct {
	Client     *http.Client
	UserAgent  string
	MaxResults int
}

// Name returns the action name.
func (a *ArxivSearch) Name() string { return ActionSearchPapers }

// Invoke searches arXiv for params["query"], returning at most
// params["max_results"] papers.
func (a *ArxivSearch) Invoke(ctx context.Context, params Params) (Result, error) {
	query := params.String("query", "keywords", "topic")
	if query == "" {
		return Result{}, fmt.Errorf("search-papers: missing query")
	}
	maxResults := params.Int("max_results", a.MaxResults)
	if maxResults <= 0 {
		maxResults = 5
	}

	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = url.QueryEscape(t)
	}
	reqURL := fmt.Sprintf("%s?search_query=all:%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, strings.Join(terms, "+AND+all:"), maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", a.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, a.Client, req, 3)
	if err != nil {
		return Result{}, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return Result{}, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var papers []types.PaperRecord
	for _, entry := range feed.Entries {
		id := extractArxivID(entry.ID)
		if id == "" {
			continue
		}
		p := types.PaperRecord{
			ArxivID: id,
			Title:   collapse(entry.Title),
			Summary: clip(collapse(entry.Summary), summaryLen),
		}
		for _, au := range entry.Authors {
			p.Authors = append(p.Authors, strings.TrimSpace(au.Name))
		}
		for _, c := range entry.Categories {
			p.Categories = append(p.Categories, c.Term)
		}
		for _, l := range entry.Links {
			if l.Title == "pdf" || l.Type == "application/pdf" {
				p.PDFURL = l.Href
				break
			}
		}
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			p.Published = t.Format(time.DateOnly)
		}
		papers = append(papers, p)
		if len(papers) >= maxResults {
			break
		}
	}
	return Result{Papers: papers}, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Authors    []arxivAuthor   `xml:"author"`
	Categories []arxivCategory `xml:"category"`
	Links      []arxivLink     `xml:"link"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" becomes "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// clip truncates s to n runes, marking the cut with "...".
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
