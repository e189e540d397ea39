// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/proposal-engine/internal/httputil"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Endpoints declared as vars so tests can substitute httptest servers.
var (
	tavilyAPIURL    = "https://api.tavily.com/search"
	crossrefAPIBase = "https://api.crossref.org/works"
)

// ErrNoAPIKey is returned by the web search when no Tavily key is configured.
var ErrNoAPIKey = errors.New("tavily API key not configured")

// contentLen caps page content carried in web records.
const contentLen = 1000

// TavilySearch implements search-web against the Tavily search API.
type TavilySearch struct {
	Client     *http.Client
	APIKey     string
	MaxResults int
}

// Name returns the action name.
func (t *TavilySearch) Name() string { return ActionSearchWeb }

type tavilyRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

// Invoke runs a web search for params["query"].
func (t *TavilySearch) Invoke(ctx context.Context, params Params) (Result, error) {
	if t.APIKey == "" {
		return Result{}, ErrNoAPIKey
	}
	query := params.String("query", "keywords", "topic")
	if query == "" {
		return Result{}, fmt.Errorf("search-web: missing query")
	}

	body, err := json.Marshal(tavilyRequest{
		Query:       query,
		SearchDepth: "advanced",
		MaxResults:  params.Int("max_results", max(t.MaxResults, 1)),
	})
	if err != nil {
		return Result{}, fmt.Errorf("encoding tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyAPIURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.APIKey)

	resp, err := httputil.DoWithRetry(ctx, t.Client, req, 3)
	if err != nil {
		return Result{}, fmt.Errorf("tavily request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("tavily returned HTTP %d", resp.StatusCode)
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Result{}, fmt.Errorf("parsing tavily response: %w", err)
	}

	var web []types.WebRecord
	for _, r := range tr.Results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		web = append(web, types.WebRecord{
			Title:     collapse(r.Title),
			URL:       r.URL,
			Content:   clip(collapse(r.Content), contentLen),
			Published: r.PublishedDate,
			Source:    "tavily",
		})
	}
	return Result{Web: web}, nil
}

// CrossrefSearch implements search-metadata against the Crossref works API.
type CrossrefSearch struct {
	Client     *http.Client
	UserAgent  string
	Mailto     string
	MaxResults int
}

// Name returns the action name.
func (c *CrossrefSearch) Name() string { return ActionSearchMetadata }

type crossrefResponse struct {
	Message struct {
		Items []crossrefItem `json:"items"`
	} `json:"message"`
}

type crossrefItem struct {
	DOI            string           `json:"DOI"`
	URL            string           `json:"URL"`
	Title          []string         `json:"title"`
	ContainerTitle []string         `json:"container-title"`
	Abstract       string           `json:"abstract"`
	Author         []crossrefAuthor `json:"author"`
	PublishedPrint *crossrefDate    `json:"published-print"`
	Published      *crossrefDate    `json:"published"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

func (d *crossrefDate) year() string {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return ""
	}
	return strconv.Itoa(d.DateParts[0][0])
}

var jatsTag = regexp.MustCompile(`<[^>]+>`)

// Invoke queries Crossref for works matching params["query"] that carry
// an abstract.
func (c *CrossrefSearch) Invoke(ctx context.Context, params Params) (Result, error) {
	query := params.String("query", "keywords", "topic")
	if query == "" {
		return Result{}, fmt.Errorf("search-metadata: missing query")
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("rows", strconv.Itoa(params.Int("max_results", max(c.MaxResults, 1))))
	q.Set("filter", "has-abstract:true")
	q.Set("sort", "relevance")
	q.Set("select", "DOI,URL,title,author,published-print,published,abstract,container-title")
	if c.Mailto != "" {
		q.Set("mailto", c.Mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, crossrefAPIBase+"?"+q.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 3)
	if err != nil {
		return Result{}, fmt.Errorf("crossref request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("crossref returned HTTP %d", resp.StatusCode)
	}

	var cr crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Result{}, fmt.Errorf("parsing crossref response: %w", err)
	}

	var web []types.WebRecord
	for _, it := range cr.Message.Items {
		if len(it.Title) == 0 || it.DOI == "" {
			continue
		}
		rec := types.WebRecord{
			Title:   collapse(it.Title[0]),
			DOI:     it.DOI,
			URL:     "https://doi.org/" + it.DOI,
			Content: clip(collapse(jatsTag.ReplaceAllString(it.Abstract, " ")), contentLen),
			Source:  "crossref",
		}
		if len(it.ContainerTitle) > 0 {
			rec.Journal = it.ContainerTitle[0]
		}
		if rec.Published = it.PublishedPrint.year(); rec.Published == "" {
			rec.Published = it.Published.year()
		}
		for _, a := range it.Author {
			name := strings.TrimSpace(a.Given + " " + a.Family)
			if name == "" {
				name = a.Name
			}
			if name != "" {
				rec.Authors = append(rec.Authors, name)
			}
		}
		web = append(web, rec)
	}
	return Result{Web: web}, nil
}
