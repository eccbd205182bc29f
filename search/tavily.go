// Package search implements core.Searcher on top of the Tavily REST API.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/logging"
)

const defaultEndpoint = "https://api.tavily.com/search"

// APIError reports a non-2xx answer from the search backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tavily search API error (status %d): %s", e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
	// Depth is Tavily's search_depth ("basic" or "advanced").
	Depth  string
	Logger logging.Logger
}

// Client is a Tavily search client.
type Client struct {
	http *resty.Client
	opts Options
}

// New creates a Client.
func New(apiKey string, optFns ...func(o *Options)) *Client {
	opts := Options{
		APIKey:   apiKey,
		Endpoint: defaultEndpoint,
		Timeout:  15 * time.Second,
		Depth:    "basic",
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	httpClient := resty.New().
		SetHeader("User-Agent", "Trekka/1.0").
		SetTimeout(opts.Timeout).
		SetRetryCount(0)
	return &Client{http: httpClient, opts: opts}
}

type tavilyResponse struct {
	Query   string         `json:"query"`
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Search implements core.Searcher.
func (c *Client) Search(ctx context.Context, q core.SearchQuery) ([]core.SearchResult, error) {
	if strings.TrimSpace(q.Query) == "" {
		return []core.SearchResult{}, nil
	}
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}

	body := map[string]any{
		"api_key":             c.opts.APIKey,
		"query":               q.Query,
		"search_depth":        c.opts.Depth,
		"max_results":         maxResults,
		"include_answer":      false,
		"include_raw_content": false,
	}
	if len(q.IncludeDomains) > 0 {
		body["include_domains"] = q.IncludeDomains
	}

	var res tavilyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&res).
		Post(c.opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("query tavily search API: %w", err)
	}
	if resp.IsError() {
		c.opts.Logger.Warn("tavily search API error", "status", resp.StatusCode())
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	out := make([]core.SearchResult, 0, len(res.Results))
	for _, item := range res.Results {
		if len(out) == maxResults {
			break
		}
		out = append(out, core.SearchResult{
			Title:   item.Title,
			Content: item.Content,
			Source:  "tavily",
			URL:     item.URL,
			Score:   item.Score,
		})
	}
	return out, nil
}

var _ core.Searcher = (*Client)(nil)
