// Package encyclopedia implements core.Encyclopedia against the Wikipedia
// search and page summary APIs.
package encyclopedia

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hupe1980/trekka/core"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	Sentences int
	Timeout   time.Duration
	UserAgent string
}

// Client looks up topics on Wikipedia.
type Client struct {
	http *resty.Client
	opts Options
}

// New creates a Client for the English Wikipedia.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:   "https://en.wikipedia.org",
		Sentences: 3,
		Timeout:   10 * time.Second,
		UserAgent: "Trekka/1.0 (travel assistant)",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("User-Agent", opts.UserAgent).
		SetTimeout(opts.Timeout)
	return &Client{http: httpClient, opts: opts}
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type summaryResponse struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// Summarize implements core.Encyclopedia. It returns core.ErrNotFound when
// no article matches the topic or the article has no extract.
func (c *Client) Summarize(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", core.ErrNotFound
	}

	title, err := c.resolveTitle(ctx, topic)
	if err != nil {
		return "", err
	}

	var sum summaryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&sum).
		Get("/api/rest_v1/page/summary/" + url.PathEscape(strings.ReplaceAll(title, " ", "_")))
	if err != nil {
		return "", fmt.Errorf("wikipedia summary: %w", err)
	}
	if resp.StatusCode() == 404 {
		return "", core.ErrNotFound
	}
	if resp.IsError() {
		return "", fmt.Errorf("wikipedia summary: status %d", resp.StatusCode())
	}

	extract := FirstSentences(sum.Extract, c.opts.Sentences)
	if extract == "" {
		return "", core.ErrNotFound
	}
	return extract, nil
}

func (c *Client) resolveTitle(ctx context.Context, topic string) (string, error) {
	var res searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"action":   "query",
			"list":     "search",
			"srsearch": topic,
			"srlimit":  "1",
			"format":   "json",
		}).
		SetResult(&res).
		Get("/w/api.php")
	if err != nil {
		return "", fmt.Errorf("wikipedia search: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("wikipedia search: status %d", resp.StatusCode())
	}
	if len(res.Query.Search) == 0 {
		return "", core.ErrNotFound
	}
	return res.Query.Search[0].Title, nil
}

// FirstSentences returns at most n sentences of text. A sentence ends at
// '.', '!' or '?' followed by whitespace or the end of input.
func FirstSentences(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if n <= 0 || text == "" {
		return text
	}
	count := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' {
				count++
				if count == n {
					return text[:i+1]
				}
			}
		}
	}
	return text
}

var _ core.Encyclopedia = (*Client)(nil)
