package core

// Passage represents a retrieved knowledge-base snippet with a relevance score
// and arbitrary metadata (source file, paragraph index, ...).
type Passage struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

// SearchQuery parameterizes a web search. IncludeDomains restricts results to
// the given hosts when non-empty.
type SearchQuery struct {
	Query          string
	MaxResults     int
	IncludeDomains []string
}

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
}
