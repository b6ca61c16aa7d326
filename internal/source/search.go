package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/edvin/warroom/internal/fault"
)

// SearchClient queries a Tavily-compatible search API.
type SearchClient struct {
	baseURL    string
	apiKey     string
	maxResults int
	client     *http.Client
}

// NewSearchClient creates a search client.
func NewSearchClient(baseURL, apiKey string) *SearchClient {
	return &SearchClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		maxResults: 5,
		client:     &http.Client{Timeout: 20 * time.Second},
	}
}

type searchRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	Topic             string `json:"topic"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
	IncludeImages     bool   `json:"include_images"`
}

type searchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	RawContent    string  `json:"raw_content"`
	PublishedDate string  `json:"published_date"`
	Score         float64 `json:"score"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// Search runs one news search. Every failure is an ErrSource.
func (c *SearchClient) Search(ctx context.Context, query string) ([]Candidate, error) {
	body, err := json.Marshal(searchRequest{
		APIKey:            c.apiKey,
		Query:             query,
		SearchDepth:       "advanced",
		Topic:             "news",
		MaxResults:        c.maxResults,
		IncludeAnswer:     true,
		IncludeRawContent: true,
	})
	if err != nil {
		return nil, fault.Wrap(fault.ErrSource, "marshal search request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fault.Wrap(fault.ErrSource, "create search request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.ErrSource, "search request", err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fault.Wrap(fault.ErrSource, "search request",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fault.Wrap(fault.ErrSource, "decode search response", err)
	}

	out := make([]Candidate, 0, len(sr.Results))
	for _, r := range sr.Results {
		content := r.Content
		if content == "" {
			content = r.RawContent
		}
		out = append(out, Candidate{
			Title:     r.Title,
			URL:       r.URL,
			Content:   content,
			Published: r.PublishedDate,
			Score:     r.Score,
		})
	}
	return out, nil
}
