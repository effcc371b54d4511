// Package brave adapts the Brave Search web API to the guard.Searcher contract.
package brave

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/neargravity/semguard/internal/domain"
)

const (
	defaultBaseURL = "https://api.search.brave.com/res/v1/web/search"
	providerName   = "brave_search"

	// maxCount is the Brave web search page-size limit.
	maxCount = 20
)

// Client is a Brave Search API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Config holds the Brave Search client settings.
type Config struct {
	APIKey  string
	BaseURL string // defaults to the public API endpoint
	Timeout time.Duration
}

// NewClient creates a Brave Search client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// braveResponse mirrors the subset of the web search response we consume.
type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search runs a web search and normalizes the hits into Documents.
// Result ids are derived from the hit URL so repeated queries produce
// stable identifiers.
func (c *Client) Search(ctx context.Context, query string, count int) ([]domain.Document, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: brave api key not configured", domain.ErrSearchProviderError)
	}
	if count <= 0 || count > maxCount {
		count = maxCount
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))
	params.Set("safesearch", "moderate")
	params.Set("text_decorations", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchProviderError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: brave returned status %d", domain.ErrSearchProviderError, resp.StatusCode)
	}

	var parsed braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrSearchProviderError, err)
	}

	hits := parsed.Web.Results
	if len(hits) > count {
		hits = hits[:count]
	}

	docs := make([]domain.Document, 0, len(hits))
	for i, hit := range hits {
		docs = append(docs, domain.Document{
			ID:       resultID(hit.URL),
			Title:    hit.Title,
			Snippet:  hit.Description,
			URL:      hit.URL,
			Rank:     i + 1,
			Provider: providerName,
		})
	}
	return docs, nil
}

// resultID derives a short stable id from the result URL.
func resultID(rawURL string) string {
	h := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(h[:])[:8]
}
