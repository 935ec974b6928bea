package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const serpAPIBaseURL = "https://serpapi.com/search.json"

// SerpAPIClient searches Google News via SerpApi.
type SerpAPIClient struct {
	apiKey string
	client *http.Client
	log    zerolog.Logger
}

// NewSerpAPIClient creates a new SerpApi client.
func NewSerpAPIClient(apiKeyEnv string, log zerolog.Logger) *SerpAPIClient {
	return &SerpAPIClient{
		apiKey: os.Getenv(apiKeyEnv),
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log.With().Str("source", "serpapi").Logger(),
	}
}

// IsConfigured returns whether the API key is available.
func (c *SerpAPIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Name identifies this source in logs.
func (c *SerpAPIClient) Name() string { return "serpapi" }

// SearchNews searches Google News for a query within a freshness window.
// Failures are logged and degrade to an empty result.
func (c *SerpAPIClient) SearchNews(ctx context.Context, query string, daysBack int) []Event {
	if c.apiKey == "" {
		return nil
	}

	params := url.Values{
		"engine":  {"google"},
		"tbm":     {"nws"},
		"q":       {query},
		"tbs":     {freshnessParam(daysBack)},
		"api_key": {c.apiKey},
		"gl":      {"us"},
		"hl":      {"en"},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", serpAPIBaseURL+"?"+params.Encode(), nil)
	if err != nil {
		c.log.Warn().Str("query", query).Err(err).Msg("building request failed")
		return nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Str("query", query).Err(err).Msg("search failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Str("query", query).Int("status", resp.StatusCode).Msg("search returned error status")
		return nil
	}

	var result struct {
		NewsResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
			Source  string `json:"source"`
			Date    string `json:"date"`
		} `json:"news_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.log.Warn().Str("query", query).Err(err).Msg("decoding search response failed")
		return nil
	}

	events := make([]Event, 0, len(result.NewsResults))
	for _, item := range result.NewsResults {
		snippet := item.Snippet
		if snippet == "" {
			snippet = "No snippet available"
		}
		events = append(events, Event{
			Title:         item.Title,
			URL:           item.Link,
			Snippet:       snippet,
			Source:        item.Source,
			PublishedDate: item.Date,
		})
	}
	return events
}

// freshnessParam maps a lookback window in days to Google's time-based search
// parameter: qdr:d for 24h, qdr:w up to a week, qdr:m up to a month.
func freshnessParam(daysBack int) string {
	switch {
	case daysBack <= 1:
		return "qdr:d"
	case daysBack <= 7:
		return "qdr:w"
	default:
		return "qdr:m"
	}
}
