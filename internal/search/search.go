// Package search discovers raw news events for a holding by fanning a set of
// queries out to the configured sources and merging the results.
package search

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/config"
)

// Event is one raw news item as discovered. URL is the dedup key.
type Event struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Snippet       string `json:"snippet"`
	Source        string `json:"source"`
	PublishedDate string `json:"published_date"`
}

// Source is a single news search backend. Implementations degrade to an empty
// result on failure; a dark source never fails a holding.
type Source interface {
	SearchNews(ctx context.Context, query string, daysBack int) []Event
	Name() string
}

// Aggregator fans queries out to all sources and merges results by URL.
type Aggregator struct {
	sources []Source
	log     zerolog.Logger
}

// NewAggregator builds an aggregator from configuration. Disabled sources are
// skipped; an aggregator with no sources returns empty results.
func NewAggregator(cfg config.Search, log zerolog.Logger) *Aggregator {
	a := &Aggregator{log: log.With().Str("component", "search").Logger()}

	if cfg.SerpAPI.Enabled {
		client := NewSerpAPIClient(cfg.SerpAPI.APIKeyEnv, a.log)
		if client.IsConfigured() {
			a.sources = append(a.sources, client)
		} else {
			a.log.Warn().Msg("serpapi enabled but no API key set, skipping source")
		}
	}
	if cfg.NewsRSS.Enabled {
		a.sources = append(a.sources, NewGoogleNewsSource(a.log))
	}

	return a
}

// NewAggregatorFromSources builds an aggregator over explicit sources.
func NewAggregatorFromSources(log zerolog.Logger, sources ...Source) *Aggregator {
	return &Aggregator{sources: sources, log: log}
}

// Search runs every query against every source and returns the merged event
// list, deduplicated by URL in discovery order.
func (a *Aggregator) Search(ctx context.Context, queries []string, daysBack int) []Event {
	var raw []Event
	for _, q := range queries {
		for _, src := range a.sources {
			results := src.SearchNews(ctx, q, daysBack)
			a.log.Debug().Str("query", q).Str("source", src.Name()).Int("results", len(results)).Msg("query executed")
			raw = append(raw, results...)
		}
	}
	return DedupeByURL(raw)
}

// DedupeByURL removes events sharing a URL, keeping the first occurrence.
// The empty URL dedupes like any other key, so the first URL-less event
// survives; its title still feeds the fallback ranker. Idempotent.
func DedupeByURL(events []Event) []Event {
	seen := make(map[string]struct{}, len(events))
	var unique []Event
	for _, e := range events {
		if _, ok := seen[e.URL]; ok {
			continue
		}
		seen[e.URL] = struct{}{}
		unique = append(unique, e)
	}
	return unique
}
