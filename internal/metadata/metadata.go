// Package metadata resolves ticker symbols to company facts used for query
// construction: long name, sector, and CEO.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Metadata holds resolved company facts for one symbol.
type Metadata struct {
	Symbol      string
	CompanyName string
	Sector      string
	CEOName     string
}

// Provider fetches company metadata for a symbol.
type Provider interface {
	Fetch(ctx context.Context, symbol string) (Metadata, error)
}

// Resolver caches metadata per symbol for the life of one run. A failed fetch
// degrades to symbol-shaped defaults rather than erroring; duplicate in-flight
// fetches for the same symbol are allowed (the fetch is idempotent).
type Resolver struct {
	provider Provider
	log      zerolog.Logger

	mu    sync.Mutex
	cache map[string]Metadata
}

// NewResolver creates a resolver with an empty cache.
func NewResolver(provider Provider, log zerolog.Logger) *Resolver {
	return &Resolver{
		provider: provider,
		log:      log.With().Str("component", "metadata").Logger(),
		cache:    make(map[string]Metadata),
	}
}

// Resolve returns metadata for a symbol, consulting the cache first.
func (r *Resolver) Resolve(ctx context.Context, symbol string) Metadata {
	r.mu.Lock()
	if meta, ok := r.cache[symbol]; ok {
		r.mu.Unlock()
		return meta
	}
	r.mu.Unlock()

	meta, err := r.provider.Fetch(ctx, symbol)
	if err != nil {
		r.log.Warn().Str("symbol", symbol).Err(err).Msg("metadata fetch failed, using defaults")
		meta = Metadata{
			Symbol:      symbol,
			CompanyName: symbol,
			Sector:      "Business",
			CEOName:     "CEO",
		}
	}

	r.mu.Lock()
	r.cache[symbol] = meta
	r.mu.Unlock()
	return meta
}

const quoteSummaryURL = "https://query2.finance.yahoo.com/v10/finance/quoteSummary/%s?modules=assetProfile%%2Cprice"

// YahooClient fetches company metadata from the Yahoo quoteSummary endpoint.
type YahooClient struct {
	client *http.Client
}

// NewYahooClient creates a new Yahoo metadata client.
func NewYahooClient() *YahooClient {
	return &YahooClient{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch resolves a symbol via the assetProfile and price modules.
func (y *YahooClient) Fetch(ctx context.Context, symbol string) (Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf(quoteSummaryURL, symbol), nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "sentinel/1.0 (portfolio risk scout)")

	resp, err := y.client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("quoteSummary error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("quoteSummary returned %d", resp.StatusCode)
	}

	var result struct {
		QuoteSummary struct {
			Result []struct {
				AssetProfile struct {
					Sector          string           `json:"sector"`
					CompanyOfficers []companyOfficer `json:"companyOfficers"`
				} `json:"assetProfile"`
				Price struct {
					LongName string `json:"longName"`
				} `json:"price"`
			} `json:"result"`
		} `json:"quoteSummary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Metadata{}, fmt.Errorf("decoding quoteSummary: %w", err)
	}
	if len(result.QuoteSummary.Result) == 0 {
		return Metadata{}, fmt.Errorf("no quoteSummary result for %s", symbol)
	}

	entry := result.QuoteSummary.Result[0]

	meta := Metadata{
		Symbol:      symbol,
		CompanyName: entry.Price.LongName,
		Sector:      entry.AssetProfile.Sector,
		CEOName:     findCEO(entry.AssetProfile.CompanyOfficers),
	}
	if meta.CompanyName == "" {
		meta.CompanyName = symbol
	}
	if meta.Sector == "" {
		meta.Sector = "Business"
	}
	return meta, nil
}

type companyOfficer struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

func findCEO(officers []companyOfficer) string {
	for _, o := range officers {
		title := strings.ToUpper(o.Title)
		if strings.Contains(title, "CEO") || strings.Contains(title, "CHIEF EXECUTIVE OFFICER") {
			return o.Name
		}
	}
	return "CEO"
}
