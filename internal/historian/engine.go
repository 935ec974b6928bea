// Package historian matches a holding's situation summary against a fixed
// catalog of historical risk archetypes and computes what each archetype's
// episode actually did to the underlying stock.
package historian

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/llm"
)

// DefaultTopK is the number of archetype matches retrieved per holding.
const DefaultTopK = 3

// Match is one archetype retrieved for a situation summary.
type Match struct {
	ArchetypeID       string  `json:"archetype_id"`
	Ticker            string  `json:"ticker"`
	Name              string  `json:"name"`
	Period            string  `json:"period"`
	HistoricalSummary string  `json:"historical_summary"`
	TypicalImpact     string  `json:"typical_impact"`
	Distance          float64 `json:"distance"`
}

// Engine embeds summaries and retrieves nearest archetypes from the index.
// The catalog is seeded into the index the first time it is found empty;
// seeding is guarded so concurrent holdings cannot double-seed.
type Engine struct {
	embedder llm.Embedder
	index    VectorIndex
	dim      int
	log      zerolog.Logger

	seedMu sync.Mutex
	seeded bool
}

// NewEngine creates a matching engine. dim is the embedding dimension used
// for the degraded zero vector when embedding fails.
func NewEngine(embedder llm.Embedder, index VectorIndex, dim int, log zerolog.Logger) *Engine {
	return &Engine{
		embedder: embedder,
		index:    index,
		dim:      dim,
		log:      log.With().Str("component", "historian").Logger(),
	}
}

// FindMatches returns the k nearest archetypes for a situation summary,
// ordered by ascending distance.
func (e *Engine) FindMatches(ctx context.Context, summary string, k int) ([]Match, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if err := e.ensureSeeded(ctx); err != nil {
		return nil, err
	}

	results, err := e.index.Query(ctx, e.embed(ctx, summary), k)
	if err != nil {
		return nil, fmt.Errorf("archetype query: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			ArchetypeID:       r.ID,
			Ticker:            r.Metadata["ticker"],
			Name:              r.Metadata["name"],
			Period:            r.Metadata["period"],
			HistoricalSummary: r.Metadata["full_summary"],
			TypicalImpact:     r.Metadata["typical_impact"],
			Distance:          r.Distance,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	return matches, nil
}

// ensureSeeded seeds the catalog into an empty index at most once. A
// non-empty index is left untouched. A failed attempt re-arms the gate so a
// transient index outage on one holding does not doom the rest of the run.
func (e *Engine) ensureSeeded(ctx context.Context) error {
	e.seedMu.Lock()
	defer e.seedMu.Unlock()
	if e.seeded {
		return nil
	}

	count, err := e.index.Count(ctx)
	if err != nil {
		return fmt.Errorf("checking index: %w", err)
	}
	if count > 0 {
		e.seeded = true
		return nil
	}

	archetypes := Catalog()
	e.log.Info().Int("archetypes", len(archetypes)).Msg("seeding empty archetype index")

	items := make([]IndexItem, 0, len(archetypes))
	for _, arch := range archetypes {
		text := fmt.Sprintf("%s: %s", arch.Name, arch.Summary)
		items = append(items, IndexItem{
			ID:        arch.ID,
			Embedding: e.embed(ctx, text),
			Document:  text,
			Metadata: map[string]string{
				"ticker":         arch.Ticker,
				"name":           arch.Name,
				"period":         arch.Period,
				"typical_impact": arch.TypicalImpact,
				"full_summary":   arch.Summary,
			},
		})
	}
	if err := e.index.Add(ctx, items); err != nil {
		return fmt.Errorf("seeding archetypes: %w", err)
	}
	e.seeded = true
	return nil
}

// embed returns the embedding for a text, degrading to a zero vector so a
// dark embedder yields a least-similar match set instead of a failed holding.
func (e *Engine) embed(ctx context.Context, text string) []float64 {
	if e.embedder != nil {
		vectors, err := e.embedder.Embed(ctx, []string{text})
		if err == nil && len(vectors) == 1 && len(vectors[0]) > 0 {
			return vectors[0]
		}
		if err != nil {
			e.log.Warn().Err(err).Msg("embedding failed, using zero vector")
		}
	}
	return make([]float64, e.dim)
}
