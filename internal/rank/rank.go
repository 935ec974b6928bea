// Package rank filters raw news events down to material storylines and
// scores them. The primary path is an LLM judgment call; when that call
// fails or returns an unusable shape, a deterministic fallback keeps the
// pipeline moving.
package rank

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/llm"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/search"
)

// DefaultMaxInput caps how many raw items are offered to the model. Later
// items are dropped silently; this is a throughput safeguard.
const DefaultMaxInput = 50

// fallbackCap limits how many items the deterministic fallback keeps.
const fallbackCap = 10

const fallbackReason = "Automated selection (Parse Error)"

const rankSystemPrompt = `You are a strict Senior Editor. Your goal is to curate a high-signal news feed for a Portfolio Manager.
1. ELIMINATE REDUNDANCY: If multiple articles cover the exact same event, keep ONLY the best source.
2. STRICT RELEVANCE: Discard generic market updates, 'top 10' lists, or minor price movements. Keep only MATERIAL events (earnings, reg action, M&A, supply chain).
3. RANKING: Score each item 1-10 on material impact.`

const rankPrompt = `Ticker: %s
Raw Feed:
%s

Task:
1. Identify the unique, material storylines.
2. Select the single best article for each storyline.
3. Rank them by importance (10 = Critical).

Return JSON: a list of objects selected: [{"id": int, "score": int, "reason": str}, ...]`

// Event is a raw event that survived filtering, with its relevance score.
type Event struct {
	search.Event
	RelevanceScore int    `json:"relevance_score"`
	Reason         string `json:"reason"`
}

// Ranker scores raw events for one holding.
type Ranker struct {
	provider llm.Provider
	maxInput int
	log      zerolog.Logger
}

// NewRanker creates a ranker. maxInput <= 0 applies DefaultMaxInput.
func NewRanker(provider llm.Provider, maxInput int, log zerolog.Logger) *Ranker {
	if maxInput <= 0 {
		maxInput = DefaultMaxInput
	}
	return &Ranker{
		provider: provider,
		maxInput: maxInput,
		log:      log.With().Str("component", "rank").Logger(),
	}
}

// Rank deduplicates, filters, and scores raw events. The returned list is
// ordered by relevance score descending; ties keep discovery order.
func (r *Ranker) Rank(ctx context.Context, symbol string, raw []search.Event) []Event {
	if len(raw) == 0 {
		return nil
	}
	if len(raw) > r.maxInput {
		raw = raw[:r.maxInput]
	}

	if r.provider == nil {
		r.log.Warn().Str("symbol", symbol).Msg("no LLM provider, using fallback ranking")
		return fallback(raw)
	}

	response, err := r.provider.Generate(ctx, rankSystemPrompt, buildRankPrompt(symbol, raw), 2000)
	if err != nil {
		r.log.Warn().Str("symbol", symbol).Err(err).Msg("rank call failed, using fallback")
		return fallback(raw)
	}

	ranked, ok := parseSelection(response, raw)
	if !ok {
		r.log.Warn().Str("symbol", symbol).Str("head", excerpt(response, 200)).Msg("unparseable rank response, using fallback")
		return fallback(raw)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})
	return ranked
}

func buildRankPrompt(symbol string, raw []search.Event) string {
	var digest strings.Builder
	for i, e := range raw {
		fmt.Fprintf(&digest, "ID: %d | Title: %s | Snippet: %s\n", i, e.Title, e.Snippet)
	}
	return fmt.Sprintf(rankPrompt, symbol, digest.String())
}

// parseSelection maps the model's {id, score, reason} selections back onto
// the raw events. Non-integer or out-of-range ids are dropped silently.
// Returns ok=false when the response is not an array, or is a non-empty
// array containing no object elements at all.
func parseSelection(response string, raw []search.Event) ([]Event, bool) {
	items := llm.ParseJSONArray(response)
	if items == nil {
		return nil, false
	}

	sawObject := false
	var ranked []Event
	for _, item := range items {
		obj, isObj := item.(map[string]any)
		if !isObj {
			continue
		}
		sawObject = true
		idx, isInt := asIndex(obj["id"])
		if !isInt || idx < 0 || idx >= len(raw) {
			continue
		}
		ranked = append(ranked, Event{
			Event:          raw[idx],
			RelevanceScore: clampScore(asInt(obj["score"], 0)),
			Reason:         asString(obj["reason"]),
		})
	}
	if len(items) > 0 && !sawObject {
		return nil, false
	}
	return ranked, true
}

// fallback deduplicates by exact title (first occurrence wins) and assigns a
// neutral default score. Never empty for non-empty input with a unique title.
func fallback(raw []search.Event) []Event {
	seen := make(map[string]struct{}, len(raw))
	var kept []Event
	for _, e := range raw {
		if _, dup := seen[e.Title]; dup {
			continue
		}
		seen[e.Title] = struct{}{}
		kept = append(kept, Event{
			Event:          e,
			RelevanceScore: 5,
			Reason:         fallbackReason,
		})
		if len(kept) >= fallbackCap {
			break
		}
	}
	return kept
}

// asIndex accepts only whole numbers; "2.5" or "first" are not valid ids.
func asIndex(v any) (int, bool) {
	f, isNum := v.(float64)
	if !isNum || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func asInt(v any, def int) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return def
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
