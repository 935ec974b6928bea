// Package summarize condenses a holding's ranked events into a prose
// situation summary for downstream matching and synthesis.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/llm"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/rank"
)

// NoEventsSummary is returned without an inference call when a holding has
// no ranked events.
const NoEventsSummary = "No significant material events detected."

const summarySystemPrompt = "You are a Senior Risk Analyst writing a briefing for a Portfolio Manager."

const summaryPrompt = `Ticker: %s
Key Developments:
%s

Provide a DETAILED analysis (2 paragraphs).
1. Synthesize the key risks and opportunities based *strictly* on these events.
2. Connect the dots between separate events if possible (e.g. supply chain issues affecting earnings).
Do NOT be generic. Be specific to the news provided.`

// Summarizer writes the situation summary for one holding.
type Summarizer struct {
	provider llm.Provider
	log      zerolog.Logger
}

// NewSummarizer creates a new summarizer.
func NewSummarizer(provider llm.Provider, log zerolog.Logger) *Summarizer {
	return &Summarizer{
		provider: provider,
		log:      log.With().Str("component", "summarize").Logger(),
	}
}

// Summarize returns a two-paragraph situation summary grounded in the ranked
// events. Empty input short-circuits to NoEventsSummary; an inference failure
// degrades to an empty string.
func (s *Summarizer) Summarize(ctx context.Context, symbol string, events []rank.Event) string {
	if len(events) == 0 {
		return NoEventsSummary
	}
	if s.provider == nil {
		s.log.Warn().Str("symbol", symbol).Msg("no LLM provider for summary")
		return ""
	}

	var lines []string
	for _, e := range events {
		lines = append(lines, fmt.Sprintf("- %s (Score: %d): %s", e.Title, e.RelevanceScore, e.Snippet))
	}
	prompt := fmt.Sprintf(summaryPrompt, symbol, strings.Join(lines, "\n"))

	summary, err := s.provider.Generate(ctx, summarySystemPrompt, prompt, 2000)
	if err != nil {
		s.log.Warn().Str("symbol", symbol).Err(err).Msg("summary call failed")
		return ""
	}
	return strings.TrimSpace(summary)
}
