// Package advisor synthesizes the current news picture and the retrieved
// historical parallels into a single strategic verdict per holding.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/historian"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/llm"
)

// Verdict values the model is asked to choose between. Unknown is reserved
// for the degraded path and is never offered to the model.
const (
	VerdictCriticalRisk = "Critical Risk"
	VerdictElevatedRisk = "Elevated Risk"
	VerdictNeutral      = "Neutral"
	VerdictOpportunity  = "Opportunity"
	VerdictUnknown      = "Unknown"
)

const maxContexts = 3

const advisorSystemPrompt = "You are a Chief Risk Officer (CRO) at a top hedge fund. " +
	"Your job is to synthesize conflicting signals into a concrete strategic assessment. " +
	"You must balance the 'Situation Now' (News) with the 'Ghost of Risk Past' (History)."

// Report is the advisor's verdict for one holding.
type Report struct {
	Verdict    string   `json:"verdict"`
	Confidence int      `json:"confidence"`
	Synthesis  string   `json:"synthesis"`
	ActionPlan []string `json:"action_plan"`
}

// Advisor produces strategic reports from summaries and archetype matches.
type Advisor struct {
	provider llm.Provider
	log      zerolog.Logger
}

// New creates an advisor backed by the given provider.
func New(provider llm.Provider, log zerolog.Logger) *Advisor {
	return &Advisor{
		provider: provider,
		log:      log.With().Str("component", "advisor").Logger(),
	}
}

// Analyze weighs the situation summary against the historical parallels and
// returns a verdict. It never fails: any model or parse error degrades to an
// Unknown report carrying the raw response for inspection.
func (a *Advisor) Analyze(ctx context.Context, ticker, summary string, matches []historian.Match) Report {
	prompt := a.buildPrompt(ticker, summary, matches)

	if a.provider == nil {
		return degradedReport("")
	}
	response, err := a.provider.Generate(ctx, advisorSystemPrompt, prompt, 2000)
	if err != nil {
		a.log.Warn().Str("ticker", ticker).Err(err).Msg("advisor model call failed")
		return degradedReport("")
	}

	report, ok := parseReport(response)
	if !ok {
		a.log.Warn().Str("ticker", ticker).Msg("advisor response failed to parse")
		return degradedReport(response)
	}
	return report
}

func (a *Advisor) buildPrompt(ticker, summary string, matches []historian.Match) string {
	var history strings.Builder
	if len(matches) > maxContexts {
		matches = matches[:maxContexts]
	}
	for i, m := range matches {
		fmt.Fprintf(&history, "Archetype %d: %s (Distance: %.2f)\n", i+1, m.Name, m.Distance)
		fmt.Fprintf(&history, "  - What happened: %s\n", m.HistoricalSummary)
		fmt.Fprintf(&history, "  - Typical Impact: %s\n\n", m.TypicalImpact)
	}

	return fmt.Sprintf(`**ASSET**: %s

**SIGNAL 1: THE SITUATION NOW (News)**
%s

**SIGNAL 2: THE HISTORICAL PARALLELS (Archetypes)**
%s

**TASK**:
Analyze if the current news actually aligns with these historical warning signs, or if the history is just noise.
Produce a JSON object with the following fields:
- 'verdict': One of ['Critical Risk', 'Elevated Risk', 'Neutral', 'Opportunity']
- 'confidence': Integer 0-100
- 'synthesis': A sharp, 1-paragraph executive summary connecting the dots.
- 'action_plan': A list of 3 specific bullet points for the portfolio manager.

Output ONLY Valid JSON.`, ticker, summary, history.String())
}

func parseReport(response string) (Report, bool) {
	data := llm.ParseJSONResponse(response)
	if data == nil {
		return Report{}, false
	}

	report := Report{
		Verdict:   asString(data["verdict"]),
		Synthesis: asString(data["synthesis"]),
	}
	if c, ok := data["confidence"].(float64); ok {
		report.Confidence = int(c)
	}
	if items, ok := data["action_plan"].([]any); ok {
		for _, item := range items {
			if s := asString(item); s != "" {
				report.ActionPlan = append(report.ActionPlan, s)
			}
		}
	}
	if report.Verdict == "" {
		return Report{}, false
	}
	return report, true
}

func degradedReport(response string) Report {
	return Report{
		Verdict:    VerdictUnknown,
		Confidence: 0,
		Synthesis:  fmt.Sprintf("Analysis failed to parse: %s...", excerpt(response, 100)),
		ActionPlan: []string{"Check data feeds"},
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
