// Package pipeline orchestrates a full portfolio scan: per holding, news
// discovery feeds ranking, ranking feeds the situation summary, and the
// summary is matched against historical archetypes before the advisor
// renders a verdict.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/advisor"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/config"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/fetch"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/historian"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/llm"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/metadata"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/rank"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/search"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/storage"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/summarize"
)

// Holding is one portfolio position to scan.
type Holding struct {
	Symbol string  `json:"symbol" yaml:"symbol"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Context pairs one archetype match with the stock's realized performance
// over that archetype's window.
type Context struct {
	Archetype   historian.Match       `json:"archetype"`
	Performance historian.Performance `json:"performance"`
}

// HoldingReport is the full briefing for one holding.
type HoldingReport struct {
	Summary           string       `json:"summary"`
	Events            []rank.Event `json:"events"`
	HistoricalContext []Context    `json:"historical_context"`
	AdvisorReport     *advisor.Report
}

// MarshalJSON keeps advisor_report an empty object when no verdict was
// produced, so readers can index into it unconditionally.
func (h HoldingReport) MarshalJSON() ([]byte, error) {
	report := json.RawMessage("{}")
	if h.AdvisorReport != nil {
		raw, err := json.Marshal(h.AdvisorReport)
		if err != nil {
			return nil, err
		}
		report = raw
	}
	return json.Marshal(struct {
		Summary           string          `json:"summary"`
		Events            []rank.Event    `json:"events"`
		HistoricalContext []Context       `json:"historical_context"`
		AdvisorReport     json.RawMessage `json:"advisor_report"`
	}{h.Summary, h.Events, h.HistoricalContext, report})
}

// Run is the artifact produced by one scan.
type Run struct {
	Timestamp string    `json:"timestamp"`
	Data      RunData   `json:"data"`
	Config    RunConfig `json:"config"`
}

// RunData holds per-symbol reports.
type RunData struct {
	Holdings map[string]HoldingReport `json:"holdings"`
}

// RunConfig records what the scan actually searched for.
type RunConfig struct {
	QueriesRun []string `json:"queries_run"`
}

// Pipeline runs portfolio scans.
type Pipeline struct {
	cfg        *config.Config
	resolver   *metadata.Resolver
	aggregator *search.Aggregator
	filler     *fetch.SnippetFiller
	ranker     *rank.Ranker
	summarizer *summarize.Summarizer
	engine     *historian.Engine
	calculator *historian.Calculator
	advisor    *advisor.Advisor
	archiver   storage.Archiver
	workers    int
	log        zerolog.Logger
}

// New wires a pipeline from configuration. archiver may be nil when
// archival is disabled.
func New(cfg *config.Config, archiver storage.Archiver, log zerolog.Logger) *Pipeline {
	provider := llm.CreateProvider(cfg.Inference, log)

	embModel := cfg.Inference.EmbeddingModel
	if embModel == "" {
		embModel = "nomic-embed-text"
	}
	baseURL := cfg.Inference.OllamaURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	embedder := llm.NewOllamaEmbedder(embModel, baseURL)

	index := historian.NewChromaIndex(cfg.Historian.IndexURL, cfg.Historian.Collection)

	workers := cfg.Pipeline.Workers
	if workers < 1 {
		workers = 1
	}

	return &Pipeline{
		cfg:        cfg,
		resolver:   metadata.NewResolver(metadata.NewYahooClient(), log),
		aggregator: search.NewAggregator(cfg.Search, log),
		filler:     fetch.NewSnippetFiller(15*time.Second, log),
		ranker:     rank.NewRanker(provider, cfg.Search.MaxRawItems, log),
		summarizer: summarize.NewSummarizer(provider, log),
		engine:     historian.NewEngine(embedder, index, cfg.Historian.EmbeddingDim, log),
		calculator: historian.NewCalculator(historian.YahooMarketData{}, log),
		advisor:    advisor.New(provider, log),
		archiver:   archiver,
		workers:    workers,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// Scan runs the full briefing pipeline over a portfolio. Individual holdings
// degrade to failure reports; only an empty portfolio is an error.
func (p *Pipeline) Scan(ctx context.Context, portfolio []Holding) (*Run, error) {
	if len(portfolio) == 0 {
		return nil, fmt.Errorf("no portfolio provided")
	}

	p.log.Info().Int("holdings", len(portfolio)).Msg("scan started")

	type holdingResult struct {
		report  HoldingReport
		queries []string
	}
	results := make([]holdingResult, len(portfolio))

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for i, holding := range portfolio {
		wg.Add(1)
		go func(i int, holding Holding) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			report, queries := p.processHolding(ctx, holding.Symbol)
			results[i] = holdingResult{report: report, queries: queries}
		}(i, holding)
	}
	wg.Wait()

	run := &Run{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      RunData{Holdings: make(map[string]HoldingReport, len(portfolio))},
	}
	for i, holding := range portfolio {
		run.Data.Holdings[holding.Symbol] = results[i].report
		run.Config.QueriesRun = append(run.Config.QueriesRun, results[i].queries...)
	}

	p.log.Info().Int("holdings", len(run.Data.Holdings)).
		Int("queries", len(run.Config.QueriesRun)).Msg("scan complete")
	return run, nil
}

// processHolding produces the briefing for one symbol. Failures never
// escape the holding boundary.
func (p *Pipeline) processHolding(ctx context.Context, symbol string) (report HoldingReport, queries []string) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Str("symbol", symbol).Any("panic", r).Msg("holding processing panicked")
			report = failedReport(fmt.Sprintf("%v", r))
		}
	}()

	hlog := p.log.With().Str("symbol", symbol).Logger()

	meta := p.resolver.Resolve(ctx, symbol)
	queries = buildQueries(meta)

	raw := p.aggregator.Search(ctx, queries, p.cfg.Search.DaysBack)
	hlog.Info().Int("raw", len(raw)).Msg("collected events")

	p.archiveRaw(ctx, symbol, raw)
	p.filler.FillMissingSnippets(raw)

	events := p.ranker.Rank(ctx, symbol, raw)
	summary := p.summarizer.Summarize(ctx, symbol, events)

	var contexts []Context
	if len(events) > 0 {
		matches, err := p.engine.FindMatches(ctx, summary, p.cfg.Historian.TopK)
		if err != nil {
			hlog.Error().Err(err).Msg("archetype matching failed")
			return failedReport(err.Error()), queries
		}
		for _, m := range matches {
			hlog.Debug().Str("archetype", m.ArchetypeID).Float64("distance", m.Distance).Msg("matched")
			contexts = append(contexts, Context{
				Archetype:   m,
				Performance: p.calculator.Performance(ctx, m.Ticker, m.Period),
			})
		}
	}

	report = HoldingReport{
		Summary:           summary,
		Events:            events,
		HistoricalContext: contexts,
	}
	if summary != "" {
		verdict := p.advisor.Analyze(ctx, symbol, summary, matchesOf(contexts))
		hlog.Info().Str("verdict", verdict.Verdict).Int("confidence", verdict.Confidence).Msg("advisor verdict")
		report.AdvisorReport = &verdict
	}
	if report.Events == nil {
		report.Events = []rank.Event{}
	}
	if report.HistoricalContext == nil {
		report.HistoricalContext = []Context{}
	}
	return report, queries
}

// buildQueries derives the deterministic search queries for a holding:
// company name, CEO when known, and sector news.
func buildQueries(meta metadata.Metadata) []string {
	queries := []string{meta.CompanyName}
	if meta.CEOName != "" && meta.CEOName != "Unknown" && meta.CEOName != "CEO" {
		queries = append(queries, meta.CEOName)
	}
	if meta.Sector != "" {
		queries = append(queries, meta.Sector+" News")
	}
	return queries
}

func (p *Pipeline) archiveRaw(ctx context.Context, symbol string, raw []search.Event) {
	if p.archiver == nil || len(raw) == 0 {
		return
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return
	}
	// Best effort; the archiver logs its own failures.
	_ = p.archiver.ArchiveRawEvents(ctx, symbol, payload)
}

func matchesOf(contexts []Context) []historian.Match {
	matches := make([]historian.Match, 0, len(contexts))
	for _, c := range contexts {
		matches = append(matches, c.Archetype)
	}
	return matches
}

func failedReport(cause string) HoldingReport {
	return HoldingReport{
		Summary:           fmt.Sprintf("Processing Failed: %s", cause),
		Events:            []rank.Event{},
		HistoricalContext: []Context{},
	}
}
