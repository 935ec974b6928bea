package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/advisor"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/config"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/fetch"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/historian"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/metadata"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/rank"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/search"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/summarize"
)

// routingProvider answers each agent role with a canned response keyed off
// the system prompt.
type routingProvider struct {
	rankResponse    string
	summaryResponse string
	advisorResponse string
}

func (r *routingProvider) Generate(_ context.Context, system, _ string, _ int) (string, error) {
	switch {
	case strings.Contains(system, "Senior Editor"):
		return r.rankResponse, nil
	case strings.Contains(system, "Senior Risk Analyst"):
		return r.summaryResponse, nil
	case strings.Contains(system, "Chief Risk Officer"):
		return r.advisorResponse, nil
	}
	return "", errors.New("unexpected system prompt")
}

func (r *routingProvider) IsConfigured() bool { return true }

type fakeMetadata struct{}

func (fakeMetadata) Fetch(_ context.Context, symbol string) (metadata.Metadata, error) {
	return metadata.Metadata{
		Symbol:      symbol,
		CompanyName: symbol + " Corp",
		Sector:      "Technology",
		CEOName:     "Pat Example",
	}, nil
}

type fakeSource struct {
	events []search.Event
}

func (f *fakeSource) SearchNews(_ context.Context, _ string, _ int) []search.Event {
	return f.events
}

func (f *fakeSource) Name() string { return "fake" }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range out {
		out[i] = []float64{1, 0, 0}
	}
	return out, nil
}

type fakeIndex struct {
	count    int
	results  []historian.IndexResult
	queryErr error
	queried  int
}

func (f *fakeIndex) Count(_ context.Context) (int, error) { return f.count, nil }

func (f *fakeIndex) Add(_ context.Context, items []historian.IndexItem) error {
	f.count += len(items)
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float64, k int) ([]historian.IndexResult, error) {
	f.queried++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

type fakeMarket struct{}

func (fakeMarket) DailyBars(_ context.Context, _ string, start, _ time.Time) ([]historian.Bar, error) {
	return []historian.Bar{
		{Date: start.AddDate(0, 0, 7), Close: 100},
		{Date: start.AddDate(0, 0, 14), Close: 80},
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Search:    config.Search{DaysBack: 2, MaxRawItems: 50},
		Historian: config.Historian{TopK: 3, EmbeddingDim: 3},
		Pipeline:  config.Pipeline{Workers: 2},
	}
}

func testPipeline(provider *routingProvider, source search.Source, index historian.VectorIndex) *Pipeline {
	log := zerolog.Nop()
	cfg := testConfig()
	return &Pipeline{
		cfg:        cfg,
		resolver:   metadata.NewResolver(fakeMetadata{}, log),
		aggregator: search.NewAggregatorFromSources(log, source),
		filler:     fetch.NewSnippetFiller(time.Second, log),
		ranker:     rank.NewRanker(provider, cfg.Search.MaxRawItems, log),
		summarizer: summarize.NewSummarizer(provider, log),
		engine:     historian.NewEngine(fakeEmbedder{}, index, 3, log),
		calculator: historian.NewCalculator(fakeMarket{}, log),
		advisor:    advisor.New(provider, log),
		workers:    cfg.Pipeline.Workers,
		log:        log,
	}
}

func happyProvider() *routingProvider {
	return &routingProvider{
		rankResponse:    `[{"id": 0, "score": 8, "reason": "guidance cut"}]`,
		summaryResponse: "Management cut guidance on weak demand.",
		advisorResponse: `{"verdict": "Elevated Risk", "confidence": 70, "synthesis": "History rhymes.", "action_plan": ["Trim", "Hedge", "Watch"]}`,
	}
}

func archetypeIndex() *fakeIndex {
	return &fakeIndex{
		count: 9,
		results: []historian.IndexResult{{
			ID:       "INTC_2012",
			Distance: 0.4,
			Metadata: map[string]string{
				"ticker": "INTC",
				"name":   "Platform Shift Miss",
				"period": "2012-05-01_to_2013-01-01",
			},
		}},
	}
}

func sourceEvents() []search.Event {
	return []search.Event{{
		Title:   "ACME cuts guidance",
		URL:     "https://example.com/guidance",
		Snippet: "Weak demand cited.",
		Source:  "Example Wire",
	}}
}

func TestScanRejectsEmptyPortfolio(t *testing.T) {
	p := testPipeline(happyProvider(), &fakeSource{}, archetypeIndex())
	if _, err := p.Scan(context.Background(), nil); err == nil {
		t.Fatal("empty portfolio accepted")
	}
}

func TestScanProducesFullHoldingReport(t *testing.T) {
	p := testPipeline(happyProvider(), &fakeSource{events: sourceEvents()}, archetypeIndex())

	run, err := p.Scan(context.Background(), []Holding{{Symbol: "ACME", Weight: 1}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	report, ok := run.Data.Holdings["ACME"]
	if !ok {
		t.Fatalf("holdings = %v", run.Data.Holdings)
	}
	if report.Summary != "Management cut guidance on weak demand." {
		t.Errorf("Summary = %q", report.Summary)
	}
	if len(report.Events) != 1 || report.Events[0].RelevanceScore != 8 {
		t.Errorf("Events = %+v", report.Events)
	}
	if len(report.HistoricalContext) != 1 {
		t.Fatalf("HistoricalContext = %+v", report.HistoricalContext)
	}
	ctx := report.HistoricalContext[0]
	if ctx.Archetype.ArchetypeID != "INTC_2012" {
		t.Errorf("Archetype = %+v", ctx.Archetype)
	}
	if ctx.Performance.IsError() {
		t.Errorf("Performance = %+v", ctx.Performance)
	}
	if ctx.Performance.TotalReturnPct != -20 {
		t.Errorf("TotalReturnPct = %v, want -20", ctx.Performance.TotalReturnPct)
	}
	if report.AdvisorReport == nil || report.AdvisorReport.Verdict != "Elevated Risk" {
		t.Errorf("AdvisorReport = %+v", report.AdvisorReport)
	}
	if run.Timestamp == "" {
		t.Error("run has no timestamp")
	}
}

func TestScanRecordsQueriesInPortfolioOrder(t *testing.T) {
	p := testPipeline(happyProvider(), &fakeSource{events: sourceEvents()}, archetypeIndex())

	run, err := p.Scan(context.Background(), []Holding{
		{Symbol: "AAA", Weight: 0.5},
		{Symbol: "BBB", Weight: 0.5},
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []string{
		"AAA Corp", "Pat Example", "Technology News",
		"BBB Corp", "Pat Example", "Technology News",
	}
	if len(run.Config.QueriesRun) != len(want) {
		t.Fatalf("QueriesRun = %v", run.Config.QueriesRun)
	}
	for i, q := range want {
		if run.Config.QueriesRun[i] != q {
			t.Errorf("QueriesRun[%d] = %q, want %q", i, run.Config.QueriesRun[i], q)
		}
	}
}

func TestScanSkipsHistorianWithoutEvents(t *testing.T) {
	idx := archetypeIndex()
	provider := happyProvider()
	provider.rankResponse = `[]`
	p := testPipeline(provider, &fakeSource{}, idx)

	run, err := p.Scan(context.Background(), []Holding{{Symbol: "ACME"}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if idx.queried != 0 {
		t.Errorf("index queried %d times with no events", idx.queried)
	}

	report := run.Data.Holdings["ACME"]
	if report.Summary != summarize.NoEventsSummary {
		t.Errorf("Summary = %q", report.Summary)
	}
	if len(report.HistoricalContext) != 0 {
		t.Errorf("HistoricalContext = %+v", report.HistoricalContext)
	}
	// The advisor still runs on the no-events summary.
	if report.AdvisorReport == nil {
		t.Error("advisor skipped despite non-empty summary")
	}
}

func TestScanDegradesHoldingOnHistorianFailure(t *testing.T) {
	idx := archetypeIndex()
	idx.queryErr = errors.New("index unreachable")
	p := testPipeline(happyProvider(), &fakeSource{events: sourceEvents()}, idx)

	run, err := p.Scan(context.Background(), []Holding{{Symbol: "ACME"}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	report := run.Data.Holdings["ACME"]
	if !strings.HasPrefix(report.Summary, "Processing Failed: ") {
		t.Errorf("Summary = %q", report.Summary)
	}
	if len(report.Events) != 0 || len(report.HistoricalContext) != 0 {
		t.Errorf("degraded report kept data: %+v", report)
	}
	if report.AdvisorReport != nil {
		t.Errorf("degraded report has advisor verdict: %+v", report.AdvisorReport)
	}
}

// failingOnceIndex fails exactly one Query call, then recovers.
type failingOnceIndex struct {
	fakeIndex
	failOn int
}

func (f *failingOnceIndex) Query(ctx context.Context, emb []float64, k int) ([]historian.IndexResult, error) {
	f.queried++
	if f.queried == f.failOn {
		return nil, errors.New("index unreachable")
	}
	if k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

func TestScanOneFailureDoesNotAffectOthers(t *testing.T) {
	// BBB's historian query fails; AAA and CCC complete normally.
	idx := &failingOnceIndex{fakeIndex: *archetypeIndex(), failOn: 2}
	p := testPipeline(happyProvider(), &fakeSource{events: sourceEvents()}, idx)
	p.workers = 1

	run, err := p.Scan(context.Background(), []Holding{{Symbol: "AAA"}, {Symbol: "BBB"}, {Symbol: "CCC"}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(run.Data.Holdings) != 3 {
		t.Fatalf("holdings = %v", run.Data.Holdings)
	}
	if !strings.HasPrefix(run.Data.Holdings["BBB"].Summary, "Processing Failed: ") {
		t.Errorf("BBB should have failed: %q", run.Data.Holdings["BBB"].Summary)
	}
	for _, symbol := range []string{"AAA", "CCC"} {
		report := run.Data.Holdings[symbol]
		if strings.HasPrefix(report.Summary, "Processing Failed") {
			t.Errorf("%s unexpectedly failed: %q", symbol, report.Summary)
		}
		if len(report.HistoricalContext) != 1 {
			t.Errorf("%s lost its context: %+v", symbol, report.HistoricalContext)
		}
	}
}

func TestScanFallbackCollapsesSharedTitles(t *testing.T) {
	// Two items share a title but not a URL: discovery keeps both, and the
	// ranking fallback collapses them to one scored event.
	source := &fakeSource{events: []search.Event{
		{Title: "JPMorgan fined over trade reporting", URL: "https://a.example.com/1", Snippet: "a"},
		{Title: "JPMorgan fined over trade reporting", URL: "https://b.example.com/2", Snippet: "b"},
	}}
	provider := happyProvider()
	provider.rankResponse = "I refuse to emit JSON."
	p := testPipeline(provider, source, archetypeIndex())

	run, err := p.Scan(context.Background(), []Holding{{Symbol: "JPM", Weight: 0.15}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	report := run.Data.Holdings["JPM"]
	if len(report.Events) != 1 {
		t.Fatalf("Events = %+v, want one collapsed event", report.Events)
	}
	event := report.Events[0]
	if event.RelevanceScore != 5 {
		t.Errorf("RelevanceScore = %d, want 5", event.RelevanceScore)
	}
	if !strings.Contains(event.Reason, "Parse Error") {
		t.Errorf("Reason = %q", event.Reason)
	}
}

func TestHoldingReportMarshalsEmptyAdvisorReport(t *testing.T) {
	report := failedReport("index unreachable")
	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	payload := string(raw)
	if !strings.Contains(payload, `"advisor_report":{}`) {
		t.Errorf("advisor_report not an empty object: %s", payload)
	}
	if !strings.Contains(payload, `"events":[]`) {
		t.Errorf("events not an empty array: %s", payload)
	}
	if !strings.Contains(payload, `"summary":"Processing Failed: index unreachable"`) {
		t.Errorf("summary missing: %s", payload)
	}
}

func TestRunArtifactShape(t *testing.T) {
	p := testPipeline(happyProvider(), &fakeSource{events: sourceEvents()}, archetypeIndex())

	run, err := p.Scan(context.Background(), []Holding{{Symbol: "ACME"}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	raw, err := json.Marshal(run)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"timestamp", "data", "config"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("artifact missing %q: %s", key, raw)
		}
	}
	data := decoded["data"].(map[string]any)
	if _, ok := data["holdings"].(map[string]any); !ok {
		t.Errorf("data.holdings missing: %s", raw)
	}
	cfg := decoded["config"].(map[string]any)
	if _, ok := cfg["queries_run"].([]any); !ok {
		t.Errorf("config.queries_run missing: %s", raw)
	}
}

func TestBuildQueries(t *testing.T) {
	cases := []struct {
		name string
		meta metadata.Metadata
		want []string
	}{
		{
			"full metadata",
			metadata.Metadata{CompanyName: "Acme Corp", Sector: "Technology", CEOName: "Pat Example"},
			[]string{"Acme Corp", "Pat Example", "Technology News"},
		},
		{
			"unknown ceo skipped",
			metadata.Metadata{CompanyName: "Acme Corp", Sector: "Technology", CEOName: "Unknown"},
			[]string{"Acme Corp", "Technology News"},
		},
		{
			"placeholder ceo skipped",
			metadata.Metadata{CompanyName: "ACME", Sector: "Business", CEOName: "CEO"},
			[]string{"ACME", "Business News"},
		},
		{
			"no sector",
			metadata.Metadata{CompanyName: "Acme Corp", CEOName: "Pat Example"},
			[]string{"Acme Corp", "Pat Example"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := buildQueries(tc.meta)
			if len(got) != len(tc.want) {
				t.Fatalf("buildQueries = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("query[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}
