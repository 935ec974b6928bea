package summarize

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/rank"
	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/search"
)

// mockProvider implements llm.Provider and captures the last prompt.
type mockProvider struct {
	response   string
	err        error
	calls      int
	lastPrompt string
}

func (m *mockProvider) Generate(_ context.Context, _, prompt string, _ int) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

func TestSummarizeEmptyEventsSkipsProvider(t *testing.T) {
	mock := &mockProvider{response: "should not be used"}
	s := NewSummarizer(mock, zerolog.Nop())

	summary := s.Summarize(context.Background(), "JPM", nil)
	if summary != NoEventsSummary {
		t.Errorf("expected sentinel summary, got %q", summary)
	}
	if mock.calls != 0 {
		t.Errorf("provider should not be called for empty input, got %d calls", mock.calls)
	}
}

func TestSummarizeIncludesEventsInPrompt(t *testing.T) {
	mock := &mockProvider{response: "Two paragraphs of analysis."}
	s := NewSummarizer(mock, zerolog.Nop())

	events := []rank.Event{
		{Event: search.Event{Title: "Guidance cut", Snippet: "Q3 outlook lowered"}, RelevanceScore: 9},
		{Event: search.Event{Title: "CFO departs", Snippet: "Sudden resignation"}, RelevanceScore: 7},
	}
	summary := s.Summarize(context.Background(), "NVDA", events)

	if summary != "Two paragraphs of analysis." {
		t.Errorf("unexpected summary %q", summary)
	}
	if !strings.Contains(mock.lastPrompt, "Guidance cut") || !strings.Contains(mock.lastPrompt, "(Score: 9)") {
		t.Errorf("prompt missing event details:\n%s", mock.lastPrompt)
	}
	if !strings.Contains(mock.lastPrompt, "Ticker: NVDA") {
		t.Error("prompt missing ticker")
	}
}

func TestSummarizeDegradesToEmptyOnFailure(t *testing.T) {
	s := NewSummarizer(&mockProvider{err: fmt.Errorf("inference down")}, zerolog.Nop())

	events := []rank.Event{{Event: search.Event{Title: "A"}, RelevanceScore: 5}}
	if summary := s.Summarize(context.Background(), "JPM", events); summary != "" {
		t.Errorf("expected empty summary on failure, got %q", summary)
	}
}

func TestSummarizeNoProvider(t *testing.T) {
	s := NewSummarizer(nil, zerolog.Nop())
	events := []rank.Event{{Event: search.Event{Title: "A"}, RelevanceScore: 5}}
	if summary := s.Summarize(context.Background(), "JPM", events); summary != "" {
		t.Errorf("expected empty summary without provider, got %q", summary)
	}
}
