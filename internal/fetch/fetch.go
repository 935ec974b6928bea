// Package fetch back-fills missing snippets on raw events by extracting
// readable page text. RSS-discovered items often carry no usable snippet,
// which starves the ranker of signal.
package fetch

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"

	"github.com/lmalottucsd/agentic-portfolio-sentinel/internal/search"
)

const snippetMaxLen = 500

// Result holds the results of a snippet back-fill pass.
type Result struct {
	Filled  int
	Skipped int
	Failed  int
}

// SnippetFiller fetches pages and extracts a readable excerpt for events
// that lack a snippet.
type SnippetFiller struct {
	client *http.Client
	log    zerolog.Logger
}

// NewSnippetFiller creates a new snippet filler.
func NewSnippetFiller(timeout time.Duration, log zerolog.Logger) *SnippetFiller {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &SnippetFiller{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		log: log.With().Str("component", "fetch").Logger(),
	}
}

// FillMissingSnippets mutates events in place, fetching an excerpt for each
// event whose snippet is empty. A domain that fails once is skipped for the
// rest of the pass.
func (f *SnippetFiller) FillMissingSnippets(events []search.Event) *Result {
	result := &Result{}
	failedDomains := make(map[string]struct{})

	for i := range events {
		if events[i].Snippet != "" {
			result.Skipped++
			continue
		}

		u, _ := url.Parse(events[i].URL)
		domain := ""
		if u != nil {
			domain = strings.ToLower(u.Host)
		}

		if _, failed := failedDomains[domain]; failed {
			result.Failed++
			continue
		}

		excerpt, err := f.fetchExcerpt(events[i].URL)
		if err != nil || excerpt == "" {
			result.Failed++
			if domain != "" && err != nil {
				failedDomains[domain] = struct{}{}
			}
			continue
		}

		events[i].Snippet = excerpt
		result.Filled++
	}

	f.log.Debug().Int("filled", result.Filled).Int("failed", result.Failed).Msg("snippet back-fill complete")
	return result
}

func (f *SnippetFiller) fetchExcerpt(pageURL string) (string, error) {
	req, err := http.NewRequest("GET", pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "sentinel/1.0 (portfolio risk scout)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < 100 {
		return "", nil
	}
	if len(text) > snippetMaxLen {
		text = text[:snippetMaxLen]
	}
	return strings.Join(strings.Fields(text), " "), nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
