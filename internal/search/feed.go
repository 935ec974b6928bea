package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

const maxPerFeed = 20

// GoogleNewsSource searches the Google News RSS search feed. It needs no API
// key, making it a useful companion to SerpApi.
type GoogleNewsSource struct {
	parser *gofeed.Parser
	log    zerolog.Logger
}

// NewGoogleNewsSource creates a new Google News RSS source.
func NewGoogleNewsSource(log zerolog.Logger) *GoogleNewsSource {
	return &GoogleNewsSource{
		parser: gofeed.NewParser(),
		log:    log.With().Str("source", "google_news_rss").Logger(),
	}
}

// Name identifies this source in logs.
func (g *GoogleNewsSource) Name() string { return "google_news_rss" }

// SearchNews queries the Google News search feed for a query within a
// freshness window. Failures are logged and degrade to an empty result.
func (g *GoogleNewsSource) SearchNews(ctx context.Context, query string, daysBack int) []Event {
	if daysBack < 1 {
		daysBack = 1
	}
	feedURL := fmt.Sprintf(
		"https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en",
		url.QueryEscape(fmt.Sprintf("%s when:%dd", query, daysBack)),
	)

	feed, err := g.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		g.log.Warn().Str("query", query).Err(err).Msg("feed parse failed")
		return nil
	}

	var events []Event
	for _, item := range feed.Items {
		if len(events) >= maxPerFeed {
			break
		}
		event := parseItem(item)
		if event == nil {
			continue
		}
		events = append(events, *event)
	}
	return events
}

func parseItem(item *gofeed.Item) *Event {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var publishedDate string
	if item.PublishedParsed != nil {
		publishedDate = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		publishedDate = item.UpdatedParsed.Format("2006-01-02")
	}

	var snippet string
	if item.Description != "" {
		snippet = stripHTML(item.Description)
	}

	return &Event{
		Title:         title,
		URL:           itemURL,
		Snippet:       snippet,
		Source:        extractSourceName(itemURL),
		PublishedDate: publishedDate,
	}
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func extractSourceName(itemURL string) string {
	u, err := url.Parse(itemURL)
	if err != nil {
		return itemURL
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return itemURL
	}

	for _, prefix := range []string{"www.", "news.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
