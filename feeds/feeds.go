// Package feeds ingests RSS and Atom feeds into canonical articles.
package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/Flankrr/pvo-limburg/article"
	"github.com/Flankrr/pvo-limburg/extract"
	"github.com/Flankrr/pvo-limburg/fetch"
)

// DefaultDelay is the pause between article fetches, a self-imposed rate
// limit toward third-party sites.
const DefaultDelay = 300 * time.Millisecond

// Adapter fetches one RSS or Atom feed and resolves the full body text of
// each entry. It implements the ingest Source contract.
type Adapter struct {
	name     string
	feedURL  string
	target   string
	maxItems int
	delay    time.Duration
	client   *fetch.Client
	parser   *gofeed.Parser
	log      zerolog.Logger
}

// Config describes one feed source.
type Config struct {
	// Name is the human-readable source name stamped into each record.
	Name string
	// URL is the feed endpoint. gofeed detects RSS vs Atom automatically.
	URL string
	// Target is the corpus file this source merges into.
	Target string
	// MaxItems truncates the entry list when positive; 0 means unbounded.
	MaxItems int
	// Delay between article fetches. Zero means DefaultDelay; negative
	// disables the pause.
	Delay time.Duration
}

// New creates a feed adapter.
func New(cfg Config, client *fetch.Client, log zerolog.Logger) *Adapter {
	delay := cfg.Delay
	if delay == 0 {
		delay = DefaultDelay
	}
	if delay < 0 {
		delay = 0
	}
	return &Adapter{
		name:     cfg.Name,
		feedURL:  cfg.URL,
		target:   cfg.Target,
		maxItems: cfg.MaxItems,
		delay:    delay,
		client:   client,
		parser:   gofeed.NewParser(),
		log:      log.With().Str("source", cfg.Name).Logger(),
	}
}

// Name returns the human-readable source name.
func (a *Adapter) Name() string { return a.name }

// Target returns the corpus path this source merges into.
func (a *Adapter) Target() string { return a.target }

// Fetch parses the feed and converts its entries to canonical articles. One
// entry's failed body fetch is isolated: the entry keeps an empty full_text
// and the batch continues. A feed that cannot be parsed at all surfaces as
// an error for the orchestrator to isolate.
func (a *Adapter) Fetch(ctx context.Context) ([]article.Article, error) {
	a.log.Info().Str("url", a.feedURL).Msg("fetching feed")

	feed, err := a.parser.ParseURLWithContext(a.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", a.feedURL, err)
	}

	entries := feed.Items
	if a.maxItems > 0 && len(entries) > a.maxItems {
		entries = entries[:a.maxItems]
	}
	if len(entries) == 0 {
		a.log.Warn().Msg("no entries found in feed")
		return nil, nil
	}

	// Seen links are scoped to this call; duplicates within one feed fetch
	// are first-seen-wins.
	seen := make(map[string]struct{}, len(entries))
	articles := make([]article.Article, 0, len(entries))

	for _, entry := range entries {
		link := resolveLink(entry)
		if link == "" {
			a.log.Warn().Str("title", entry.Title).Msg("entry has no resolvable link")
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		title := article.CollapseWhitespace(entry.Title)
		a.log.Info().Str("title", title).Msg("scraping entry")

		articles = append(articles, article.Article{
			Feed:      a.name,
			Title:     title,
			URL:       link,
			Published: resolvePublished(entry),
			Summary:   resolveSummary(entry),
			FullText:  a.fetchBody(ctx, link),
			ScrapedAt: article.NowUTC(),
		})

		if a.delay > 0 {
			time.Sleep(a.delay)
		}
	}

	a.log.Info().Int("count", len(articles)).Msg("scraped feed")
	return articles, nil
}

// fetchBody downloads the article page and extracts its text. A fetch or
// extraction failure yields an empty body, never an error.
func (a *Adapter) fetchBody(ctx context.Context, url string) string {
	html, err := a.client.Get(ctx, url)
	if err != nil {
		a.log.Warn().Err(err).Str("url", url).Msg("failed to fetch article")
		return ""
	}
	return extract.Text(html)
}

// resolveLink prefers the entry link and falls back to its GUID, which some
// feeds use as the permalink.
func resolveLink(entry *gofeed.Item) string {
	if entry.Link != "" {
		return entry.Link
	}
	return entry.GUID
}

// resolveSummary prefers the summary/description and falls back to the
// entry content. gofeed normalizes RSS <description> and Atom <summary>
// into Description.
func resolveSummary(entry *gofeed.Item) string {
	if entry.Description != "" {
		return entry.Description
	}
	return entry.Content
}

// resolvePublished prefers the published timestamp and falls back to
// updated, keeping the source-native string.
func resolvePublished(entry *gofeed.Item) string {
	if entry.Published != "" {
		return entry.Published
	}
	return entry.Updated
}
