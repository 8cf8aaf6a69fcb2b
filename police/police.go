// Package police ingests the paginated police news API. The API serves
// fixed-size pages via an offset parameter, scoped to a (fromdate, todate)
// window; a date-windowed controller chunks larger ranges into compliant
// sub-requests.
package police

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Flankrr/pvo-limburg/article"
	"github.com/Flankrr/pvo-limburg/extract"
	"github.com/Flankrr/pvo-limburg/fetch"
)

// FeedName is the source name stamped into police records.
const FeedName = "Politie"

// DefaultBaseURL is the news endpoint.
const DefaultBaseURL = "https://api.politie.nl/v4/nieuws"

// DefaultPageSize is the page size requested per call. The API only accepts
// 10 or 25.
const DefaultPageSize = 25

// DefaultWindowDelay is the pause between completed windows.
const DefaultWindowDelay = 1 * time.Second

// apiDate is the query-parameter date layout (YYYYMMDD).
const apiDate = "20060102"

// apiTimestamp is the layout of publicatiedatum in responses.
const apiTimestamp = "2006-01-02 15:04:05"

// rfc1123GMT is the normalized published format. The zone is a literal GMT
// suffix, fixed for downstream consumers, not Go's variable zone name.
const rfc1123GMT = "Mon, 02 Jan 2006 15:04:05 GMT"

// Client drives the paginated API across bounded date windows.
type Client struct {
	baseURL     string
	language    string
	pageSize    int
	windowDays  int
	windowDelay time.Duration
	http        *fetch.Client
	log         zerolog.Logger
}

// Config describes the police source.
type Config struct {
	BaseURL    string
	Language   string
	PageSize   int
	WindowDays int
	// WindowDelay between completed windows. Zero means DefaultWindowDelay;
	// negative disables the pause.
	WindowDelay time.Duration
}

// New creates a police API client.
func New(cfg Config, httpClient *fetch.Client, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = "nl"
	}
	if cfg.PageSize != 10 && cfg.PageSize != 25 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultWindowDays
	}
	delay := cfg.WindowDelay
	if delay == 0 {
		delay = DefaultWindowDelay
	}
	if delay < 0 {
		delay = 0
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		language:    cfg.Language,
		pageSize:    cfg.PageSize,
		windowDays:  cfg.WindowDays,
		windowDelay: delay,
		http:        httpClient,
		log:         log.With().Str("source", FeedName).Logger(),
	}
}

// newsResponse is one page of API results.
type newsResponse struct {
	Nieuwsberichten []newsItem `json:"nieuwsberichten"`
	Iterator        iterator   `json:"iterator"`
}

// iterator carries the last-page flag. A missing flag means stop, matching
// the endpoint's observed behavior on final pages.
type iterator struct {
	Last *bool `json:"last"`
}

// newsItem is one raw article as the API serves it.
type newsItem struct {
	Titel           string   `json:"titel"`
	URL             string   `json:"url"`
	Introductie     string   `json:"introductie"`
	Publicatiedatum string   `json:"publicatiedatum"`
	Alineas         []alinea `json:"alineas"`
}

// alinea is one formatted paragraph of an article body.
type alinea struct {
	Opgemaaktetekst string `json:"opgemaaktetekst"`
}

// FetchRange fetches every article published in [from, to], walking 15-day
// windows from the most recent backward and paging each window by offset.
// Page-level failures are logged and end that window with whatever was
// accumulated; they never abort the range.
func (c *Client) FetchRange(ctx context.Context, from, to time.Time) []article.Article {
	windows := Windows(from, to, c.windowDays)
	c.log.Info().
		Str("from", from.Format(apiDate)).
		Str("to", to.Format(apiDate)).
		Int("windows", len(windows)).
		Msg("fetching range")

	var raw []newsItem
	for i, w := range windows {
		raw = append(raw, c.fetchWindow(ctx, w)...)
		if c.windowDelay > 0 && i < len(windows)-1 {
			time.Sleep(c.windowDelay)
		}
	}

	articles := make([]article.Article, 0, len(raw))
	for _, item := range raw {
		articles = append(articles, convert(item))
	}
	c.log.Info().Int("count", len(articles)).Msg("fetched range")
	return articles
}

// fetchWindow pages one window forward from offset 0 until the API returns
// no results or signals the last page.
func (c *Client) fetchWindow(ctx context.Context, w Window) []newsItem {
	var items []newsItem
	for offset := 0; ; offset += c.pageSize {
		page, err := c.fetchPage(ctx, w, offset)
		if err != nil {
			c.log.Warn().Err(err).
				Str("window_start", w.Start.Format(apiDate)).
				Int("offset", offset).
				Msg("page fetch failed, ending window")
			break
		}
		if len(page.Nieuwsberichten) == 0 {
			break
		}
		items = append(items, page.Nieuwsberichten...)
		if page.Iterator.Last == nil || *page.Iterator.Last {
			break
		}
	}
	c.log.Debug().
		Str("window_start", w.Start.Format(apiDate)).
		Str("window_end", w.End.Format(apiDate)).
		Int("items", len(items)).
		Msg("window exhausted")
	return items
}

func (c *Client) fetchPage(ctx context.Context, w Window, offset int) (*newsResponse, error) {
	params := url.Values{}
	params.Set("fromdate", w.Start.Format(apiDate))
	params.Set("todate", w.End.Format(apiDate))
	params.Set("language", c.language)
	params.Set("maxnumberofitems", strconv.Itoa(c.pageSize))
	params.Set("offset", strconv.Itoa(offset))

	body, err := c.http.Get(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var page newsResponse
	if err := json.Unmarshal([]byte(body), &page); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &page, nil
}

// convert normalizes one raw item into a canonical article. The body is the
// plain text of each paragraph joined by single spaces; a missing paragraph
// list means an empty body.
func convert(raw newsItem) article.Article {
	var parts []string
	for _, al := range raw.Alineas {
		if text := extract.StripTags(al.Opgemaaktetekst); text != "" {
			parts = append(parts, text)
		}
	}

	published, ok := toRFC1123(raw.Publicatiedatum)
	if !ok {
		// Timestamp parse failure passes the raw value through unchanged.
		published = raw.Publicatiedatum
	}

	return article.Article{
		Feed:      FeedName,
		Title:     raw.Titel,
		URL:       raw.URL,
		Published: published,
		Summary:   raw.Introductie,
		FullText:  strings.Join(parts, " "),
		ScrapedAt: article.NowUTC(),
	}
}

// toRFC1123 reformats the API's timestamp to RFC-1123 with a GMT suffix.
func toRFC1123(raw string) (string, bool) {
	t, err := time.Parse(apiTimestamp, raw)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(rfc1123GMT), true
}
