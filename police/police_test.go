package police

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Flankrr/pvo-limburg/article"
	"github.com/Flankrr/pvo-limburg/corpus"
	"github.com/Flankrr/pvo-limburg/fetch"
)

// pageRequest is one observed API call.
type pageRequest struct {
	FromDate string
	ToDate   string
	Offset   string
}

// recordingServer captures every page request and delegates the response.
type recordingServer struct {
	mu       sync.Mutex
	requests []pageRequest
	respond  func(req pageRequest) (status int, body string)
	srv      *httptest.Server
}

func newRecordingServer(t *testing.T, respond func(req pageRequest) (int, string)) *recordingServer {
	t.Helper()
	rs := &recordingServer{respond: respond}
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := pageRequest{
			FromDate: q.Get("fromdate"),
			ToDate:   q.Get("todate"),
			Offset:   q.Get("offset"),
		}
		rs.mu.Lock()
		rs.requests = append(rs.requests, req)
		rs.mu.Unlock()

		status, body := rs.respond(req)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(rs.srv.Close)
	return rs
}

func (rs *recordingServer) seen() []pageRequest {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]pageRequest(nil), rs.requests...)
}

func newTestClient(rs *recordingServer, pageSize int) *Client {
	return New(Config{
		BaseURL:     rs.srv.URL,
		PageSize:    pageSize,
		WindowDelay: -1,
	}, fetch.New(time.Second), zerolog.Nop())
}

func item(title, url, published string) string {
	return fmt.Sprintf(`{
		"titel": %q,
		"url": %q,
		"introductie": "intro",
		"publicatiedatum": %q,
		"alineas": [
			{"opgemaaktetekst": "<p>Eerste <b>alinea</b>.</p>"},
			{"opgemaaktetekst": "<p>Tweede alinea.</p>"}
		]
	}`, title, url, published)
}

func page(last string, items ...string) string {
	body := "["
	for i, it := range items {
		if i > 0 {
			body += ","
		}
		body += it
	}
	body += "]"
	if last == "" {
		return fmt.Sprintf(`{"nieuwsberichten": %s}`, body)
	}
	return fmt.Sprintf(`{"nieuwsberichten": %s, "iterator": {"last": %s}}`, body, last)
}

// TestFetchRange_PagesThroughWindow verifies offset stepping and the
// last-flag stop within one window
func TestFetchRange_PagesThroughWindow(t *testing.T) {
	rs := newRecordingServer(t, func(req pageRequest) (int, string) {
		switch req.Offset {
		case "0":
			return 200, page("false",
				item("Aanhouding", "http://p/1", "2025-10-03 14:30:00"),
				item("Inbraak", "http://p/2", "2025-10-02 09:00:00"))
		case "10":
			return 200, page("true", item("Vermissing", "http://p/3", "2025-10-01 08:15:00"))
		default:
			return 200, page("")
		}
	})
	c := newTestClient(rs, 10)

	articles := c.FetchRange(context.Background(), day(2025, 10, 1), day(2025, 10, 5))

	require.Len(t, articles, 3)
	offsets := []string{rs.seen()[0].Offset, rs.seen()[1].Offset}
	assert.Equal(t, []string{"0", "10"}, offsets)
	assert.Len(t, rs.seen(), 2, "last=true must stop paging")

	first := articles[0]
	assert.Equal(t, "Politie", first.Feed)
	assert.Equal(t, "Aanhouding", first.Title)
	assert.Equal(t, "http://p/1", first.URL)
	assert.Equal(t, "intro", first.Summary)
	assert.Equal(t, "Fri, 03 Oct 2025 14:30:00 GMT", first.Published)
	assert.Equal(t, "Eerste alinea. Tweede alinea.", first.FullText)
	assert.NotEmpty(t, first.ScrapedAt)
}

// TestFetchRange_StopsOnEmptyPage verifies a zero-result response ends a
// window without further offset requests
func TestFetchRange_StopsOnEmptyPage(t *testing.T) {
	rs := newRecordingServer(t, func(req pageRequest) (int, string) {
		return 200, page("")
	})
	c := newTestClient(rs, 25)

	// 20 days -> two windows, so exactly one request per window.
	articles := c.FetchRange(context.Background(), day(2025, 1, 1), day(2025, 1, 20))

	assert.Empty(t, articles)
	reqs := rs.seen()
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		assert.Equal(t, "0", r.Offset)
	}
}

// TestFetchRange_MissingLastFlagStops verifies a response without an
// iterator defaults to stopping
func TestFetchRange_MissingLastFlagStops(t *testing.T) {
	rs := newRecordingServer(t, func(req pageRequest) (int, string) {
		return 200, page("", item("Bericht", "http://p/1", "2025-05-01 10:00:00"))
	})
	c := newTestClient(rs, 25)

	articles := c.FetchRange(context.Background(), day(2025, 5, 1), day(2025, 5, 3))

	assert.Len(t, articles, 1)
	assert.Len(t, rs.seen(), 1)
}

// TestFetchRange_BadTimestampPassesThrough verifies an unparseable
// publication date is kept verbatim
func TestFetchRange_BadTimestampPassesThrough(t *testing.T) {
	rs := newRecordingServer(t, func(req pageRequest) (int, string) {
		return 200, page("true", item("Bericht", "http://p/1", "gisteren"))
	})
	c := newTestClient(rs, 25)

	articles := c.FetchRange(context.Background(), day(2025, 5, 1), day(2025, 5, 1))

	require.Len(t, articles, 1)
	assert.Equal(t, "gisteren", articles[0].Published)
}

// TestFetchRange_PageFailureEndsWindow verifies a failed page keeps what
// was accumulated and stops that window
func TestFetchRange_PageFailureEndsWindow(t *testing.T) {
	rs := newRecordingServer(t, func(req pageRequest) (int, string) {
		if req.Offset == "0" {
			return 200, page("false", item("Eerste", "http://p/1", "2025-05-01 10:00:00"))
		}
		return 500, "server error"
	})
	c := newTestClient(rs, 10)

	articles := c.FetchRange(context.Background(), day(2025, 5, 1), day(2025, 5, 2))

	require.Len(t, articles, 1)
	assert.Equal(t, "Eerste", articles[0].Title)
	assert.Len(t, rs.seen(), 2, "window must end after the failed offset")
}

// TestFetchRange_WindowDatesMatchPartition verifies the request windows
// cover the range newest first
func TestFetchRange_WindowDatesMatchPartition(t *testing.T) {
	rs := newRecordingServer(t, func(req pageRequest) (int, string) {
		return 200, page("")
	})
	c := newTestClient(rs, 25)

	c.FetchRange(context.Background(), day(2025, 1, 1), day(2025, 1, 31))

	reqs := rs.seen()
	require.Len(t, reqs, 3)
	assert.Equal(t, pageRequest{FromDate: "20250117", ToDate: "20250131", Offset: "0"}, reqs[0])
	assert.Equal(t, pageRequest{FromDate: "20250102", ToDate: "20250116", Offset: "0"}, reqs[1])
	assert.Equal(t, pageRequest{FromDate: "20250101", ToDate: "20250101", Offset: "0"}, reqs[2])
}

type fakeAnchors struct {
	anchor time.Time
	ok     bool
	saved  []time.Time
}

func (f *fakeAnchors) Anchor() (time.Time, bool, error) { return f.anchor, f.ok, nil }
func (f *fakeAnchors) UpdateAnchor(t time.Time) error {
	f.saved = append(f.saved, t)
	return nil
}

// TestUpdate_UsesPersistedAnchor verifies update resumes from the stored
// anchor, prefers fresh records, and advances the anchor
func TestUpdate_UsesPersistedAnchor(t *testing.T) {
	rs := newRecordingServer(t, func(req pageRequest) (int, string) {
		if req.Offset == "0" {
			return 200, page("true", item("Vernieuwd", "http://p/1", "2025-05-02 10:00:00"))
		}
		return 200, page("")
	})
	c := newTestClient(rs, 25)

	target := filepath.Join(t.TempDir(), "police.json")
	stale := article.Article{Feed: "Politie", Title: "Verouderd", URL: "http://p/1"}
	require.NoError(t, corpus.Save(target, []article.Article{stale}))

	anchors := &fakeAnchors{anchor: time.Now().UTC().AddDate(0, 0, -2), ok: true}
	res, err := c.Update(context.Background(), target, anchors)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 1, res.Total)

	merged, err := corpus.Load(target)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "Vernieuwd", merged[0].Title, "fresh record must replace the stale one")

	require.Len(t, anchors.saved, 1)
	assert.Equal(t, time.Now().UTC().Format("20060102"), anchors.saved[0].Format("20060102"))

	oldest := rs.seen()[len(rs.seen())-1]
	assert.Equal(t, anchors.anchor.Format("20060102"), oldest.FromDate)
}

// TestUpdate_DerivesAnchorFromCorpus verifies the fallback scans the whole
// corpus for the most recent parseable published date
func TestUpdate_DerivesAnchorFromCorpus(t *testing.T) {
	rs := newRecordingServer(t, func(req pageRequest) (int, string) {
		return 200, page("")
	})
	c := newTestClient(rs, 25)

	target := filepath.Join(t.TempDir(), "police.json")
	existing := []article.Article{
		// Most recent record is not first; list position must not matter.
		{Feed: "Politie", URL: "http://p/1", Published: "Mon, 06 Jan 2025 10:00:00 GMT"},
		{Feed: "Politie", URL: "http://p/2", Published: "Tue, 04 Feb 2025 09:00:00 GMT"},
		{Feed: "Politie", URL: "http://p/3", Published: "niet parseerbaar"},
	}
	require.NoError(t, corpus.Save(target, existing))

	_, err := c.Update(context.Background(), target, nil)
	require.NoError(t, err)

	reqs := rs.seen()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "20250204", reqs[len(reqs)-1].FromDate,
		"oldest requested window must start at the latest parseable published date")
}

// TestUpdate_NoAnchorFailsFast verifies an unresolvable anchor aborts
// before any request is made
func TestUpdate_NoAnchorFailsFast(t *testing.T) {
	rs := newRecordingServer(t, func(req pageRequest) (int, string) {
		return 200, page("")
	})
	c := newTestClient(rs, 25)

	target := filepath.Join(t.TempDir(), "police.json")
	require.NoError(t, corpus.Save(target, []article.Article{
		{Feed: "Politie", URL: "http://p/1", Published: "gisteren"},
	}))

	_, err := c.Update(context.Background(), target, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAnchor))
	assert.Empty(t, rs.seen(), "no fetch may happen without a resolvable anchor")
}
