package article

import (
	"strings"
	"time"
)

// Article is the canonical record shared by every source. The JSON field
// names are fixed: downstream consumers read the corpus files directly.
type Article struct {
	Feed      string `json:"feed"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Published string `json:"published"`
	Summary   string `json:"summary"`
	FullText  string `json:"full_text"`
	ScrapedAt string `json:"scraped_at"`
}

// CollapseWhitespace reduces any run of spaces, tabs, and newlines to a
// single space and trims the ends. Titles, summaries, and full text are all
// stored as a single logical line.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NowUTC returns the current time as an ISO-8601 UTC timestamp, used to
// stamp ScrapedAt at the moment an entry is processed.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
