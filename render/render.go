// Package render is the boundary to the browser-automation collaborator
// used for JavaScript-rendered pages. The collaborator renders a page and
// reports the network requests it observed; this module only filters those
// requests down to candidate API endpoints. The browser driving itself
// lives outside this module.
package render

import (
	"context"
	"strings"
)

// Capture is what the collaborator hands back for one rendered page.
type Capture struct {
	// HTML is the fully rendered document.
	HTML string
	// RequestURLs are the network request URLs observed while the page
	// loaded, in observation order, possibly with duplicates.
	RequestURLs []string
}

// Renderer renders a JavaScript-driven page and captures its traffic.
type Renderer interface {
	Render(ctx context.Context, url string) (Capture, error)
}

// apiMarkers are the substrings that mark a captured request as a likely
// JSON API endpoint.
var apiMarkers = []string{".json", "api", "/data", "feed"}

// APICandidates filters captured request URLs down to likely API endpoints,
// deduplicated, first-seen order preserved.
func APICandidates(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var candidates []string
	for _, u := range urls {
		if !hasAPIMarker(u) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		candidates = append(candidates, u)
	}
	return candidates
}

func hasAPIMarker(url string) bool {
	for _, marker := range apiMarkers {
		if strings.Contains(url, marker) {
			return true
		}
	}
	return false
}
