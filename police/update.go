package police

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Flankrr/pvo-limburg/article"
	"github.com/Flankrr/pvo-limburg/corpus"
	"github.com/Flankrr/pvo-limburg/ingest"
)

// ErrNoAnchor means update mode could not determine where to resume:
// there is no persisted anchor and no record in the existing corpus has a
// parseable published date. Continuing would silently re-fetch an unbounded
// range, so this is fatal.
var ErrNoAnchor = errors.New("no resolvable update anchor date")

// AnchorStore persists the date through which police news has been fetched.
// Implemented by the state store.
type AnchorStore interface {
	Anchor() (time.Time, bool, error)
	UpdateAnchor(t time.Time) error
}

// RangeSource exposes a fixed-range backfill as an ingest source, merged
// into the target with the default existing-priority merge.
func (c *Client) RangeSource(from, to time.Time, target string) ingest.Source {
	return &rangeSource{c: c, from: from, to: to, target: target}
}

type rangeSource struct {
	c        *Client
	from, to time.Time
	target   string
}

func (s *rangeSource) Name() string   { return FeedName }
func (s *rangeSource) Target() string { return s.target }

func (s *rangeSource) Fetch(ctx context.Context) ([]article.Article, error) {
	return s.c.FetchRange(ctx, s.from, s.to), nil
}

// Update re-fetches everything from the last anchor date through today and
// merges it into the corpus at target, with the fresh records taking
// priority over stale ones sharing a URL. On success the anchor advances to
// today.
func (c *Client) Update(ctx context.Context, target string, anchors AnchorStore) (ingest.Result, error) {
	existing, err := corpus.Load(target)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("failed to load corpus: %w", err)
	}

	from, err := c.resumeDate(existing, anchors)
	if err != nil {
		return ingest.Result{}, err
	}
	today := time.Now().UTC()

	fresh := c.FetchRange(ctx, from, today)
	merged := corpus.MergeByKey(fresh, existing, corpus.ByURL)
	if err := corpus.Save(target, merged); err != nil {
		return ingest.Result{}, fmt.Errorf("failed to save corpus: %w", err)
	}

	if anchors != nil {
		if err := anchors.UpdateAnchor(today); err != nil {
			c.log.Warn().Err(err).Msg("failed to persist update anchor")
		}
	}

	added := len(merged) - len(existing)
	return ingest.Result{
		Fetched: len(fresh),
		Added:   added,
		Skipped: len(fresh) - added,
		Total:   len(merged),
	}, nil
}

// UpdateStep exposes incremental update as an orchestrator step.
func (c *Client) UpdateStep(target string, anchors AnchorStore) ingest.Step {
	return &updateStep{c: c, target: target, anchors: anchors}
}

type updateStep struct {
	c       *Client
	target  string
	anchors AnchorStore
}

func (s *updateStep) Name() string { return FeedName }

func (s *updateStep) Run(ctx context.Context) (ingest.Result, error) {
	return s.c.Update(ctx, s.target, s.anchors)
}

// resumeDate picks the date to re-fetch from: the persisted anchor when one
// exists, otherwise the most recent parseable published date anywhere in
// the corpus. List position is deliberately not trusted; merge does not
// sort by recency.
func (c *Client) resumeDate(existing []article.Article, anchors AnchorStore) (time.Time, error) {
	if anchors != nil {
		anchor, ok, err := anchors.Anchor()
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to read update anchor: %w", err)
		}
		if ok {
			return anchor, nil
		}
	}

	var latest time.Time
	found := false
	for _, a := range existing {
		t, ok := parsePublished(a.Published)
		if ok && (!found || t.After(latest)) {
			latest = t
			found = true
		}
	}
	if !found {
		return time.Time{}, ErrNoAnchor
	}
	return latest, nil
}

// parsePublished reads a published field back to a calendar date, accepting
// both the normalized RFC-1123 form and the raw pass-through form.
func parsePublished(published string) (time.Time, bool) {
	for _, layout := range []string{rfc1123GMT, apiTimestamp} {
		if t, err := time.Parse(layout, published); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
