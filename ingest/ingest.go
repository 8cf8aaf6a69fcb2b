// Package ingest sequences source adapters and commits their output to the
// per-source corpus files. A single bad source degrades the run; it never
// aborts the sources after it.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Flankrr/pvo-limburg/article"
	"github.com/Flankrr/pvo-limburg/corpus"
	"github.com/Flankrr/pvo-limburg/state"
)

// Source is one external news source: it fetches and normalizes records
// into canonical articles aimed at a corpus target.
type Source interface {
	Name() string
	Target() string
	Fetch(ctx context.Context) ([]article.Article, error)
}

// Result reports one completed step.
type Result struct {
	Fetched int
	Added   int
	Skipped int
	// Total is the corpus size after the merge.
	Total int
}

// Step is one unit of an ingestion run. Plain fetch adapters are wrapped by
// Adapt; adapters that manage their own corpus lifecycle, like the police
// incremental update, implement Step directly.
type Step interface {
	Name() string
	Run(ctx context.Context) (Result, error)
}

// sourceStep runs a Source against its corpus target with the default
// existing-priority merge.
type sourceStep struct {
	src Source
	log zerolog.Logger
}

// Adapt wraps a Source in the default fetch-merge-save step.
func Adapt(src Source, log zerolog.Logger) Step {
	return &sourceStep{src: src, log: log}
}

func (s *sourceStep) Name() string { return s.src.Name() }

func (s *sourceStep) Run(ctx context.Context) (Result, error) {
	fetched, err := s.src.Fetch(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch failed: %w", err)
	}

	target := s.src.Target()
	if target == "" {
		return Result{}, fmt.Errorf("source %s has no output target", s.src.Name())
	}

	existing, err := corpus.Load(target)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load corpus: %w", err)
	}

	merged := corpus.Merge(existing, fetched)
	if err := corpus.Save(target, merged.Corpus); err != nil {
		return Result{}, fmt.Errorf("failed to save corpus: %w", err)
	}

	return Result{
		Fetched: len(fetched),
		Added:   merged.Added,
		Skipped: merged.Skipped,
		Total:   len(merged.Corpus),
	}, nil
}

// Summary reports a whole run.
type Summary struct {
	RunID   uuid.UUID
	Steps   int
	Failed  int
	Fetched int
	Added   int
	Skipped int
}

// Orchestrator runs the configured steps sequentially. The state store is
// optional; when present, every step outcome is recorded in it.
type Orchestrator struct {
	steps []Step
	state *state.Store
	log   zerolog.Logger
}

// New creates an orchestrator over an ordered list of steps.
func New(log zerolog.Logger, st *state.Store, steps ...Step) *Orchestrator {
	return &Orchestrator{steps: steps, state: st, log: log}
}

// Run executes every step in order. A failing step is logged and recorded,
// and the run continues. The returned error is non-nil when any step
// failed, so callers can exit non-zero without losing the rest of the run.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: uuid.New(), Steps: len(o.steps)}
	log := o.log.With().Str("run_id", sum.RunID.String()).Logger()

	for _, step := range o.steps {
		res, err := step.Run(ctx)
		if err != nil {
			sum.Failed++
			log.Error().Err(err).Str("source", step.Name()).Msg("source failed")
			o.record(step.Name(), res, err)
			continue
		}

		sum.Fetched += res.Fetched
		sum.Added += res.Added
		sum.Skipped += res.Skipped
		log.Info().
			Str("source", step.Name()).
			Int("fetched", res.Fetched).
			Int("added", res.Added).
			Int("skipped_duplicates", res.Skipped).
			Int("corpus_size", res.Total).
			Msg("source merged")
		o.record(step.Name(), res, nil)
	}

	log.Info().
		Int("sources", sum.Steps).
		Int("failed", sum.Failed).
		Int("fetched", sum.Fetched).
		Int("added", sum.Added).
		Int("skipped_duplicates", sum.Skipped).
		Msg("run complete")

	if sum.Failed > 0 {
		return sum, fmt.Errorf("%d of %d sources failed", sum.Failed, sum.Steps)
	}
	return sum, nil
}

func (o *Orchestrator) record(name string, res Result, runErr error) {
	if o.state == nil {
		return
	}
	var err error
	if runErr != nil {
		err = o.state.RecordFailure(name, runErr)
	} else {
		err = o.state.RecordSuccess(name, res.Fetched, res.Added, res.Skipped)
	}
	if err != nil {
		o.log.Warn().Err(err).Str("source", name).Msg("failed to record source state")
	}
}
