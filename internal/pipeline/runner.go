package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/iris-batch/internal/engine"
	"github.com/kozaktomas/iris-batch/internal/pairlist"
	"github.com/kozaktomas/iris-batch/internal/subject"
)

// Report summarizes one run.
type Report struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	Duration   time.Duration
	Subjects   int
	Population *Population
	Results    []Result
	OK         int
	Errors     int
}

// Runner wires the stages to one store and one engine.
type Runner struct {
	store  TemplateStore
	engine engine.Engine
	opts   Options
}

// NewRunner creates a runner. The engine session must already be obtained.
func NewRunner(store TemplateStore, eng engine.Engine, opts Options) *Runner {
	return &Runner{store: store, engine: eng, opts: opts}
}

// Populate runs the template stage alone for the images referenced by pairs.
func (r *Runner) Populate(ctx context.Context, pairs []pairlist.Pair, root string) (*Population, int, error) {
	subjects := r.subjects(pairs, root)
	pop, err := Populate(ctx, subjects, r.store, r.engine, r.opts)
	if err != nil {
		return nil, len(subjects), fmt.Errorf("populate templates: %w", err)
	}
	return pop, len(subjects), nil
}

// Run populates templates for every referenced image and then matches every
// pair. Matching starts only once population has finished.
func (r *Runner) Run(ctx context.Context, pairs []pairlist.Pair, root string) (*Report, error) {
	report := &Report{RunID: r.opts.RunID, StartedAt: time.Now()}
	if report.RunID == uuid.Nil {
		report.RunID = uuid.New()
	}
	log := r.opts.logger().With("run_id", report.RunID.String())

	pop, n, err := r.Populate(ctx, pairs, root)
	if err != nil {
		return nil, err
	}
	report.Subjects = n
	report.Population = pop
	log.Info("templates ready", "subjects", n, "populated", pop.Populated, "skipped", pop.Skipped, "failed", pop.Failed)

	results, err := Match(ctx, pairs, pop.Available(), r.store, r.engine, r.opts)
	if err != nil {
		return nil, fmt.Errorf("match pairs: %w", err)
	}
	report.Results = results

	for _, res := range results {
		if res.Status == StatusOK {
			report.OK++
		} else {
			report.Errors++
		}
	}
	report.Duration = time.Since(report.StartedAt)
	log.Info("pairs matched", "pairs", len(results), "ok", report.OK, "errors", report.Errors, "duration", report.Duration)

	return report, nil
}

func (r *Runner) subjects(pairs []pairlist.Pair, root string) []subject.Subject {
	subjects := subject.Dedup(pairs, root)
	for id, paths := range subject.Collisions(subjects) {
		r.opts.logger().Warn("distinct images share a subject id, only the first is used", "id", id, "paths", paths)
	}
	return subjects
}
