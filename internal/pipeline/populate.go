package pipeline

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/iris-batch/internal/engine"
	"github.com/kozaktomas/iris-batch/internal/subject"
)

// Population records the outcome of every subject id attempted in a run.
type Population struct {
	Outcomes  map[string]Outcome
	Populated int
	Skipped   int
	Failed    int
}

// Available returns the ids usable for matching: those already in the store
// plus those populated in this run.
func (p *Population) Available() map[string]struct{} {
	available := make(map[string]struct{}, len(p.Outcomes))
	for id, outcome := range p.Outcomes {
		if outcome == OutcomePopulated || outcome == OutcomeSkipped {
			available[id] = struct{}{}
		}
	}
	return available
}

// Populate makes sure the store holds a template for every subject. Subjects
// already stored are trusted as is. A subject whose image is missing or whose
// extraction fails is recorded as failed and the stage carries on.
//
// Subjects sharing an id are attempted once, for the first one in order.
// Populate returns only after every subject was attempted; the only error it
// returns is ctx's, in which case later subjects were not scheduled.
func Populate(ctx context.Context, subjects []subject.Subject, store TemplateStore, eng engine.Engine, opts Options) (*Population, error) {
	log := opts.logger()
	pop := &Population{Outcomes: make(map[string]Outcome, len(subjects))}

	var mu sync.Mutex
	record := func(id string, outcome Outcome) {
		mu.Lock()
		pop.Outcomes[id] = outcome
		switch outcome {
		case OutcomePopulated:
			pop.Populated++
		case OutcomeSkipped:
			pop.Skipped++
		case OutcomeFailed:
			pop.Failed++
		}
		mu.Unlock()
		opts.recordTemplate(outcome)
	}

	var done atomic.Int64
	total := len(subjects)
	step := func(item string) {
		opts.progress(Progress{Phase: PhasePopulating, Current: int(done.Add(1)), Total: total, Item: item})
	}

	var g errgroup.Group
	g.SetLimit(opts.concurrency())

	scheduled := make(map[string]struct{}, len(subjects))
	for _, s := range subjects {
		if err := ctx.Err(); err != nil {
			_ = g.Wait()
			return pop, err
		}

		if _, dup := scheduled[s.ID]; dup {
			log.Debug("subject id already handled", "id", s.ID, "path", s.SourcePath)
			step(s.SourcePath)
			continue
		}
		scheduled[s.ID] = struct{}{}

		if store.Has(s.ID) {
			record(s.ID, OutcomeSkipped)
			step(s.SourcePath)
			continue
		}

		g.Go(func() error {
			defer step(s.SourcePath)
			record(s.ID, createTemplate(ctx, s, store, eng, opts))
			return nil
		})
	}

	_ = g.Wait()
	return pop, ctx.Err()
}

func createTemplate(ctx context.Context, s subject.Subject, store TemplateStore, eng engine.Engine, opts Options) Outcome {
	log := opts.logger()

	if _, err := os.Stat(s.SourcePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("image does not exist", "id", s.ID, "path", s.SourcePath)
		} else {
			log.Warn("image not accessible", "id", s.ID, "path", s.SourcePath, "error", err)
		}
		return OutcomeFailed
	}

	start := time.Now()
	tmpl, err := eng.CreateTemplate(ctx, s.SourcePath)
	opts.recordCall("create_template", start)
	if err != nil {
		log.Warn("failed to create template", "id", s.ID, "path", s.SourcePath, "error", err)
		return OutcomeFailed
	}

	if err := store.Put(s.ID, tmpl); err != nil {
		log.Error("failed to save template", "id", s.ID, "error", err)
		return OutcomeFailed
	}
	return OutcomePopulated
}
