package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/iris-batch/internal/engine"
	"github.com/kozaktomas/iris-batch/internal/pairlist"
	"github.com/kozaktomas/iris-batch/internal/subject"
)

// templateCache loads each template from the store at most once per stage.
type templateCache struct {
	store TemplateStore
	mu    sync.Mutex
	data  map[string][]byte
}

func (c *templateCache) load(id string) ([]byte, error) {
	c.mu.Lock()
	tmpl, ok := c.data[id]
	c.mu.Unlock()
	if ok {
		return tmpl, nil
	}

	tmpl, err := c.store.Load(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.data[id] = tmpl
	c.mu.Unlock()
	return tmpl, nil
}

// Match scores every pair whose two subjects are available and returns one
// result per pair, in input order. A pair with an unavailable side is an
// ERROR row with score 0 and the engine is not called for it. Each pair is
// decided on its own, so pairs run in parallel.
func Match(ctx context.Context, pairs []pairlist.Pair, available map[string]struct{}, store TemplateStore, eng engine.Engine, opts Options) ([]Result, error) {
	results := make([]Result, len(pairs))
	cache := &templateCache{store: store, data: make(map[string][]byte)}

	var done atomic.Int64
	total := len(pairs)

	var g errgroup.Group
	g.SetLimit(opts.concurrency())

	for i, p := range pairs {
		if err := ctx.Err(); err != nil {
			_ = g.Wait()
			return nil, err
		}
		g.Go(func() error {
			results[i] = matchPair(ctx, p, available, cache, eng, opts)
			opts.recordPair(results[i].Status)
			opts.progress(Progress{Phase: PhaseMatching, Current: int(done.Add(1)), Total: total, Item: p.Left})
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func matchPair(ctx context.Context, p pairlist.Pair, available map[string]struct{}, cache *templateCache, eng engine.Engine, opts Options) Result {
	log := opts.logger()
	failed := Result{Status: StatusError, Left: p.Left, Right: p.Right, Label: p.Label}

	leftID, rightID := subject.Resolve(p.Left), subject.Resolve(p.Right)
	_, leftOK := available[leftID]
	_, rightOK := available[rightID]
	if !leftOK || !rightOK {
		log.Warn("template not found", "left", p.Left, "right", p.Right)
		return failed
	}

	probe, err := cache.load(leftID)
	if err != nil {
		log.Warn("failed to load template", "id", leftID, "error", err)
		return failed
	}
	gallery, err := cache.load(rightID)
	if err != nil {
		log.Warn("failed to load template", "id", rightID, "error", err)
		return failed
	}

	start := time.Now()
	score, err := eng.Verify(ctx, probe, gallery)
	opts.recordCall("verify", start)
	if err != nil {
		log.Warn("verification failed", "left", p.Left, "right", p.Right, "error", err)
		return failed
	}

	return Result{Status: StatusOK, Left: p.Left, Right: p.Right, Label: p.Label, Score: score}
}

// Assemble converts results to output rows, one per result, in order.
func Assemble(results []Result) []pairlist.ResultRow {
	rows := make([]pairlist.ResultRow, len(results))
	for i, r := range results {
		rows[i] = pairlist.ResultRow{
			Status: string(r.Status),
			Left:   r.Left,
			Right:  r.Right,
			Label:  r.Label,
			Score:  r.Score,
		}
	}
	return rows
}
