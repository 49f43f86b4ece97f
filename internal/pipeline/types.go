// Package pipeline runs batch verification: templates are created for every
// distinct image first, then every pair is matched against the populated store.
package pipeline

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/iris-batch/internal/constants"
)

// Status tags a match result.
type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// Outcome is the result of populating one subject.
type Outcome string

const (
	OutcomePopulated Outcome = "populated" // template created and stored in this run
	OutcomeSkipped   Outcome = "skipped"   // template already in the store
	OutcomeFailed    Outcome = "failed"    // missing image or engine failure
)

// Result is the outcome of one input pair.
type Result struct {
	Status Status
	Left   string
	Right  string
	Label  string
	Score  float64
}

// TemplateStore is the subset of templates.Store the pipeline needs.
type TemplateStore interface {
	Has(id string) bool
	Load(id string) ([]byte, error)
	Put(id string, data []byte) error
}

// Recorder receives run measurements; metrics.Metrics implements it.
type Recorder interface {
	TemplateOutcome(outcome string)
	PairResult(status string)
	EngineCall(op string, d time.Duration)
}

// Phase names the running stage in progress callbacks.
type Phase string

const (
	PhasePopulating Phase = "populating"
	PhaseMatching   Phase = "matching"
)

// Progress is reported after every processed subject or pair.
type Progress struct {
	Phase   Phase
	Current int
	Total   int
	Item    string
}

type Options struct {
	RunID       uuid.UUID      // zero means Run generates one
	Concurrency int            // parallel engine calls, bounded by the engine's license model
	Logger      *slog.Logger   // defaults to slog.Default()
	Recorder    Recorder       // optional
	OnProgress  func(Progress) // optional, called from worker goroutines
}

func (o Options) concurrency() int {
	if o.Concurrency <= 0 {
		return constants.WorkerPoolSize
	}
	return o.Concurrency
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) progress(p Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

func (o Options) recordTemplate(outcome Outcome) {
	if o.Recorder != nil {
		o.Recorder.TemplateOutcome(string(outcome))
	}
}

func (o Options) recordPair(status Status) {
	if o.Recorder != nil {
		o.Recorder.PairResult(string(status))
	}
}

func (o Options) recordCall(op string, start time.Time) {
	if o.Recorder != nil {
		o.Recorder.EngineCall(op, time.Since(start))
	}
}
