package web

import (
	"sync"
	"time"

	"github.com/kozaktomas/iris-batch/internal/pipeline"
)

// Snapshot is the JSON view of a running command.
type Snapshot struct {
	RunID     string    `json:"run_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Phase     string    `json:"phase,omitempty"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	LastItem  string    `json:"last_item,omitempty"`
}

// Tracker keeps the latest pipeline progress for the status endpoint.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a tracker for the given run.
func NewTracker(runID string) *Tracker {
	return &Tracker{snap: Snapshot{RunID: runID, StartedAt: time.Now()}}
}

// Update records p. It matches pipeline.Options.OnProgress and is safe to call
// from worker goroutines.
func (t *Tracker) Update(p pipeline.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// workers finish out of order within a phase
	if string(p.Phase) == t.snap.Phase && p.Current < t.snap.Current {
		return
	}
	t.snap.Phase = string(p.Phase)
	t.snap.Current = p.Current
	t.snap.Total = p.Total
	t.snap.LastItem = p.Item
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}
