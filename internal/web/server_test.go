package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/iris-batch/internal/metrics"
	"github.com/kozaktomas/iris-batch/internal/pipeline"
)

func TestHealthz(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.PairResult("OK")
	s := NewServer("127.0.0.1:0", nil, m.Handler())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `iris_pairs_total{status="OK"} 1`), rec.Body.String())
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressEndpoint(t *testing.T) {
	tracker := NewTracker("run-1")
	tracker.Update(pipeline.Progress{Phase: pipeline.PhasePopulating, Current: 2, Total: 5, Item: "a"})
	tracker.Update(pipeline.Progress{Phase: pipeline.PhasePopulating, Current: 1, Total: 5, Item: "b"})
	tracker.Update(pipeline.Progress{Phase: pipeline.PhaseMatching, Current: 1, Total: 3, Item: "a-b"})
	s := NewServer("127.0.0.1:0", tracker, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, "matching", snap.Phase)
	assert.Equal(t, 1, snap.Current)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, "a-b", snap.LastItem)
}

func TestTracker_IgnoresStaleUpdates(t *testing.T) {
	tracker := NewTracker("")
	tracker.Update(pipeline.Progress{Phase: pipeline.PhasePopulating, Current: 4, Total: 5, Item: "d"})
	tracker.Update(pipeline.Progress{Phase: pipeline.PhasePopulating, Current: 3, Total: 5, Item: "c"})

	snap := tracker.Snapshot()
	assert.Equal(t, 4, snap.Current)
	assert.Equal(t, "d", snap.LastItem)
}
