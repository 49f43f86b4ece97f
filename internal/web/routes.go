package web

import (
	"encoding/json"
	"net/http"
)

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", healthCheck)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}
	s.router.Get("/api/v1/progress", s.progress)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) progress(w http.ResponseWriter, _ *http.Request) {
	if s.tracker == nil {
		respondJSON(w, http.StatusOK, Snapshot{})
		return
	}
	respondJSON(w, http.StatusOK, s.tracker.Snapshot())
}
