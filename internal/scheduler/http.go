package scheduler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler returns an HTTP handler exposing scheduler health and the
// per-job execution statistics. Served by the scheduler process so
// operators can inspect job runs without a database round trip.
func (s *Scheduler) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/stats", s.handleStats).Methods("GET")
	return r
}

func (s *Scheduler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	jobs := len(s.jobs)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "indexlab-scheduler",
		"jobs":    jobs,
	})
}

func (s *Scheduler) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Stats())
}
