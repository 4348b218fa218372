package api

import (
	"net/http"

	"github.com/dgallion1/pqgram/internal/stats"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count()
	if err != nil {
		writeError(w, err)
		return
	}
	batches := map[string]stats.Snapshot{}
	if rec := s.orchestrator.Stats(); rec != nil {
		batches = rec.Snapshot()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"profiles":    count,
		"queue_depth": s.orchestrator.QueueDepth(),
		"window":      s.cfg.StatsWindow.String(),
		"batches":     batches,
	})
}
