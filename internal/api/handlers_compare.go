package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pqgram/internal/pipeline"
)

// handleCompare queues a comparison job. Documents go in the "left" field
// ("files" is accepted too) and, for cross and nearest jobs, "right".
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	mode, err := pipeline.ParseMode(r.FormValue("mode"))
	if err != nil {
		writeError(w, err)
		return
	}
	params, err := s.jobParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	left, err := s.readUploads(r, "left", "files")
	if err != nil {
		writeError(w, err)
		return
	}
	right, err := s.readUploads(r, "right")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := pipeline.Validate(mode, params, len(left), len(right), s.cfg.MaxTrees); err != nil {
		writeError(w, err)
		return
	}

	job := pipeline.NewJob(mode, params, left, right)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.log.Info("compare job queued", "job_id", job.ID, "mode", mode, "left", len(left), "right", len(right))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"mode":     mode,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/compare/%s/status", job.ID),
	})
}

func (s *Server) jobParams(r *http.Request) (pipeline.Params, error) {
	var (
		params pipeline.Params
		err    error
	)
	if params.P, params.Q, params.LeafGrams, err = s.shapeParams(r); err != nil {
		return params, err
	}
	if params.Partial, err = formBool(r, "partial", false); err != nil {
		return params, err
	}
	if params.UseStore, err = formBool(r, "use_store", false); err != nil {
		return params, err
	}
	if params.TopK, err = formInt(r, "top_k", 0); err != nil {
		return params, err
	}
	return params, nil
}

func (s *Server) handleCompareStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}
