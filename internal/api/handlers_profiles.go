package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pqgram/internal/compare"
	"github.com/dgallion1/pqgram/internal/errs"
	"github.com/dgallion1/pqgram/internal/metrics"
	"github.com/dgallion1/pqgram/internal/pipeline"
	"github.com/dgallion1/pqgram/internal/pqgram"
	"github.com/dgallion1/pqgram/internal/storage"
)

// handleCreateProfiles profiles every uploaded file and stores the result.
// Content already stored with the same shape is not profiled again unless
// force=true.
func (s *Server) handleCreateProfiles(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	p, q, leafGrams, err := s.shapeParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	force, err := formBool(r, "force", false)
	if err != nil {
		writeError(w, err)
		return
	}
	source := r.FormValue("source")
	if source == "" {
		source = "upload"
	}

	docs, err := s.readUploads(r, "files", "file")
	if err != nil {
		writeError(w, err)
		return
	}
	if len(docs) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if len(docs) > s.cfg.MaxTrees {
		jsonError(w, "too many files", http.StatusBadRequest)
		return
	}

	log := s.log.With("p", p, "q", q, "leaf_grams", leafGrams)
	created := 0
	var results []map[string]any
	for _, doc := range docs {
		hash := pipeline.ContentHashHex(doc.Data)
		if !force {
			ids, err := s.store.FindByHash(hash, p, q, leafGrams)
			if err != nil {
				writeError(w, err)
				return
			}
			if len(ids) > 0 {
				results = append(results, map[string]any{
					"filename":  doc.Name,
					"id":        ids[0],
					"duplicate": true,
				})
				continue
			}
		}

		prof, lm, err := s.orchestrator.Profiler().Profile(doc, p, q, leafGrams)
		if err != nil {
			log.Warn("profile failed", "filename", doc.Name, "error", err)
			results = append(results, map[string]any{
				"filename": doc.Name,
				"error":    err.Error(),
				"code":     errs.GetCode(err),
			})
			continue
		}

		sp := &storage.StoredProfile{
			Name:        doc.Name,
			Source:      source,
			ContentHash: hash,
			Profile:     prof,
			Labels:      lm,
		}
		if err := s.store.Save(sp); err != nil {
			writeError(w, err)
			return
		}
		created++
		results = append(results, map[string]any{
			"filename":   doc.Name,
			"id":         sp.ID,
			"gram_count": sp.GramCount,
		})
	}

	code := http.StatusOK
	if created > 0 {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]any{"profiles": results, "created": created})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []storage.StoredProfile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": list, "count": len(list)})
}

// handleGetProfile returns a profile's metadata. tokens=true adds its grams
// rendered through the stored label descriptions.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	sp, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	body := map[string]any{"profile": sp}
	if r.URL.Query().Get("tokens") == "true" {
		body["tokens"] = sp.Profile.Tokens(pqgram.LabelMapNamer(sp.Labels))
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// handleNearestProfiles ranks every other stored profile of the same shape
// by distance to the given one. k limits the result (default 10, 0 = all).
func (s *Server) handleNearestProfiles(w http.ResponseWriter, r *http.Request) {
	k := 10
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := formIntValue("k", v)
		if err != nil {
			writeError(w, err)
			return
		}
		k = n
	}

	target, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	candidates, err := s.store.ListShape(target.P, target.Q, target.LeafGrams)
	if err != nil {
		writeError(w, err)
		return
	}
	others := make([]*storage.StoredProfile, 0, len(candidates))
	profiles := make([]*pqgram.Profile[int64], 0, len(candidates))
	for _, c := range candidates {
		if c.ID == target.ID {
			continue
		}
		others = append(others, c)
		profiles = append(profiles, c.Profile)
	}

	eng := compare.New(compare.WithWorkers[int64](s.cfg.CompareWorkers))
	start := time.Now()
	matches, err := eng.Nearest(r.Context(), target.Profile, profiles)
	if err != nil {
		writeError(w, err)
		return
	}
	elapsed := time.Since(start)
	metrics.RecordBatch(string(pipeline.ModeNearest), len(matches), elapsed)
	if rec := s.orchestrator.Stats(); rec != nil {
		rec.Record(string(pipeline.ModeNearest), elapsed, len(matches))
	}

	matches = compare.Top(matches, k)
	out := make([]map[string]any, len(matches))
	for i, m := range matches {
		out[i] = map[string]any{
			"id":       others[m.Index].ID,
			"name":     others[m.Index].Name,
			"distance": m.Distance,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile_id": target.ID,
		"candidates": len(others),
		"matches":    out,
	})
}
