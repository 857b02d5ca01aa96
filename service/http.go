package service

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/echoflow/batch"
)

// Routes returns the HTTP sidecar: health and job-status endpoints for
// operators while the MCP transport serves the tool traffic.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		report := s.Health(req.Context())
		code := http.StatusOK
		if report.Status == "error" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	})

	r.Get("/jobs", func(w http.ResponseWriter, req *http.Request) {
		limit := 20
		if v := req.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		jobs, err := s.RecentJobs(req.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if jobs == nil {
			jobs = []batch.Job{}
		}
		writeJSON(w, http.StatusOK, jobs)
	})

	r.Get("/jobs/{jobID}", func(w http.ResponseWriter, req *http.Request) {
		job, err := s.Status(req.Context(), chi.URLParam(req, "jobID"))
		if err != nil {
			if IsNotFound(err) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
