package server

import (
	"net/http"
	"strings"
)

// registerRoutes wires all HTTP routes onto the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// service
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/auth/login", s.handleLogin)

	// ingest
	mux.HandleFunc("/api/datalake/ingest/start", s.handleIngestStart)
	mux.HandleFunc("/api/datalake/ingest/jobs/latest", s.handleIngestLatest)
	mux.HandleFunc("/api/datalake/ingest/jobs/", s.routeIngestJobs)

	// bars
	mux.HandleFunc("/api/datalake/bars/daily", s.handleBarsDaily)
	mux.HandleFunc("/api/datalake/bars/chart", s.handleBarsChart)
	mux.HandleFunc("/api/datalake/bars/archive", s.handleBarsArchive)

	// universe
	mux.HandleFunc("/api/datalake/universe/refresh", s.handleUniverseRefresh)
	mux.HandleFunc("/api/datalake/universe/stats", s.handleUniverseStats)
	mux.HandleFunc("/api/datalake/universe/browse", s.handleUniverseBrowse)
}

// routeIngestJobs dispatches /api/datalake/ingest/jobs/{id}/{action}.
func (s *Server) routeIngestJobs(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/datalake/ingest/jobs/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	switch {
	case strings.HasSuffix(rest, "/resume"):
		jobID := PathParam(r, prefix, "/resume")
		if jobID == "" {
			WriteError(w, http.StatusBadRequest, "job id is required")
			return
		}
		s.handleIngestResume(w, r, jobID)
	case strings.HasSuffix(rest, "/progress"):
		jobID := PathParam(r, prefix, "/progress")
		if jobID == "" {
			WriteError(w, http.StatusBadRequest, "job id is required")
			return
		}
		s.handleIngestProgress(w, r, jobID)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}
