package server

import (
	"errors"
	"net/http"

	"github.com/tradepop/datalake/internal/models"
	"github.com/tradepop/datalake/internal/services/ingest"
)

// writeIngestError maps ingest service errors onto HTTP statuses.
func writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrBadRange),
		errors.Is(err, ingest.ErrBadWindow),
		errors.Is(err, ingest.ErrBadInput),
		errors.Is(err, ingest.ErrNoUniverseMatch):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ingest.ErrJobNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleIngestStart handles POST /api/datalake/ingest/start.
func (s *Server) handleIngestStart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.IngestRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := s.app.Ingest.Start(r.Context(), req)
	if err != nil {
		writeIngestError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, result)
}

// handleIngestResume handles POST /api/datalake/ingest/jobs/{id}/resume.
func (s *Server) handleIngestResume(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := s.app.Ingest.Resume(r.Context(), jobID); err != nil {
		writeIngestError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"job_id": jobID,
	})
}

// handleIngestProgress handles GET /api/datalake/ingest/jobs/{id}/progress.
func (s *Server) handleIngestProgress(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	progress, err := s.app.Ingest.Progress(r.Context(), jobID)
	if err != nil {
		writeIngestError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, progress)
}

// handleIngestLatest handles GET /api/datalake/ingest/jobs/latest.
func (s *Server) handleIngestLatest(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	job, err := s.app.Ingest.LatestJob(r.Context())
	if err != nil {
		writeIngestError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// handleBarsArchive handles POST /api/datalake/bars/archive.
func (s *Server) handleBarsArchive(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		KeepDays int `json:"keep_days"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := s.app.Ingest.Archive(r.Context(), req.KeepDays)
	if err != nil {
		writeIngestError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
