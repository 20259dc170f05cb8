package server

import (
	"net/http"
	"strconv"

	"github.com/tradepop/datalake/internal/models"
)

// handleUniverseRefresh handles POST /api/datalake/universe/refresh.
func (s *Server) handleUniverseRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.UniverseFilter
	if !DecodeJSON(w, r, &req) {
		return
	}

	received, upserted, err := s.app.Universe.Refresh(r.Context(), req)
	if err != nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbols_received": received,
		"rows_upserted":    upserted,
	})
}

// handleUniverseStats handles GET /api/datalake/universe/stats.
func (s *Server) handleUniverseStats(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := s.app.Universe.Stats(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// handleUniverseBrowse handles GET /api/datalake/universe/browse.
func (s *Server) handleUniverseBrowse(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	page := intParam(q.Get("page"), 1)
	pageSize := intParam(q.Get("page_size"), 50)
	sortBy := q.Get("sort_by")
	sortDir := q.Get("sort_dir")

	result, err := s.app.Universe.Browse(r.Context(), page, pageSize, sortBy, sortDir)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func intParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
