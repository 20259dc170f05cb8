package server

import (
	"net/http"
	"strings"
	"time"
)

// parseBarRange validates the symbol/start/end query parameters shared
// by the bars read and chart endpoints.
func parseBarRange(w http.ResponseWriter, r *http.Request) (symbol, start, end string, ok bool) {
	q := r.URL.Query()
	symbol = strings.ToUpper(strings.TrimSpace(q.Get("symbol")))
	start = q.Get("start")
	end = q.Get("end")

	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required")
		return "", "", "", false
	}
	for _, d := range []string{start, end} {
		if d == "" {
			WriteError(w, http.StatusBadRequest, "start and end are required (YYYY-MM-DD)")
			return "", "", "", false
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid date "+d+": expected YYYY-MM-DD")
			return "", "", "", false
		}
	}
	if start > end {
		WriteError(w, http.StatusBadRequest, "start must not be after end")
		return "", "", "", false
	}
	return symbol, start, end, true
}

// handleBarsDaily handles GET /api/datalake/bars/daily.
func (s *Server) handleBarsDaily(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol, start, end, ok := parseBarRange(w, r)
	if !ok {
		return
	}

	bars, err := s.app.Storage.BarStore().ReadRange(r.Context(), symbol, start, end)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"start":  start,
		"end":    end,
		"count":  len(bars),
		"bars":   bars,
	})
}

// handleBarsChart handles GET /api/datalake/bars/chart. Responds with a
// PNG, not JSON.
func (s *Server) handleBarsChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol, start, end, ok := parseBarRange(w, r)
	if !ok {
		return
	}

	png, err := s.app.Chart.ClosePNG(r.Context(), symbol, start, end)
	if err != nil {
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
