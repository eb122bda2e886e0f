package api

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/manager"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	maxSampleLimit      = 50
)

// stats handles GET /v1/stats. Before the first run it returns zero stats.
func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	stats, ran := s.service.Stats()
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats, "has_run": ran})
}

// history handles GET /v1/history?limit=. Newest entries come first.
func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries := s.service.History()
	out := make([]scrape.RunSummary, 0, min(limit, len(entries)))
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": out, "count": len(out)})
}

// samples handles GET /v1/dashboard/samples?limit=. It returns 503 when no
// sample store is configured.
func (s *Server) samples(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, manager.DefaultSampleLimit, maxSampleLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	samples, err := s.service.Samples(r.Context(), limit)
	if err != nil {
		s.logger.Warn("samples unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": samples})
}

// dashboard handles GET /v1/dashboard.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.service.Dashboard(r.Context())
	if err != nil {
		s.logger.Error("dashboard failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dashboard": dash})
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limStr := r.URL.Query().Get("limit")
	if limStr == "" {
		return def, nil
	}
	val, err := strconv.Atoi(limStr)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	return min(val, maxLimit), nil
}
