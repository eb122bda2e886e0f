package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/manager"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

const maxBodyBytes = 1 << 20

type runRequest struct {
	Targets map[string]map[string]any `json:"targets"`
}

type searchRequest struct {
	Query    string `json:"query"`
	Location string `json:"location"`
}

// runTargets handles POST /v1/runs. An empty body runs the default targets.
// Source failures are reported per category; a sink failure fails the whole
// request but still carries the run ID and results.
func (s *Server) runTargets(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	targets := make(map[string]scrape.Params, len(req.Targets))
	for name, params := range req.Targets {
		targets[name] = scrape.Params(params)
	}

	report, err := s.service.Run(r.Context(), targets)
	if err != nil {
		s.logger.Error("run failed", zap.String("run_id", report.RunID), zap.Error(err))
		payload := map[string]any{"status": statusError, "error": err.Error()}
		if report.RunID != "" {
			payload["run_id"] = report.RunID
			payload["results"] = report.Results
		}
		writeJSON(w, statusFor(err), payload)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    report.RunID,
		"timestamp": report.Timestamp,
		"results":   report.Results,
		"summary":   report.Summary,
	})
}

// searchJobs handles POST /v1/jobs/search.
func (s *Server) searchJobs(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	records, err := s.service.SearchJobs(r.Context(), req.Query, req.Location)
	if err != nil {
		s.writeServiceError(w, "search jobs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"results": nonNil(records),
		"count":   len(records),
	})
}

// markets handles GET /v1/financial/markets?markets=crypto,forex.
func (s *Server) markets(w http.ResponseWriter, r *http.Request) {
	markets := listParam(r, "markets")
	records, err := s.service.Markets(r.Context(), markets)
	if err != nil {
		s.writeServiceError(w, "markets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"markets": markets,
		"data":    nonNil(records),
		"count":   len(records),
	})
}

// odds handles GET /v1/odds/sports?sports=soccer,rugby.
func (s *Server) odds(w http.ResponseWriter, r *http.Request) {
	sports := listParam(r, "sports")
	records, err := s.service.Odds(r.Context(), sports)
	if err != nil {
		s.writeServiceError(w, "odds", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sports": sports,
		"odds":   nonNil(records),
		"count":  len(records),
	})
}

// website handles POST /v1/website.
func (s *Server) website(w http.ResponseWriter, r *http.Request) {
	var req manager.WebsiteRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if len(req.Selectors) == 0 {
		writeError(w, http.StatusBadRequest, "selectors are required")
		return
	}
	records, err := s.service.Website(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, "website", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":     req.URL,
		"results": nonNil(records),
		"count":   len(records),
	})
}

func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func decodeBody(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return errors.New("invalid JSON")
	}
	return nil
}

// listParam accepts both repeated and comma-separated values.
func listParam(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func nonNil(records []scrape.Record) []scrape.Record {
	if records == nil {
		return []scrape.Record{}
	}
	return records
}
