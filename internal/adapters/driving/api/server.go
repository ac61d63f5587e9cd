// Package api exposes the query cache and refresh trigger over an
// HTTP JSON API. The route layer stays thin: it parses requests, calls
// the driving ports and maps domain errors to status codes. Refresh
// failures never surface here; staleness shows up in /v1/stats.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/veridian-labs/newsvault/internal/core/domain"
	"github.com/veridian-labs/newsvault/internal/core/ports/driving"
	"github.com/veridian-labs/newsvault/internal/logger"
)

// maxLimit caps client-requested result sizes.
const maxLimit = 100

// CycleReporter exposes the last refresh outcome for the health
// endpoint.
type CycleReporter interface {
	LastResult() *domain.CycleResult
}

// Server holds the API's dependencies.
type Server struct {
	query   driving.QueryService
	refresh driving.RefreshTrigger
	cycles  CycleReporter
}

// NewServer creates an API server over the given ports. cycles may be
// nil; /healthz then omits cycle details.
func NewServer(query driving.QueryService, refresh driving.RefreshTrigger, cycles CycleReporter) *Server {
	return &Server{query: query, refresh: refresh, cycles: cycles}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/articles/{id}", s.handleLookup)
	mux.HandleFunc("GET /v1/articles", s.handleScan)
	mux.HandleFunc("GET /v1/search", s.handleSearch)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	article, err := s.query.Lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		logger.Warn("Lookup failed: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ScanFilter{
		Company:  q.Get("company"),
		Category: q.Get("category"),
		Limit:    parseLimit(q.Get("limit")),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = t
	}

	articles, err := s.query.Scan(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "scan failed")
		logger.Warn("Scan failed: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"articles": articlesOrEmpty(articles),
		"count":    len(articles),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keyword := q.Get("q")
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	articles, err := s.query.Search(r.Context(), keyword, parseLimit(q.Get("limit")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		logger.Warn("Search failed: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"articles": articlesOrEmpty(articles),
		"count":    len(articles),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.query.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats failed")
		logger.Warn("Stats failed: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	switch s.refresh.Trigger(r.Context()) {
	case driving.TriggerAccepted:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": string(driving.TriggerAccepted)})
	default:
		writeJSON(w, http.StatusConflict, map[string]string{"status": string(driving.TriggerInProgress)})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.query.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "replica unavailable")
		return
	}
	body := map[string]any{
		"status":          "healthy",
		"row_count":       stats.RowCount,
		"partition_count": stats.PartitionCount,
	}
	if !stats.LastRefreshAt.IsZero() {
		body["last_refresh_at"] = stats.LastRefreshAt
	}
	if s.cycles != nil {
		if last := s.cycles.LastResult(); last != nil {
			body["last_cycle"] = last
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

func articlesOrEmpty(articles []domain.Article) []domain.Article {
	if articles == nil {
		return []domain.Article{}
	}
	return articles
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
