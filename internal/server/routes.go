package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/crawl", s.app.CrawlHandler.CrawlHandler)
	mux.HandleFunc("/api/queries", s.app.QueryHandler.ListHandler)
	mux.HandleFunc("/api/query/", s.handleQueryRoutes)
	mux.HandleFunc("/", s.handleRoot)

	return mux
}

// handleQueryRoutes dispatches /api/query/* paths: the fixed "parse" and
// "statistics" endpoints first, then the per-query sub-resources.
func (s *Server) handleQueryRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/query/")
	parts := strings.SplitN(strings.Trim(path, "/"), "/", 2)

	switch parts[0] {
	case "":
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	case "parse":
		s.app.QueryHandler.ParseHandler(w, r)
		return
	case "statistics":
		s.app.QueryHandler.StatisticsHandler(w, r)
		return
	}

	queryID := parts[0]
	if len(parts) == 1 {
		s.app.QueryHandler.GetHandler(w, r, queryID)
		return
	}

	switch parts[1] {
	case "rentals":
		s.app.QueryHandler.RentalsHandler(w, r, queryID)
	case "sessions":
		s.app.QueryHandler.SessionsHandler(w, r, queryID)
	case "similar":
		s.app.QueryHandler.SimilarHandler(w, r, queryID)
	case "watch":
		s.app.QueryHandler.WatchHandler(w, r, queryID)
	case "clear":
		s.app.QueryHandler.ClearHandler(w, r, queryID)
	default:
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}

// handleRoot rejects everything the mux did not match explicitly.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.app.APIHandler.NotFoundHandler(w, r)
}
