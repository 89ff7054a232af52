package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/interfaces"
	"github.com/ternarybob/rentwatch/internal/models"
)

// QueryHandler serves the query read side: parse, listings, sessions,
// similarity, statistics, watch toggles and the cascading clear.
type QueryHandler struct {
	canonicalizer interfaces.Canonicalizer
	storage       interfaces.StorageManager
	validate      *validator.Validate
	logger        arbor.ILogger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(canonicalizer interfaces.Canonicalizer, storage interfaces.StorageManager, logger arbor.ILogger) *QueryHandler {
	return &QueryHandler{
		canonicalizer: canonicalizer,
		storage:       storage,
		validate:      validator.New(),
		logger:        logger,
	}
}

// ParseHandler canonicalizes a URL without crawling or persisting anything.
func (h *QueryHandler) ParseHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		URL string `json:"url" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	canonical, err := h.canonicalizer.Canonicalize(req.URL)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, canonical)
}

// ListHandler returns a filtered page of known queries.
func (h *QueryHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	opts := &interfaces.QueryListOptions{
		Region:     r.URL.Query().Get("region"),
		SinceDate:  QueryTime(r, "sinceDate"),
		HasRentals: r.URL.Query().Get("hasRentals") == "true",
		Limit:      QueryInt(r, "limit", 50),
		Offset:     QueryInt(r, "offset", 0),
	}

	queries, total, err := h.storage.QueryStorage().ListQueries(r.Context(), opts)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"queries": queries,
		"total":   total,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// GetHandler returns one query by id.
func (h *QueryHandler) GetHandler(w http.ResponseWriter, r *http.Request, queryID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	query, err := h.storage.QueryStorage().GetQuery(r.Context(), queryID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, query)
}

// RentalsHandler returns the rentals a query has accumulated.
func (h *QueryHandler) RentalsHandler(w http.ResponseWriter, r *http.Request, queryID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if _, err := h.storage.QueryStorage().GetQuery(r.Context(), queryID); err != nil {
		WriteDomainError(w, err)
		return
	}

	listings, err := h.storage.ListingStorage().GetQueryListings(
		r.Context(), queryID, QueryInt(r, "limit", 100), QueryTime(r, "sinceDate"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"queryId": queryID,
		"rentals": listings,
		"count":   len(listings),
	})
}

// SessionsHandler returns the recent crawl sessions of a query.
func (h *QueryHandler) SessionsHandler(w http.ResponseWriter, r *http.Request, queryID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if _, err := h.storage.QueryStorage().GetQuery(r.Context(), queryID); err != nil {
		WriteDomainError(w, err)
		return
	}

	sessions, err := h.storage.SessionStorage().ListSessions(r.Context(), queryID, QueryInt(r, "limit", 20))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"queryId":  queryID,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// SimilarHandler returns queries scored as similar to the reference query.
func (h *QueryHandler) SimilarHandler(w http.ResponseWriter, r *http.Request, queryID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	similar, err := h.storage.QueryStorage().FindSimilar(r.Context(), queryID, QueryInt(r, "limit", 10))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"queryId": queryID,
		"similar": similar,
		"count":   len(similar),
	})
}

// StatisticsHandler returns the global aggregates.
func (h *QueryHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	stats, err := h.storage.StatsStorage().Statistics(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// WatchHandler toggles scheduled re-crawling for a query. POST enables or
// disables per the body; the option snapshot in the body is what scheduled
// crawls will run with. DELETE disables the watch outright.
func (h *QueryHandler) WatchHandler(w http.ResponseWriter, r *http.Request, queryID string) {
	if r.Method == http.MethodDelete {
		if err := h.storage.QueryStorage().SetWatch(r.Context(), queryID, false, ""); err != nil {
			WriteDomainError(w, err)
			return
		}
		h.logger.Info().Str("query_id", queryID).Msg("Watch disabled")
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"queryId":      queryID,
			"watchEnabled": false,
		})
		return
	}
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Enabled bool                 `json:"enabled"`
		Options *models.CrawlOptions `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	optionsJSON := ""
	if req.Options != nil {
		if err := h.validate.Struct(req.Options); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid options: "+err.Error())
			return
		}
		req.Options.Normalize()
		serialized, err := req.Options.ToJSON()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid options: "+err.Error())
			return
		}
		optionsJSON = serialized
	}

	if err := h.storage.QueryStorage().SetWatch(r.Context(), queryID, req.Enabled, optionsJSON); err != nil {
		WriteDomainError(w, err)
		return
	}

	h.logger.Info().Str("query_id", queryID).Bool("enabled", req.Enabled).Msg("Watch flag updated")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"queryId":      queryID,
		"watchEnabled": req.Enabled,
	})
}

// ClearHandler removes a query and its now-orphaned rentals. Destructive, so
// the confirm query parameter is mandatory.
func (h *QueryHandler) ClearHandler(w http.ResponseWriter, r *http.Request, queryID string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	if r.URL.Query().Get("confirm") != "true" {
		WriteError(w, http.StatusBadRequest, "Clearing a query is destructive; add confirm=true to proceed")
		return
	}

	result, err := h.storage.QueryStorage().ClearQuery(r.Context(), queryID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	h.logger.Info().Str("query_id", queryID).Msg("Query data cleared")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"queryId": queryID,
		"cleared": result,
	})
}
