package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/interfaces"
	"github.com/ternarybob/rentwatch/internal/models"
)

// CrawlHandler serves the crawl trigger endpoint.
type CrawlHandler struct {
	crawlService interfaces.CrawlService
	validate     *validator.Validate
	logger       arbor.ILogger
}

// NewCrawlHandler creates a new crawl handler
func NewCrawlHandler(crawlService interfaces.CrawlService, logger arbor.ILogger) *CrawlHandler {
	return &CrawlHandler{
		crawlService: crawlService,
		validate:     validator.New(),
		logger:       logger,
	}
}

// crawlRequest is the POST /api/crawl body. Option fields sit at the top
// level next to url; fields not present keep their defaults, so a bare
// {"url": ...} behaves like the default policy.
type crawlRequest struct {
	URL string `json:"url" validate:"required"`
	*models.CrawlOptions
}

// CrawlHandler runs one crawl orchestration synchronously and returns the
// full result envelope.
func (h *CrawlHandler) CrawlHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req crawlRequest
	// Defaults first, then the body overlays what it names.
	req.CrawlOptions = models.NewDefaultCrawlOptions()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	result, err := h.crawlService.Crawl(r.Context(), req.URL, req.CrawlOptions)
	if err != nil {
		h.logger.Warn().Str("url", req.URL).Err(err).Msg("Crawl request failed")
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    result,
	})
}
