package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/common"
	"github.com/ternarybob/rentwatch/internal/models"
)

// Fetcher performs retrying GETs against the listings site. The retry delay
// is linear; a prior HTTP 429 doubles the next wait so the site's rate limit
// is respected.
type Fetcher struct {
	client *http.Client
	config common.CrawlerConfig
	logger arbor.ILogger
}

// NewFetcher creates a fetcher from crawler configuration. The per-attempt
// timeout is enforced via context, not the client, so a slow attempt cannot
// eat the whole retry budget.
func NewFetcher(config common.CrawlerConfig, logger arbor.ILogger) *Fetcher {
	return &Fetcher{
		client: &http.Client{},
		config: config,
		logger: logger,
	}
}

// Fetch retrieves the document body at url. Returns *models.FetchError once
// all attempts are exhausted.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	maxAttempts := f.config.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, statusCode, err := f.attempt(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		f.logger.Debug().
			Int("attempt", attempt).
			Int("status_code", statusCode).
			Str("url", url).
			Err(err).
			Msg("Fetch attempt failed")

		if attempt < maxAttempts {
			wait := f.config.RetryDelay
			if statusCode == http.StatusTooManyRequests {
				wait *= 2
			}
			select {
			case <-ctx.Done():
				return "", &models.FetchError{URL: url, Attempts: attempt, LastErr: ctx.Err()}
			case <-time.After(wait):
			}
		}
	}

	f.logger.Warn().
		Int("max_attempts", maxAttempts).
		Str("url", url).
		Err(lastErr).
		Msg("All fetch attempts exhausted")

	return "", &models.FetchError{URL: url, Attempts: maxAttempts, LastErr: lastErr}
}

// attempt performs one GET with the configured headers and timeout.
func (f *Fetcher) attempt(ctx context.Context, url string) (string, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", f.config.AcceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), resp.StatusCode, nil
}
