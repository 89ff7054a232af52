package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for request-time input rejection. Handlers map these to
// HTTP status codes.
var (
	// ErrInvalidURL is returned when the URL is not a listings URL of the
	// target site.
	ErrInvalidURL = errors.New("not a rental listings URL")

	// ErrInvalidQuery is returned when a listings URL is missing the required
	// region parameter.
	ErrInvalidQuery = errors.New("listings URL is missing required region parameter")

	// ErrQueryNotFound is returned by read endpoints for an unknown query id.
	ErrQueryNotFound = errors.New("query not found")
)

// FetchError is returned when all fetch retries are exhausted.
type FetchError struct {
	URL      string
	Attempts int
	LastErr  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed after %d attempts: %s: %v", e.Attempts, e.URL, e.LastErr)
}

func (e *FetchError) Unwrap() error {
	return e.LastErr
}

// StorageError wraps database failures. Sessions interrupted by a storage
// failure are left without finished_at and treated as non-terminal by
// statistics.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
