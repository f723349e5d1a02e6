package models

import "fmt"

// Error codes attached to per-record scrape failures.
const (
	ErrCodeLoadTimeout   = "LOAD_TIMEOUT"
	ErrCodeMarkerMissing = "MARKER_MISSING"
	ErrCodeNavigation    = "NAVIGATION_FAILED"
	ErrCodeStale         = "STALE_ELEMENT"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// ScrapeError is a definitive, non-retryable failure for one detail page.
// It wraps the driver error that caused it.
type ScrapeError struct {
	Code    string
	Message string
	Err     error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}
