package scraper

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/williampepple1/registry-scraper/internal/config"
)

// Node is an opaque handle to an element on the navigator's current page.
// It is only valid for the navigator that returned it.
type Node interface{}

// Navigator drives a single page: load a URL, then query it.
// Implementations are not safe for concurrent use.
type Navigator interface {
	Load(ctx context.Context, url string) error
	// WaitForMarker blocks until selector matches at least one element or timeout elapses.
	WaitForMarker(ctx context.Context, selector string, timeout time.Duration) ([]Node, error)
	// QueryChildren returns the descendants of parent matching selector, possibly none.
	QueryChildren(ctx context.Context, parent Node, selector string) ([]Node, error)
	Text(ctx context.Context, node Node) (string, error)
	// Attr returns the attribute value, or "" if the element does not carry it.
	Attr(ctx context.Context, node Node, name string) (string, error)
	Close() error
}

var (
	// ErrStaleElement means the page changed beneath a node that was already located.
	ErrStaleElement = errors.New("stale element reference")
	// ErrMarkerTimeout means the marker did not appear before the wait timed out.
	ErrMarkerTimeout = errors.New("timed out waiting for marker")
	// ErrMarkerMissing means the loaded document does not contain the marker at all.
	ErrMarkerMissing = errors.New("marker not found")
	// ErrNoPage is returned when querying before a successful Load.
	ErrNoPage = errors.New("no page loaded")
	// ErrForeignNode is returned for a node created by a different navigator.
	ErrForeignNode = errors.New("node does not belong to this navigator")
)

// IsStale reports whether err is a stale element fault worth retrying
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleElement)
}

var staleMessages = []string{
	"node with given id",
	"object with given id",
	"cannot find context with specified id",
	"execution context was destroyed",
	"stale element",
}

// isStaleMessage recognises driver errors raised for nodes that no longer exist
func isStaleMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range staleMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// New creates a navigator based on the configuration
func New(cfg *config.AppConfig, logger *slog.Logger) (Navigator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		nav Navigator
		err error
	)
	switch {
	case !cfg.Browser.Enabled:
		nav, err = NewHTTPNavigator(cfg)
	case cfg.Browser.Engine == "rod":
		nav, err = NewRodNavigator(cfg, logger)
	default:
		nav, err = NewChromeNavigator(cfg, logger)
	}
	if err != nil {
		return nil, err
	}
	return nav, nil
}
