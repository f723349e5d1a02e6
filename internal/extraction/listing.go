package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/internal/scraper"
)

// DiscoverLinks loads the listing page and returns the detail links inside its table,
// in document order, resolved against the listing URL. Links without an http(s)
// target are dropped. Stale elements are retried like a detail read; any failure
// here means the run has nothing to work on and is returned as is.
func DiscoverLinks(ctx context.Context, nav scraper.Navigator, cfg config.ListingConfig, timeout time.Duration, policy RetryPolicy, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	var links []string
	err = policy.Do(ctx, func(attempt int) error {
		hrefs, err := readLinks(ctx, nav, cfg, timeout)
		if err != nil {
			return err
		}
		links = resolveLinks(base, hrefs, logger)
		return nil
	}, func(attempt int, err error) {
		logger.Warn("stale element on listing page, retrying", "url", cfg.URL, "attempt", attempt)
	})
	if err != nil {
		return nil, fmt.Errorf("discover links on %s: %w", cfg.URL, err)
	}

	logger.Info("found companies", "count", len(links), "url", cfg.URL)
	return links, nil
}

func readLinks(ctx context.Context, nav scraper.Navigator, cfg config.ListingConfig, timeout time.Duration) ([]string, error) {
	if err := nav.Load(ctx, cfg.URL); err != nil {
		return nil, err
	}
	tables, err := nav.WaitForMarker(ctx, cfg.Marker, timeout)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, scraper.ErrMarkerMissing
	}

	anchors, err := nav.QueryChildren(ctx, tables[0], cfg.LinkSelector)
	if err != nil {
		return nil, err
	}

	hrefs := make([]string, 0, len(anchors))
	for _, a := range anchors {
		href, err := nav.Attr(ctx, a, "href")
		if err != nil {
			return nil, err
		}
		hrefs = append(hrefs, href)
	}
	return hrefs, nil
}

// resolveLinks turns raw hrefs into absolute http(s) URLs without fragments
func resolveLinks(base *url.URL, hrefs []string, logger *slog.Logger) []string {
	var links []string
	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		if href == "" {
			continue
		}
		u, err := base.Parse(href)
		if err != nil {
			logger.Debug("unable to parse link", "href", href, "error", err)
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		u.Fragment = ""
		links = append(links, u.String())
	}
	return links
}
