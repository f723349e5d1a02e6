package extraction

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/internal/scraper"
	"github.com/williampepple1/registry-scraper/pkg/models"
)

// Extractor reads the key/value table of a detail page.
// A read that hits a stale element is repeated from navigation onwards, so a record
// never mixes cells from before and after a re-render.
type Extractor struct {
	Nav         scraper.Navigator
	Config      *config.ExtractionConfig
	LoadTimeout time.Duration
	Retry       RetryPolicy
	Logger      *slog.Logger
}

// NewExtractor creates a new detail-page extractor
func NewExtractor(nav scraper.Navigator, cfg *config.AppConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		Nav:         nav,
		Config:      &cfg.Extraction,
		LoadTimeout: cfg.Scraper.LoadTimeout,
		Retry: RetryPolicy{
			Attempts:  cfg.Scraper.MaxRetries,
			Delay:     cfg.Scraper.RetryDelay,
			Retryable: scraper.IsStale,
		},
		Logger: logger,
	}
}

// Extract loads identifier and returns the header -> value pairs of its table.
//
// A nil record with a nil error means every attempt ran into a stale element; the
// caller should treat the page as having no data. Load timeouts and other failures are
// returned as *models.ScrapeError without retrying.
func (e *Extractor) Extract(ctx context.Context, identifier string) (models.FieldRecord, error) {
	var record models.FieldRecord

	err := e.Retry.Do(ctx, func(attempt int) error {
		r, err := e.read(ctx, identifier)
		if err != nil {
			return err
		}
		record = r
		return nil
	}, func(attempt int, err error) {
		e.Logger.Warn("stale element encountered, retrying",
			"url", identifier,
			"attempt", attempt,
			"error", err,
		)
	})

	switch {
	case err == nil:
		return record, nil
	case errors.Is(err, ErrRetriesExhausted):
		e.Logger.Warn("failed to retrieve table after retries",
			"url", identifier,
			"retries", e.Retry.Attempts,
			"code", models.ErrCodeStale,
		)
		return nil, nil
	default:
		return nil, categorizeError(ctx, err)
	}
}

func (e *Extractor) read(ctx context.Context, identifier string) (models.FieldRecord, error) {
	if err := e.Nav.Load(ctx, identifier); err != nil {
		return nil, err
	}

	tables, err := e.Nav.WaitForMarker(ctx, e.Config.Marker, e.LoadTimeout)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, scraper.ErrMarkerMissing
	}

	rows, err := e.Nav.QueryChildren(ctx, tables[0], e.Config.RowSelector)
	if err != nil {
		return nil, err
	}

	record := make(models.FieldRecord)
	for _, row := range rows {
		headers, err := e.Nav.QueryChildren(ctx, row, e.Config.HeaderCell)
		if err != nil {
			return nil, err
		}
		if len(headers) == 0 {
			continue
		}
		cells, err := e.Nav.QueryChildren(ctx, row, e.Config.DataCell)
		if err != nil {
			return nil, err
		}
		if len(cells) == 0 {
			continue
		}

		key, err := e.Nav.Text(ctx, headers[0])
		if err != nil {
			return nil, err
		}
		value, err := e.Nav.Text(ctx, cells[0])
		if err != nil {
			return nil, err
		}
		record[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return record, nil
}

func categorizeError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, scraper.ErrMarkerTimeout):
		return models.NewScrapeError(models.ErrCodeLoadTimeout, "table did not appear in time", err)
	case errors.Is(err, scraper.ErrMarkerMissing):
		return models.NewScrapeError(models.ErrCodeMarkerMissing, "page has no table", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, "failed to read detail page", err)
	}
}
