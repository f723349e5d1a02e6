package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/internal/extraction"
	"github.com/williampepple1/registry-scraper/pkg/models"
)

// FieldExtractor reads the field record of one detail page
type FieldExtractor interface {
	Extract(ctx context.Context, identifier string) (models.FieldRecord, error)
}

// StatusChecker classifies a company website
type StatusChecker interface {
	Classify(ctx context.Context, rawURL string) models.LivenessStatus
}

// Orchestrator scrapes a list of detail pages one after another and collects the rows
type Orchestrator struct {
	Extractor    FieldExtractor
	Classifier   StatusChecker
	Fields       []string
	WebsiteField string
	StatusField  string
	Pacing       time.Duration
	Sleep        func(ctx context.Context, d time.Duration) error
	Logger       *slog.Logger
}

// New creates an orchestrator using the schema and pacing from cfg
func New(extractor FieldExtractor, classifier StatusChecker, cfg *config.AppConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Extractor:    extractor,
		Classifier:   classifier,
		Fields:       cfg.Extraction.Fields,
		WebsiteField: cfg.Extraction.WebsiteField,
		StatusField:  cfg.Extraction.StatusField,
		Pacing:       cfg.Scraper.PacingDelay,
		Logger:       logger,
	}
}

// Run visits identifiers in order. A failure on one identifier is logged and skipped;
// it never aborts the run. Cancelling ctx stops the loop between identifiers and the
// rows collected so far are returned.
func (o *Orchestrator) Run(ctx context.Context, identifiers []string) (*models.ResultSet, models.Summary) {
	results := models.NewResultSet(o.Fields, o.StatusField)
	var summary models.Summary

	sleep := o.Sleep
	if sleep == nil {
		sleep = extraction.SleepContext
	}

	for i, id := range identifiers {
		if ctx.Err() != nil {
			o.Logger.Warn("run interrupted", "processed", i, "total", len(identifiers))
			break
		}

		o.Logger.Info("scraping company", "index", i+1, "total", len(identifiers), "url", id)
		summary.Attempted++

		if row, ok := o.scrapeOne(ctx, results, id); ok {
			results.Append(row)
			summary.Scraped++
		}

		if err := sleep(ctx, o.Pacing); err != nil {
			o.Logger.Warn("run interrupted", "processed", i+1, "total", len(identifiers))
			break
		}
	}

	return results, summary
}

func (o *Orchestrator) scrapeOne(ctx context.Context, results *models.ResultSet, id string) (row models.OutputRow, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			err := models.NewScrapeError(models.ErrCodeInternal, "panic while scraping", fmt.Errorf("%v", r))
			o.Logger.Error("error processing company", "url", id, "error", err)
			ok = false
		}
	}()

	record, err := o.Extractor.Extract(ctx, id)
	if err != nil {
		o.Logger.Error("error processing company", "url", id, "error", err)
		return models.OutputRow{}, false
	}
	if len(record) == 0 {
		o.Logger.Warn("no data found", "url", id)
		return models.OutputRow{}, false
	}

	row = results.Project(id, record)
	row.Status = o.Classifier.Classify(ctx, record.Get(o.WebsiteField))

	o.Logger.Debug("company scraped", "url", id, "status", row.Status.String())
	return row, true
}
