package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/internal/extraction"
	"github.com/williampepple1/registry-scraper/internal/io"
	"github.com/williampepple1/registry-scraper/internal/logging"
	"github.com/williampepple1/registry-scraper/internal/orchestrator"
	"github.com/williampepple1/registry-scraper/internal/scraper"
	"github.com/williampepple1/registry-scraper/internal/status"
)

func main() {
	// Define command-line flags
	configFile := flag.String("config", "", "Path to configuration file (YAML)")
	inputFile := flag.String("input", "", "File containing detail page URLs (one per line)")
	listingURL := flag.String("listing", "", "Listing page to discover detail pages on")
	outputFile := flag.String("output", "", "File to save results to")
	outputFormat := flag.String("format", "", "Output format: csv or json")
	maxRetries := flag.Int("retries", 0, "Attempts per page when the table goes stale")
	retryDelay := flag.Duration("retry-delay", 0, "Delay between stale-element retries")
	loadTimeout := flag.Duration("load-timeout", 0, "How long to wait for the detail table")
	httpTimeout := flag.Duration("http-timeout", 0, "Timeout of the website status check")
	pacing := flag.Duration("pacing", 0, "Pause after every company")
	enableBrowser := flag.Bool("browser", true, "Render pages in a headless browser")
	engine := flag.String("engine", "", "Browser engine: chromedp or rod")
	enableProxy := flag.Bool("proxy", false, "Enable proxy support")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn or error")
	logFormat := flag.String("log-format", "", "Log format: text or json")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	// Load configuration
	appConfig := config.Default()
	if *configFile != "" {
		var err error
		appConfig, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
	}
	appConfig.ApplyEnv()

	// Override config with command-line flags if provided
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			appConfig.IO.InputFile = *inputFile
		case "listing":
			appConfig.Listing.URL = *listingURL
		case "output":
			appConfig.IO.OutputFile = *outputFile
		case "format":
			appConfig.IO.OutputFormat = *outputFormat
		case "retries":
			appConfig.Scraper.MaxRetries = *maxRetries
		case "retry-delay":
			appConfig.Scraper.RetryDelay = *retryDelay
		case "load-timeout":
			appConfig.Scraper.LoadTimeout = *loadTimeout
		case "http-timeout":
			appConfig.Status.Timeout = *httpTimeout
		case "pacing":
			appConfig.Scraper.PacingDelay = *pacing
		case "browser":
			appConfig.Browser.Enabled = *enableBrowser
		case "engine":
			appConfig.Browser.Engine = *engine
		case "proxy":
			appConfig.Proxies.Enabled = *enableProxy
		case "log-level":
			appConfig.Log.Level = *logLevel
		case "log-format":
			appConfig.Log.Format = *logFormat
		}
	})

	logger := logging.Init(appConfig.Log, os.Stderr)
	if err := appConfig.Validate(); err != nil {
		fatal(logger, "invalid configuration", err)
	}
	if *configFile != "" {
		logger.Info("loaded configuration", "path", *configFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nav, err := scraper.New(appConfig, logger)
	if err != nil {
		fatal(logger, "error starting navigator", err)
	}
	defer nav.Close()

	urls, err := identifiers(ctx, nav, appConfig, logger)
	if err != nil {
		nav.Close()
		fatal(logger, "error collecting detail pages", err)
	}
	if len(urls) == 0 {
		nav.Close()
		fatal(logger, "no detail pages to scrape", nil)
	}

	classifier, err := status.New(appConfig, status.WithLogger(logger))
	if err != nil {
		nav.Close()
		fatal(logger, "error creating status checker", err)
	}

	logger.Info("starting scrape", "companies", len(urls), "engine", engineName(appConfig))
	start := time.Now()

	extractor := extraction.NewExtractor(nav, appConfig, logger)
	results, summary := orchestrator.New(extractor, classifier, appConfig, logger).Run(ctx, urls)

	// Save results to file
	resultWriter := io.NewResultWriter(&appConfig.IO)
	if err := resultWriter.SaveToFile(results); err != nil {
		nav.Close()
		fatal(logger, "error saving results", err)
	}

	logger.Info("scrape finished",
		"attempted", summary.Attempted,
		"scraped", summary.Scraped,
		"skipped", summary.Skipped(),
		"duration", time.Since(start).Round(time.Second),
	)
	fmt.Printf("Scraped %d of %d companies. Results saved to %s\n",
		summary.Scraped, summary.Attempted, appConfig.IO.OutputFile)
}

// identifiers reads the detail page list from the input file, or discovers it on
// the listing page when no file is given
func identifiers(ctx context.Context, nav scraper.Navigator, cfg *config.AppConfig, logger *slog.Logger) ([]string, error) {
	if cfg.IO.InputFile != "" {
		return io.NewURLReader(&cfg.IO).GetURLs()
	}
	if cfg.Listing.URL == "" {
		return nil, fmt.Errorf("either an input file or a listing URL is required")
	}

	policy := extraction.RetryPolicy{
		Attempts:  cfg.Scraper.MaxRetries,
		Delay:     cfg.Scraper.RetryDelay,
		Retryable: scraper.IsStale,
	}
	return extraction.DiscoverLinks(ctx, nav, cfg.Listing, cfg.Scraper.LoadTimeout, policy, logger)
}

func engineName(cfg *config.AppConfig) string {
	if !cfg.Browser.Enabled {
		return "http"
	}
	return cfg.Browser.Engine
}

func fatal(logger *slog.Logger, msg string, err error) {
	if err != nil {
		logger.Error(msg, "error", err)
	} else {
		logger.Error(msg)
	}
	os.Exit(1)
}
