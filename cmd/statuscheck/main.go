package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/internal/io"
	"github.com/williampepple1/registry-scraper/internal/logging"
	"github.com/williampepple1/registry-scraper/internal/status"
	"github.com/williampepple1/registry-scraper/internal/worker"
)

const defaultOutput = "scraped_data_with_status.csv"

// statuscheck re-runs the website check for every row of a scraped CSV file
func main() {
	configFile := flag.String("config", "", "Path to configuration file (YAML)")
	inputFile := flag.String("input", "scraped_data.csv", "CSV file produced by the scraper")
	outputFile := flag.String("output", defaultOutput, "File to save results to (must differ from the input)")
	numWorkers := flag.Int("workers", 0, "Number of concurrent workers")
	rateLimit := flag.Duration("rate-limit", 0, "Minimum delay between two checks")
	httpTimeout := flag.Duration("http-timeout", 0, "Timeout of a single website check")
	flag.Parse()

	_ = godotenv.Load()

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

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			appConfig.Worker.Workers = *numWorkers
		case "rate-limit":
			appConfig.Worker.RateLimit = *rateLimit
		case "http-timeout":
			appConfig.Status.Timeout = *httpTimeout
		}
	})
	output, err := outputPath(*inputFile, *outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	appConfig.IO.InputFile = *inputFile
	appConfig.IO.OutputFile = output
	appConfig.IO.OutputFormat = "csv"

	logger := logging.Init(appConfig.Log, os.Stderr)
	if err := appConfig.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := io.NewTableReader(&appConfig.Extraction).ReadFromFile(appConfig.IO.InputFile)
	if err != nil {
		logger.Error("error reading input", "path", appConfig.IO.InputFile, "error", err)
		os.Exit(1)
	}

	classifier, err := status.New(appConfig, status.WithLogger(logger))
	if err != nil {
		logger.Error("error creating status checker", "error", err)
		os.Exit(1)
	}

	logger.Info("checking websites", "rows", results.Len(), "workers", appConfig.Worker.Workers)
	pool := worker.NewPool(&appConfig.Worker, classifier, logger)
	if err := pool.Recheck(ctx, results, appConfig.Extraction.WebsiteField); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("status check failed", "error", err)
			os.Exit(1)
		}
		logger.Warn("status check interrupted, saving partial results")
	}

	if err := io.NewResultWriter(&appConfig.IO).SaveToFile(results); err != nil {
		logger.Error("error saving results", "error", err)
		os.Exit(1)
	}

	active := 0
	for _, row := range results.Rows {
		if row.Status.IsActive() {
			active++
		}
	}
	fmt.Printf("%d of %d websites active. Results saved to %s\n", active, results.Len(), appConfig.IO.OutputFile)
}

// outputPath picks the result file. Writing over the input is refused since the
// writer truncates before the new rows are complete.
func outputPath(input, output string) (string, error) {
	if output == "" {
		output = defaultOutput
	}
	if filepath.Clean(output) == filepath.Clean(input) {
		return "", fmt.Errorf("output %s would overwrite the input file", output)
	}
	return output, nil
}
