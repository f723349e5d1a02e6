package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// AppConfig holds the complete application configuration
type AppConfig struct {
	Scraper    ScraperConfig    `yaml:"scraper"`
	Status     StatusConfig     `yaml:"status"`
	IO         IOConfig         `yaml:"io"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Listing    ListingConfig    `yaml:"listing"`
	Proxies    ProxyConfig      `yaml:"proxies"`
	Browser    BrowserConfig    `yaml:"browser"`
	Worker     WorkerConfig     `yaml:"worker"`
	Log        LogConfig        `yaml:"log"`
}

// ScraperConfig holds the detail-page scraping configuration
type ScraperConfig struct {
	MaxRetries  int           `yaml:"retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	LoadTimeout time.Duration `yaml:"load_timeout"`
	PacingDelay time.Duration `yaml:"pacing_delay"`
	UserAgents  []string      `yaml:"user_agents,omitempty"`
}

// StatusConfig holds the website liveness check configuration
type StatusConfig struct {
	Timeout   time.Duration `yaml:"http_timeout"`
	UserAgent string        `yaml:"user_agent"`
	// Fingerprint selects the TLS client hello: "go" or "chrome".
	Fingerprint string `yaml:"fingerprint"`
}

// IOConfig holds the input/output configuration
type IOConfig struct {
	InputFile    string `yaml:"input_file"`
	OutputFile   string `yaml:"output_file"`
	OutputFormat string `yaml:"output_format"`
}

// ExtractionConfig describes the detail table and the output schema
type ExtractionConfig struct {
	Marker       string   `yaml:"marker"`
	RowSelector  string   `yaml:"row_selector"`
	HeaderCell   string   `yaml:"header_cell"`
	DataCell     string   `yaml:"data_cell"`
	Fields       []string `yaml:"fields"`
	WebsiteField string   `yaml:"website_field"`
	StatusField  string   `yaml:"status_field"`
}

// ListingConfig describes the page the detail links are discovered on
type ListingConfig struct {
	URL          string `yaml:"url"`
	Marker       string `yaml:"marker"`
	LinkSelector string `yaml:"link_selector"`
}

// ProxyConfig holds the proxy configuration
type ProxyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Rotate  bool     `yaml:"rotate"`
	List    []string `yaml:"list"`
	Auth    struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"auth"`
}

// BrowserConfig holds the browser configuration for JavaScript rendering
type BrowserConfig struct {
	Enabled bool `yaml:"enabled"`
	// Engine is "chromedp" or "rod".
	Engine    string `yaml:"engine"`
	Headless  bool   `yaml:"headless"`
	NoSandbox bool   `yaml:"no_sandbox"`
	Stealth   bool   `yaml:"stealth"`
	Bin       string `yaml:"bin"`
	UserAgent string `yaml:"user_agent"`
}

// WorkerConfig controls the concurrent status re-check
type WorkerConfig struct {
	Workers   int           `yaml:"workers"`
	RateLimit time.Duration `yaml:"rate_limit"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads the configuration from a YAML file on top of the defaults
func Load(filename string) (*AppConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	// Set default user agents if none provided
	if len(config.Scraper.UserAgents) == 0 {
		config.Scraper.UserAgents = DefaultUserAgents
	}

	return config, nil
}

// Default creates the default configuration
func Default() *AppConfig {
	return &AppConfig{
		Scraper: ScraperConfig{
			MaxRetries:  DefaultRetries,
			RetryDelay:  DefaultRetryDelay,
			LoadTimeout: DefaultLoadTimeout,
			PacingDelay: DefaultPacingDelay,
			UserAgents:  DefaultUserAgents,
		},
		Status: StatusConfig{
			Timeout:     DefaultHTTPTimeout,
			UserAgent:   DefaultUserAgents[0],
			Fingerprint: "go",
		},
		IO: IOConfig{
			OutputFile:   "scraped_data.csv",
			OutputFormat: "csv",
		},
		Extraction: ExtractionConfig{
			Marker:       ".e-table",
			RowSelector:  "tr",
			HeaderCell:   "th",
			DataCell:     "td",
			Fields:       append([]string(nil), DefaultFields...),
			WebsiteField: DefaultWebsiteField,
			StatusField:  DefaultStatusField,
		},
		Listing: ListingConfig{
			Marker:       ".e-table",
			LinkSelector: "a",
		},
		Proxies: ProxyConfig{
			Rotate: true,
			List:   []string{},
		},
		Browser: BrowserConfig{
			Enabled:   true,
			Engine:    "chromedp",
			Headless:  true,
			UserAgent: DefaultUserAgents[0],
		},
		Worker: WorkerConfig{
			Workers:   3,
			RateLimit: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for values the scraper cannot run with
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Scraper.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("scraper.retries must be at least 1, got %d", c.Scraper.MaxRetries))
	}
	if c.Scraper.RetryDelay < 0 {
		errs = append(errs, errors.New("scraper.retry_delay must not be negative"))
	}
	if c.Scraper.LoadTimeout <= 0 {
		errs = append(errs, errors.New("scraper.load_timeout must be positive"))
	}
	if c.Scraper.PacingDelay < 0 {
		errs = append(errs, errors.New("scraper.pacing_delay must not be negative"))
	}
	if c.Status.Timeout <= 0 {
		errs = append(errs, errors.New("status.http_timeout must be positive"))
	}
	switch c.Status.Fingerprint {
	case "", "go", "chrome":
	default:
		errs = append(errs, fmt.Errorf("unsupported status.fingerprint: %s", c.Status.Fingerprint))
	}
	if c.Status.Fingerprint == "chrome" && c.Proxies.Enabled {
		// CONNECT tunnels do their own TLS and never reach the fingerprinted dialer
		errs = append(errs, errors.New("status.fingerprint chrome cannot be combined with proxies"))
	}

	for name, sel := range map[string]string{
		"extraction.marker":       c.Extraction.Marker,
		"extraction.row_selector": c.Extraction.RowSelector,
		"extraction.header_cell":  c.Extraction.HeaderCell,
		"extraction.data_cell":    c.Extraction.DataCell,
		"listing.marker":          c.Listing.Marker,
		"listing.link_selector":   c.Listing.LinkSelector,
	} {
		if _, err := cascadia.Parse(sel); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid selector %q: %w", name, sel, err))
		}
	}

	if len(c.Extraction.Fields) == 0 {
		errs = append(errs, errors.New("extraction.fields must not be empty"))
	}
	// records are keyed by the exact header text
	if c.Extraction.WebsiteField != "" && !slices.Contains(c.Extraction.Fields, c.Extraction.WebsiteField) {
		errs = append(errs, fmt.Errorf("extraction.website_field %q is not one of extraction.fields", c.Extraction.WebsiteField))
	}
	if contains(c.Extraction.Fields, c.Extraction.StatusField) {
		errs = append(errs, fmt.Errorf("extraction.status_field %q collides with a scraped field", c.Extraction.StatusField))
	}

	switch c.IO.OutputFormat {
	case "csv", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported io.output_format: %s", c.IO.OutputFormat))
	}

	if c.Browser.Enabled {
		switch c.Browser.Engine {
		case "chromedp", "rod":
		default:
			errs = append(errs, fmt.Errorf("unsupported browser.engine: %s", c.Browser.Engine))
		}
	}

	if c.Worker.Workers < 1 {
		errs = append(errs, errors.New("worker.workers must be at least 1"))
	}

	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
