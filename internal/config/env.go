package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnv overrides configuration values from SCRAPER_* environment variables.
// Unset or unparsable variables leave the current value untouched.
func (c *AppConfig) ApplyEnv() {
	c.Scraper.MaxRetries = envIntOr("SCRAPER_RETRIES", c.Scraper.MaxRetries)
	c.Scraper.RetryDelay = envDurationOr("SCRAPER_RETRY_DELAY", c.Scraper.RetryDelay)
	c.Scraper.LoadTimeout = envDurationOr("SCRAPER_LOAD_TIMEOUT", c.Scraper.LoadTimeout)
	c.Scraper.PacingDelay = envDurationOr("SCRAPER_PACING_DELAY", c.Scraper.PacingDelay)

	c.Status.Timeout = envDurationOr("SCRAPER_HTTP_TIMEOUT", c.Status.Timeout)
	c.Status.UserAgent = envOr("SCRAPER_USER_AGENT", c.Status.UserAgent)
	c.Status.Fingerprint = envOr("SCRAPER_FINGERPRINT", c.Status.Fingerprint)

	c.IO.InputFile = envOr("SCRAPER_INPUT", c.IO.InputFile)
	c.IO.OutputFile = envOr("SCRAPER_OUTPUT", c.IO.OutputFile)
	c.IO.OutputFormat = envOr("SCRAPER_OUTPUT_FORMAT", c.IO.OutputFormat)

	c.Listing.URL = envOr("SCRAPER_BASE_URL", c.Listing.URL)

	c.Browser.Enabled = envBoolOr("SCRAPER_BROWSER", c.Browser.Enabled)
	c.Browser.Engine = envOr("SCRAPER_BROWSER_ENGINE", c.Browser.Engine)
	c.Browser.Headless = envBoolOr("SCRAPER_HEADLESS", c.Browser.Headless)
	c.Browser.NoSandbox = envBoolOr("SCRAPER_NO_SANDBOX", c.Browser.NoSandbox)
	c.Browser.Bin = envOr("SCRAPER_BROWSER_BIN", c.Browser.Bin)

	if proxies := envSliceOr("SCRAPER_PROXIES", nil); len(proxies) > 0 {
		c.Proxies.Enabled = true
		c.Proxies.List = proxies
	}

	c.Log.Level = envOr("SCRAPER_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("SCRAPER_LOG_FORMAT", c.Log.Format)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
