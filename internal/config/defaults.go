package config

import "time"

// Defaults for the recognised scraping options.
const (
	DefaultRetries     = 3
	DefaultRetryDelay  = 2 * time.Second
	DefaultLoadTimeout = 10 * time.Second
	DefaultHTTPTimeout = 10 * time.Second
	DefaultPacingDelay = 1 * time.Second
)

// DefaultUserAgents provides a list of common user agents
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// DefaultFields is the column order of the company table
var DefaultFields = []string{
	"Name",
	"Sitz",
	"Adresse",
	"Internet",
	"Handelsregister (HR)",
	"Bemerkungen",
}

const (
	DefaultWebsiteField = "Internet"
	DefaultStatusField  = "Website Status"
)
