package status

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/pkg/models"
)

const (
	maxRedirects = 10
	// only drained so the connection can be reused
	maxDrain = 64 << 10
)

// Classifier checks whether a company website answers.
// It is safe for concurrent use.
type Classifier struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// Option customises a Classifier
type Option func(*Classifier)

// WithHTTPClient replaces the HTTP client used for checks
func WithHTTPClient(client *http.Client) Option {
	return func(c *Classifier) {
		c.client = client
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// New creates a classifier from the status and proxy configuration
func New(cfg *config.AppConfig, opts ...Option) (*Classifier, error) {
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	c := &Classifier{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Status.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: cfg.Status.UserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Classify issues one GET to rawURL and maps the outcome to a LivenessStatus.
// It never fails: every error ends up as one of the inactive statuses.
func (c *Classifier) Classify(ctx context.Context, rawURL string) (status models.LivenessStatus) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("website check panicked", "url", rawURL, "panic", r)
			status = models.InactiveOther(fmt.Sprint(r))
		}
	}()

	if strings.TrimSpace(rawURL) == "" {
		return models.NoURLProvided()
	}
	target := Normalize(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		c.logger.Debug("invalid website url", "url", target, "error", err)
		return models.InactiveOther(errorDetail(err))
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		st := classifyError(err)
		c.logger.Debug("website unreachable", "url", target, "status", st.String(), "error", err)
		return st
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode == http.StatusOK {
		return models.Active()
	}
	return models.InactiveHTTP(resp.StatusCode)
}

// Normalize trims raw, prefixes http:// when it carries no scheme and converts an
// internationalised host name to its ASCII form. Input it cannot parse is returned
// with only the scheme added.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	host := u.Hostname()
	if host == "" || isASCII(host) {
		return s
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return s
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(ascii, port)
	} else {
		u.Host = ascii
	}
	return u.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
