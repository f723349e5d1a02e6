package proxy

import (
	"math/rand"
	"net/http"
	"net/url"

	"github.com/williampepple1/registry-scraper/internal/config"
)

// Manager picks proxies from the configured list
type Manager struct {
	Config *config.ProxyConfig
}

// NewManager creates a new proxy manager
func NewManager(config *config.ProxyConfig) *Manager {
	return &Manager{
		Config: config,
	}
}

// Enabled reports whether requests should go through a proxy
func (m *Manager) Enabled() bool {
	return m != nil && m.Config != nil && m.Config.Enabled && len(m.Config.List) > 0
}

// Pick returns a proxy URL with credentials applied, or nil when proxies are disabled.
// With rotation on, every call may return a different entry.
func (m *Manager) Pick() (*url.URL, error) {
	if !m.Enabled() {
		return nil, nil
	}

	proxyStr := m.Config.List[0]
	if m.Config.Rotate && len(m.Config.List) > 1 {
		proxyStr = m.Config.List[rand.Intn(len(m.Config.List))]
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, err
	}

	if m.Config.Auth.Username != "" && m.Config.Auth.Password != "" {
		proxyURL.User = url.UserPassword(m.Config.Auth.Username, m.Config.Auth.Password)
	}

	return proxyURL, nil
}

// Server returns the proxy address for a browser launch flag.
// Browsers take credentials separately, so none are included.
func (m *Manager) Server() (string, error) {
	proxyURL, err := m.Pick()
	if err != nil || proxyURL == nil {
		return "", err
	}
	proxyURL.User = nil
	return proxyURL.String(), nil
}

// ApplyToTransport routes the transport through a proxy. With rotation on the proxy is
// picked again for every request.
func (m *Manager) ApplyToTransport(transport *http.Transport) error {
	if !m.Enabled() {
		return nil
	}
	if _, err := m.Pick(); err != nil {
		return err
	}
	transport.Proxy = func(*http.Request) (*url.URL, error) {
		return m.Pick()
	}
	return nil
}
