package proxy

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williampepple1/registry-scraper/internal/config"
)

func TestPickDisabled(t *testing.T) {
	m := NewManager(&config.ProxyConfig{List: []string{"http://p1:8080"}})

	u, err := m.Pick()
	require.NoError(t, err)
	assert.Nil(t, u)

	transport := &http.Transport{}
	require.NoError(t, m.ApplyToTransport(transport))
	assert.Nil(t, transport.Proxy)
}

func TestPickWithAuth(t *testing.T) {
	cfg := &config.ProxyConfig{Enabled: true, List: []string{"http://p1:8080"}}
	cfg.Auth.Username = "user"
	cfg.Auth.Password = "secret"
	m := NewManager(cfg)

	u, err := m.Pick()
	require.NoError(t, err)
	assert.Equal(t, "http://user:secret@p1:8080", u.String())

	server, err := m.Server()
	require.NoError(t, err)
	assert.Equal(t, "http://p1:8080", server)
}

func TestPickRotates(t *testing.T) {
	list := []string{"http://p1:8080", "http://p2:8080", "http://p3:8080"}
	m := NewManager(&config.ProxyConfig{Enabled: true, Rotate: true, List: list})

	for i := 0; i < 20; i++ {
		u, err := m.Pick()
		require.NoError(t, err)
		assert.Contains(t, list, u.String())
	}
}

func TestApplyToTransport(t *testing.T) {
	m := NewManager(&config.ProxyConfig{Enabled: true, List: []string{"http://p1:8080"}})
	transport := &http.Transport{}
	require.NoError(t, m.ApplyToTransport(transport))
	require.NotNil(t, transport.Proxy)

	req, err := http.NewRequest(http.MethodGet, "http://example.org", nil)
	require.NoError(t, err)
	u, err := transport.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "p1:8080", u.Host)
}

func TestApplyToTransportBadURL(t *testing.T) {
	m := NewManager(&config.ProxyConfig{Enabled: true, List: []string{"http://[::1"}})
	assert.Error(t, m.ApplyToTransport(&http.Transport{}))
}
