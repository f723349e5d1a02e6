package status

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	utls "github.com/refraction-networking/utls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/pkg/models"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func okResponse(r *http.Request, code int) *http.Response {
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     make(http.Header),
		Request:    r,
	}
}

func newClassifier(t *testing.T, opts ...Option) *Classifier {
	t.Helper()
	cfg := config.Default()
	cfg.Status.Timeout = 2 * time.Second
	c, err := New(cfg, opts...)
	require.NoError(t, err)
	return c
}

// closedAddr returns an address nothing listens on
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestClassifyNoURL(t *testing.T) {
	var calls atomic.Int32
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return okResponse(r, http.StatusOK), nil
	})}
	c := newClassifier(t, WithHTTPClient(client))

	for _, in := range []string{"", "   ", "\t\n"} {
		assert.Equal(t, models.NoURLProvided(), c.Classify(context.Background(), in))
	}
	assert.Zero(t, calls.Load(), "no request may be made without a url")
}

func TestClassifySchemelessHost(t *testing.T) {
	var gotURL, gotAgent string
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		gotAgent = r.Header.Get("User-Agent")
		if gotURL == "http://example.org" {
			return okResponse(r, http.StatusOK), nil
		}
		return okResponse(r, http.StatusNotFound), nil
	})}
	c := newClassifier(t, WithHTTPClient(client))

	status := c.Classify(context.Background(), "example.org")
	assert.Equal(t, models.Active(), status)
	assert.Equal(t, "http://example.org", gotURL)
	assert.Equal(t, config.DefaultUserAgents[0], gotAgent)
}

func TestClassifyHTTPStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/missing", http.NotFound)
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClassifier(t)
	ctx := context.Background()

	assert.Equal(t, models.Active(), c.Classify(ctx, srv.URL+"/ok"))
	assert.Equal(t, models.InactiveHTTP(404), c.Classify(ctx, srv.URL+"/missing"))
	assert.Equal(t, models.Active(), c.Classify(ctx, srv.URL+"/moved"))
	assert.Equal(t, models.InactiveHTTP(503), c.Classify(ctx, srv.URL+"/down"))

	loop := c.Classify(ctx, srv.URL+"/loop")
	assert.Equal(t, models.StatusInactiveOther, loop.Kind)
	assert.Contains(t, loop.Detail, "redirects")

	// scheme-less host with port
	assert.Equal(t, models.Active(), c.Classify(ctx, strings.TrimPrefix(srv.URL, "http://")+"/ok"))
}

func TestClassifyTLSFailure(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := newClassifier(t)
	assert.Equal(t, models.InactiveTLS(), c.Classify(context.Background(), srv.URL))
}

func TestClassifyConnectionRefused(t *testing.T) {
	c := newClassifier(t)
	addr := closedAddr(t)

	first := c.Classify(context.Background(), "http://"+addr)
	second := c.Classify(context.Background(), addr)
	assert.Equal(t, models.InactiveTransport(), first)
	assert.Equal(t, first.Kind, second.Kind)
}

func TestClassifyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Status.Timeout = 50 * time.Millisecond
	c, err := New(cfg)
	require.NoError(t, err)

	assert.Equal(t, models.InactiveTransport(), c.Classify(context.Background(), srv.URL))
}

func TestClassifyMalformedURL(t *testing.T) {
	c := newClassifier(t)

	for _, in := range []string{"http://[::1", "exa mple.org", "http://%zz"} {
		status := c.Classify(context.Background(), in)
		assert.Equal(t, models.StatusInactiveOther, status.Kind, in)
		assert.NotEmpty(t, status.Detail, in)
	}
}

func TestClassifyRecoversFromPanic(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		panic("transport exploded")
	})}
	c := newClassifier(t, WithHTTPClient(client))

	status := c.Classify(context.Background(), "example.org")
	assert.Equal(t, models.InactiveOther("transport exploded"), status)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.StatusKind
	}{
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, models.StatusInactiveTransport},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), models.StatusInactiveTransport},
		{"dns", &net.DNSError{Err: "no such host", Name: "nowhere.invalid", IsNotFound: true}, models.StatusInactiveTransport},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), models.StatusInactiveTransport},
		{"eof", fmt.Errorf("get: %w", io.EOF), models.StatusInactiveTransport},
		{"unknown authority", x509.UnknownAuthorityError{}, models.StatusInactiveTLS},
		{"hostname", x509.HostnameError{Certificate: &x509.Certificate{}, Host: "example.org"}, models.StatusInactiveTLS},
		{"tls alert text", errors.New("remote error: tls: handshake failure"), models.StatusInactiveTLS},
		{"other", errors.New("unsupported protocol scheme"), models.StatusInactiveOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err).Kind)
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"example.org", "http://example.org"},
		{"  www.muster.ch ", "http://www.muster.ch"},
		{"https://example.org/path", "https://example.org/path"},
		{"HTTP://Example.org", "HTTP://Example.org"},
		{"müller.de", "http://xn--mller-kva.de"},
		{"https://müller.de:8443/kontakt", "https://xn--mller-kva.de:8443/kontakt"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNewChromeFingerprint(t *testing.T) {
	cfg := config.Default()
	cfg.Status.Fingerprint = "chrome"

	transport, err := newTransport(cfg)
	require.NoError(t, err)
	assert.NotNil(t, transport.DialTLSContext)
	assert.False(t, transport.ForceAttemptHTTP2)

	spec, err := chromeH1Spec()
	require.NoError(t, err)
	assert.NotEmpty(t, spec.Extensions)
}

func TestChromeFingerprintRepeatedHandshakes(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	roots := x509.NewCertPool()
	roots.AddCert(srv.Certificate())
	client := &http.Client{Transport: &http.Transport{
		DialTLSContext:    chromeTLSDialer(&utls.Config{RootCAs: roots}),
		DisableKeepAlives: true,
	}}
	c := newClassifier(t, WithHTTPClient(client))
	ctx := context.Background()

	// every check opens a new connection and handshake
	for i := 0; i < 3; i++ {
		assert.Equal(t, models.Active(), c.Classify(ctx, srv.URL), "check %d", i+1)
	}

	var wg sync.WaitGroup
	statuses := make([]models.LivenessStatus, 3)
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i] = c.Classify(ctx, srv.URL)
		}(i)
	}
	wg.Wait()
	for i, status := range statuses {
		assert.Equal(t, models.Active(), status, "concurrent check %d", i+1)
	}
	assert.Equal(t, int32(6), requests.Load())
}

func TestChromeH1SpecIsFresh(t *testing.T) {
	first, err := chromeH1Spec()
	require.NoError(t, err)
	second, err := chromeH1Spec()
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	for _, ext := range first.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			assert.Equal(t, []string{"http/1.1"}, alpn.AlpnProtocols)
		}
	}
}
