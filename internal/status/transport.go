package status

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/internal/proxy"
)

const dialTimeout = 10 * time.Second

// chromeH1Spec returns a Chrome ClientHello with ALPN limited to http/1.1, since
// http.Transport cannot speak h2 over a utls connection. A spec holds handshake
// state once applied, so every connection needs its own.
func chromeH1Spec() (*utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(utls.HelloChrome_Auto)
	if err != nil {
		return nil, fmt.Errorf("build chrome client hello: %w", err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			break
		}
	}
	return &spec, nil
}

// chromeTLSDialer returns a DialTLSContext func that handshakes with a Chrome
// fingerprint. base may carry root CAs; ServerName is filled in per connection.
func chromeTLSDialer(base *utls.Config) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		spec, err := chromeH1Spec()
		if err != nil {
			return nil, err
		}

		dialer := &net.Dialer{Timeout: dialTimeout}
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, _ := net.SplitHostPort(addr)
		cfg := base.Clone()
		cfg.ServerName = host
		tlsConn := utls.UClient(conn, cfg, utls.HelloCustom)
		if err := tlsConn.ApplyPreset(spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply tls spec: %w", err)
		}
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}
}

func newTransport(cfg *config.AppConfig) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	if cfg.Status.Fingerprint == "chrome" {
		transport.DialTLSContext = chromeTLSDialer(&utls.Config{})
		transport.ForceAttemptHTTP2 = false
	}

	if err := proxy.NewManager(&cfg.Proxies).ApplyToTransport(transport); err != nil {
		return nil, fmt.Errorf("apply proxy: %w", err)
	}
	return transport, nil
}
