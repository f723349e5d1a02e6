package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/internal/proxy"
)

// RodNavigator drives one page of a rod-controlled browser
type RodNavigator struct {
	Config *config.AppConfig

	logger  *slog.Logger
	browser *rod.Browser
	page    *rod.Page
}

type rodNode struct {
	el *rod.Element
}

// NewRodNavigator launches the browser and opens the page all URLs are loaded into
func NewRodNavigator(cfg *config.AppConfig, logger *slog.Logger) (*RodNavigator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := launcher.New().
		Headless(cfg.Browser.Headless).
		NoSandbox(cfg.Browser.NoSandbox)
	if cfg.Browser.Bin != "" {
		l = l.Bin(cfg.Browser.Bin)
	}
	server, err := proxy.NewManager(&cfg.Proxies).Server()
	if err != nil {
		return nil, fmt.Errorf("apply proxy: %w", err)
	}
	if server != "" {
		l = l.Proxy(server)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := connectOrKill(browser.Connect, l.Kill); err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	// stealth has to be installed before the first navigation
	if cfg.Browser.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			logger.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	if cfg.Browser.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.Browser.UserAgent}); err != nil {
			logger.Warn("failed to set user agent", "error", err)
		}
	}
	logger.Info("browser launched", "engine", "rod", "controlURL", controlURL)

	return &RodNavigator{
		Config:  cfg,
		logger:  logger,
		browser: browser,
		page:    page,
	}, nil
}

func (n *RodNavigator) Load(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()

	p := n.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s to load: %w", url, err)
	}
	return nil
}

func (n *RodNavigator) WaitForMarker(ctx context.Context, selector string, timeout time.Duration) ([]Node, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := n.page.Context(waitCtx).Element(selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s after %v", ErrMarkerTimeout, selector, timeout)
		}
		return nil, rodErr(err)
	}
	return []Node{rodNode{el: el.Context(ctx)}}, nil
}

func (n *RodNavigator) QueryChildren(ctx context.Context, parent Node, selector string) ([]Node, error) {
	p, ok := parent.(rodNode)
	if !ok {
		return nil, ErrForeignNode
	}

	els, err := p.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, rodErr(err)
	}

	out := make([]Node, 0, len(els))
	for _, el := range els {
		out = append(out, rodNode{el: el})
	}
	return out, nil
}

func (n *RodNavigator) Text(ctx context.Context, node Node) (string, error) {
	rn, ok := node.(rodNode)
	if !ok {
		return "", ErrForeignNode
	}
	text, err := rn.el.Context(ctx).Text()
	if err != nil {
		return "", rodErr(err)
	}
	return text, nil
}

func (n *RodNavigator) Attr(ctx context.Context, node Node, name string) (string, error) {
	rn, ok := node.(rodNode)
	if !ok {
		return "", ErrForeignNode
	}
	val, err := rn.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", rodErr(err)
	}
	if val == nil {
		return "", nil
	}
	return *val, nil
}

// Close closes the page and kills the browser process
func (n *RodNavigator) Close() error {
	if err := n.page.Close(); err != nil {
		n.logger.Warn("failed to close page", "error", err)
	}
	err := n.browser.Close()
	n.logger.Info("browser closed", "engine", "rod")
	return err
}

// connectOrKill connects to a launched browser and kills the process when that fails
func connectOrKill(connect func() error, kill func()) error {
	if err := connect(); err != nil {
		kill()
		return fmt.Errorf("connect to browser: %w", err)
	}
	return nil
}

func rodErr(err error) error {
	if isStaleMessage(err.Error()) {
		return fmt.Errorf("%w: %v", ErrStaleElement, err)
	}
	return err
}
