package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/internal/proxy"
)

const (
	navigateTimeout = 30 * time.Second
	queryTimeout    = 5 * time.Second

	innerTextFunc = `function() { return this.innerText; }`
)

// ChromeNavigator drives one tab of a headless Chrome through chromedp.
// Child queries and reads go straight to the DOM domain by node id, so a node that
// was replaced by a re-render fails fast with ErrStaleElement instead of waiting.
type ChromeNavigator struct {
	Config *config.AppConfig

	logger     *slog.Logger
	browserCtx context.Context
	cancel     context.CancelFunc
}

type chromeNode struct {
	id cdp.NodeID
}

// NewChromeNavigator launches the browser and opens the tab all pages are loaded into
func NewChromeNavigator(cfg *config.AppConfig, logger *slog.Logger) (*ChromeNavigator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// Configure browser options
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Browser.Headless),
		chromedp.UserAgent(cfg.Browser.UserAgent),
	)
	if cfg.Browser.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.Browser.Bin != "" {
		opts = append(opts, chromedp.ExecPath(cfg.Browser.Bin))
	}
	server, err := proxy.NewManager(&cfg.Proxies).Server()
	if err != nil {
		return nil, fmt.Errorf("apply proxy: %w", err)
	}
	if server != "" {
		opts = append(opts, chromedp.ProxyServer(server))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser; it must use the long-lived context.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	logger.Info("browser launched", "engine", "chromedp", "headless", cfg.Browser.Headless)

	return &ChromeNavigator{
		Config:     cfg,
		logger:     logger,
		browserCtx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}, nil
}

func (n *ChromeNavigator) Load(ctx context.Context, url string) error {
	if err := n.run(ctx, navigateTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (n *ChromeNavigator) WaitForMarker(ctx context.Context, selector string, timeout time.Duration) ([]Node, error) {
	var nodes []*cdp.Node
	err := n.run(ctx, timeout, chromedp.Nodes(selector, &nodes, chromedp.ByQuery))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s after %v", ErrMarkerTimeout, selector, timeout)
		}
		return nil, chromeErr(err)
	}

	out := make([]Node, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, chromeNode{id: node.NodeID})
	}
	return out, nil
}

func (n *ChromeNavigator) QueryChildren(ctx context.Context, parent Node, selector string) ([]Node, error) {
	p, ok := parent.(chromeNode)
	if !ok {
		return nil, ErrForeignNode
	}

	var ids []cdp.NodeID
	err := n.run(ctx, queryTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		ids, err = dom.QuerySelectorAll(p.id, selector).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, chromeErr(err)
	}

	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, chromeNode{id: id})
	}
	return out, nil
}

// Text returns the rendered innerText of the node, so <br> and block boundaries
// come back as line breaks
func (n *ChromeNavigator) Text(ctx context.Context, node Node) (string, error) {
	cn, ok := node.(chromeNode)
	if !ok {
		return "", ErrForeignNode
	}

	var raw []byte
	err := n.run(ctx, queryTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(cn.id).Do(ctx)
		if err != nil {
			return err
		}
		defer runtime.ReleaseObject(obj.ObjectID).Do(ctx)

		res, exc, err := runtime.CallFunctionOn(innerTextFunc).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("read text: %s", exc.Text)
		}
		raw = res.Value
		return nil
	}))
	if err != nil {
		return "", chromeErr(err)
	}

	var text string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", fmt.Errorf("decode node text: %w", err)
		}
	}
	return text, nil
}

func (n *ChromeNavigator) Attr(ctx context.Context, node Node, name string) (string, error) {
	cn, ok := node.(chromeNode)
	if !ok {
		return "", ErrForeignNode
	}

	var attrs []string
	err := n.run(ctx, queryTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		attrs, err = dom.GetAttributes(cn.id).Do(ctx)
		return err
	}))
	if err != nil {
		return "", chromeErr(err)
	}

	// attributes come back flattened as name, value, name, value...
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i] == name {
			return attrs[i+1], nil
		}
	}
	return "", nil
}

// Close shuts the browser down
func (n *ChromeNavigator) Close() error {
	n.cancel()
	n.logger.Info("browser closed", "engine", "chromedp")
	return nil
}

// run executes actions on the tab, bounded by timeout and by the caller's context
func (n *ChromeNavigator) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(n.browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func chromeErr(err error) error {
	var cdpErr *cdproto.Error
	if errors.As(err, &cdpErr) && isStaleMessage(cdpErr.Message) {
		return fmt.Errorf("%w: %v", ErrStaleElement, err)
	}
	if isStaleMessage(err.Error()) {
		return fmt.Errorf("%w: %v", ErrStaleElement, err)
	}
	return err
}
