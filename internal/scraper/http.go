package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/internal/proxy"
)

// HTTPNavigator loads pages with a plain GET and queries the parsed HTML.
// It runs no JavaScript, so it only suits sites that render the table server side.
type HTTPNavigator struct {
	Config *config.AppConfig
	Proxy  *proxy.Manager

	client     *http.Client
	doc        *goquery.Document
	generation int
}

type httpNode struct {
	sel        *goquery.Selection
	generation int
}

// NewHTTPNavigator creates a new HTTP navigator
func NewHTTPNavigator(cfg *config.AppConfig) (*HTTPNavigator, error) {
	pm := proxy.NewManager(&cfg.Proxies)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if err := pm.ApplyToTransport(transport); err != nil {
		return nil, fmt.Errorf("apply proxy: %w", err)
	}

	return &HTTPNavigator{
		Config: cfg,
		Proxy:  pm,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Scraper.LoadTimeout,
		},
	}, nil
}

// Load fetches url and replaces the current document.
// Nodes from the previous document become stale.
func (n *HTTPNavigator) Load(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	// Set a random user agent if available
	if agents := n.Config.Scraper.UserAgents; len(agents) > 0 {
		req.Header.Set("User-Agent", agents[rand.Intn(len(agents))])
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("load %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("load %s: received status code %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parse %s: %w", url, err)
	}

	n.doc = doc
	n.generation++
	return nil
}

// WaitForMarker does not wait: a static document either contains the marker or never will.
func (n *HTTPNavigator) WaitForMarker(ctx context.Context, selector string, timeout time.Duration) ([]Node, error) {
	if n.doc == nil {
		return nil, ErrNoPage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes, err := n.find(n.doc.Selection, selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMarkerMissing, selector)
	}
	return nodes, nil
}

func (n *HTTPNavigator) QueryChildren(ctx context.Context, parent Node, selector string) ([]Node, error) {
	p, err := n.node(parent)
	if err != nil {
		return nil, err
	}
	return n.find(p.sel, selector)
}

func (n *HTTPNavigator) Text(ctx context.Context, node Node) (string, error) {
	hn, err := n.node(node)
	if err != nil {
		return "", err
	}
	return cellText(hn.sel), nil
}

func (n *HTTPNavigator) Attr(ctx context.Context, node Node, name string) (string, error) {
	hn, err := n.node(node)
	if err != nil {
		return "", err
	}
	val, _ := hn.sel.Attr(name)
	return val, nil
}

// Close releases idle connections
func (n *HTTPNavigator) Close() error {
	n.client.CloseIdleConnections()
	return nil
}

// cellText approximates innerText for a static document: <br> becomes a line
// break. The selection is cloned so the loaded document stays untouched.
func cellText(sel *goquery.Selection) string {
	clone := sel.Clone()
	clone.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: "\n"})
	})
	return clone.Text()
}

func (n *HTTPNavigator) find(root *goquery.Selection, selector string) ([]Node, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	var nodes []Node
	root.FindMatcher(matcher).Each(func(i int, s *goquery.Selection) {
		nodes = append(nodes, httpNode{sel: s, generation: n.generation})
	})
	return nodes, nil
}

func (n *HTTPNavigator) node(node Node) (httpNode, error) {
	hn, ok := node.(httpNode)
	if !ok {
		return httpNode{}, ErrForeignNode
	}
	if hn.generation != n.generation {
		return httpNode{}, fmt.Errorf("%w: page was reloaded", ErrStaleElement)
	}
	return hn, nil
}
