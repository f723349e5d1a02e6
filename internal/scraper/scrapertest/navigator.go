// Package scrapertest provides a scripted Navigator for tests.
package scrapertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/williampepple1/registry-scraper/internal/scraper"
)

// Row is one table row. A row with no headers or no data cells has the wrong shape.
type Row struct {
	Headers []string
	Data    []string
}

// KV builds a row with one header and one data cell
func KV(header, data string) Row {
	return Row{Headers: []string{header}, Data: []string{data}}
}

// Page scripts what the navigator sees after loading one URL
type Page struct {
	Rows  []Row
	Links []string

	LoadErr       error
	MarkerTimeout bool
	MarkerMissing bool
	// StaleLoads is how many loads of this page end in a stale element on the first
	// row query before the page settles.
	StaleLoads int
}

type nodeKind int

const (
	kindTable nodeKind = iota
	kindRow
	kindHeader
	kindData
	kindLink
)

type node struct {
	kind       nodeKind
	row, cell  int
	generation int
}

// Navigator is an in-memory scraper.Navigator driven by scripted pages
type Navigator struct {
	mu         sync.Mutex
	Pages      map[string]*Page
	loads      map[string]int
	order      []string
	current    *Page
	stale      bool
	generation int
	closed     bool
}

// New creates a navigator serving pages
func New(pages map[string]*Page) *Navigator {
	return &Navigator{
		Pages: pages,
		loads: make(map[string]int),
	}
}

// Loads returns how often url was loaded
func (n *Navigator) Loads(url string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loads[url]
}

// History returns every loaded URL in order
func (n *Navigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.order...)
}

// Closed reports whether Close was called
func (n *Navigator) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

func (n *Navigator) Load(ctx context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	n.loads[url]++
	n.order = append(n.order, url)
	n.generation++

	page, ok := n.Pages[url]
	if !ok {
		n.current = nil
		return fmt.Errorf("navigate to %s: net::ERR_NAME_NOT_RESOLVED", url)
	}
	if page.LoadErr != nil {
		n.current = nil
		return page.LoadErr
	}
	n.current = page
	n.stale = n.loads[url] <= page.StaleLoads
	return nil
}

func (n *Navigator) WaitForMarker(ctx context.Context, selector string, timeout time.Duration) ([]scraper.Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil {
		return nil, scraper.ErrNoPage
	}
	if n.current.MarkerTimeout {
		return nil, fmt.Errorf("%w: %s after %v", scraper.ErrMarkerTimeout, selector, timeout)
	}
	if n.current.MarkerMissing {
		return nil, fmt.Errorf("%w: %s", scraper.ErrMarkerMissing, selector)
	}
	return []scraper.Node{node{kind: kindTable, generation: n.generation}}, nil
}

func (n *Navigator) QueryChildren(ctx context.Context, parent scraper.Node, selector string) ([]scraper.Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, err := n.node(parent)
	if err != nil {
		return nil, err
	}

	var out []scraper.Node
	switch p.kind {
	case kindTable:
		if n.stale {
			return nil, fmt.Errorf("%w: table was re-rendered", scraper.ErrStaleElement)
		}
		if selector == "a" {
			for i := range n.current.Links {
				out = append(out, node{kind: kindLink, cell: i, generation: n.generation})
			}
			return out, nil
		}
		for i := range n.current.Rows {
			out = append(out, node{kind: kindRow, row: i, generation: n.generation})
		}
	case kindRow:
		row := n.current.Rows[p.row]
		switch selector {
		case "th":
			for i := range row.Headers {
				out = append(out, node{kind: kindHeader, row: p.row, cell: i, generation: n.generation})
			}
		case "td":
			for i := range row.Data {
				out = append(out, node{kind: kindData, row: p.row, cell: i, generation: n.generation})
			}
		}
	}
	return out, nil
}

func (n *Navigator) Text(ctx context.Context, nd scraper.Node) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, err := n.node(nd)
	if err != nil {
		return "", err
	}
	switch p.kind {
	case kindHeader:
		return n.current.Rows[p.row].Headers[p.cell], nil
	case kindData:
		return n.current.Rows[p.row].Data[p.cell], nil
	case kindLink:
		return n.current.Links[p.cell], nil
	}
	return "", nil
}

func (n *Navigator) Attr(ctx context.Context, nd scraper.Node, name string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, err := n.node(nd)
	if err != nil {
		return "", err
	}
	if p.kind == kindLink && name == "href" {
		return n.current.Links[p.cell], nil
	}
	return "", nil
}

func (n *Navigator) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}

func (n *Navigator) node(nd scraper.Node) (node, error) {
	p, ok := nd.(node)
	if !ok {
		return node{}, scraper.ErrForeignNode
	}
	if p.generation != n.generation || n.current == nil {
		return node{}, fmt.Errorf("%w: page was reloaded", scraper.ErrStaleElement)
	}
	return p, nil
}
