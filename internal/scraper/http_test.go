package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williampepple1/registry-scraper/internal/config"
)

const detailPage = `<html><body>
<table class="e-table">
  <tr><th> Name </th><td> Muster AG </td></tr>
  <tr><th>Internet</th><td><a href="/go">www.muster.ch</a></td></tr>
  <tr><td>no header here</td></tr>
</table>
</body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/detail", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPage)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>nothing</p></body></html>`)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newHTTPNavigator(t *testing.T) *HTTPNavigator {
	t.Helper()
	cfg := config.Default()
	cfg.Browser.Enabled = false
	nav, err := NewHTTPNavigator(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nav.Close() })
	return nav
}

func TestHTTPNavigatorQueries(t *testing.T) {
	srv := newTestServer(t)
	nav := newHTTPNavigator(t)
	ctx := context.Background()

	require.NoError(t, nav.Load(ctx, srv.URL+"/detail"))

	tables, err := nav.WaitForMarker(ctx, ".e-table", time.Second)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	rows, err := nav.QueryChildren(ctx, tables[0], "tr")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	headers, err := nav.QueryChildren(ctx, rows[0], "th")
	require.NoError(t, err)
	require.Len(t, headers, 1)
	text, err := nav.Text(ctx, headers[0])
	require.NoError(t, err)
	assert.Equal(t, " Name ", text)

	links, err := nav.QueryChildren(ctx, rows[1], "a")
	require.NoError(t, err)
	require.Len(t, links, 1)
	href, err := nav.Attr(ctx, links[0], "href")
	require.NoError(t, err)
	assert.Equal(t, "/go", href)
	missing, err := nav.Attr(ctx, links[0], "title")
	require.NoError(t, err)
	assert.Empty(t, missing)

	none, err := nav.QueryChildren(ctx, rows[2], "th")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHTTPNavigatorStaleAfterReload(t *testing.T) {
	srv := newTestServer(t)
	nav := newHTTPNavigator(t)
	ctx := context.Background()

	require.NoError(t, nav.Load(ctx, srv.URL+"/detail"))
	tables, err := nav.WaitForMarker(ctx, ".e-table", time.Second)
	require.NoError(t, err)

	require.NoError(t, nav.Load(ctx, srv.URL+"/detail"))
	_, err = nav.QueryChildren(ctx, tables[0], "tr")
	assert.True(t, IsStale(err))
}

func TestHTTPNavigatorMarkerMissing(t *testing.T) {
	srv := newTestServer(t)
	nav := newHTTPNavigator(t)
	ctx := context.Background()

	require.NoError(t, nav.Load(ctx, srv.URL+"/empty"))
	_, err := nav.WaitForMarker(ctx, ".e-table", time.Second)
	assert.ErrorIs(t, err, ErrMarkerMissing)
	assert.False(t, IsStale(err))
}

func TestHTTPNavigatorErrors(t *testing.T) {
	srv := newTestServer(t)
	nav := newHTTPNavigator(t)
	ctx := context.Background()

	_, err := nav.WaitForMarker(ctx, ".e-table", time.Second)
	assert.ErrorIs(t, err, ErrNoPage)

	assert.Error(t, nav.Load(ctx, srv.URL+"/gone"))

	_, err = nav.Text(ctx, "not a node")
	assert.ErrorIs(t, err, ErrForeignNode)
}

func TestIsStaleMessage(t *testing.T) {
	assert.True(t, isStaleMessage("Could not find node with given id"))
	assert.True(t, isStaleMessage("No node with given id found"))
	assert.True(t, isStaleMessage("{-32000 Cannot find context with specified id}"))
	assert.False(t, isStaleMessage("net::ERR_NAME_NOT_RESOLVED"))
}

func TestHTTPNavigatorMultiLineCell(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<table class="e-table"><tr><th>Adresse</th><td>Musterstr. 1<br>12345 Berlin<br/>Deutschland</td></tr></table>`)
	}))
	defer srv.Close()
	nav := newHTTPNavigator(t)
	ctx := context.Background()

	require.NoError(t, nav.Load(ctx, srv.URL))
	tables, err := nav.WaitForMarker(ctx, ".e-table", time.Second)
	require.NoError(t, err)
	cells, err := nav.QueryChildren(ctx, tables[0], "td")
	require.NoError(t, err)
	require.Len(t, cells, 1)

	text, err := nav.Text(ctx, cells[0])
	require.NoError(t, err)
	assert.Equal(t, "Musterstr. 1\n12345 Berlin\nDeutschland", text)

	// reading twice gives the same result, the document is not rewritten
	again, err := nav.Text(ctx, cells[0])
	require.NoError(t, err)
	assert.Equal(t, text, again)
}
