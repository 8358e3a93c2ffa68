package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garrison.ai/internal/sim/catalogs"
	"garrison.ai/internal/sim/world"
)

type fixedMetrics world.Metrics

func (m fixedMetrics) Metrics() world.Metrics { return world.Metrics(m) }

func testMux(t *testing.T) *http.ServeMux {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	require.NoError(t, err)
	m := fixedMetrics{Players: 3, Garrisons: 2, Entities: 9, Instances: 1, InboxDepth: 4, Dropped: 5, Saves: 6}
	ws := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) { rw.WriteHeader(http.StatusTeapot) })
	return buildMux(m, cats, ws)
}

func TestBuildMux_Healthz(t *testing.T) {
	rec := httptest.NewRecorder()
	testMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestBuildMux_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	testMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "# TYPE garrison_players gauge\ngarrison_players 3\n")
	assert.Contains(t, body, "garrison_map_entities 9\n")
	assert.Contains(t, body, "# TYPE garrison_messages_dropped_total counter\ngarrison_messages_dropped_total 5\n")
	assert.Contains(t, body, `garrison_catalog_entries{catalog="buildings"} 8`)
	assert.Contains(t, body, `garrison_catalog_entries{catalog="site_levels"} 3`)
}

func TestBuildMux_RoutesWebsocket(t *testing.T) {
	rec := httptest.NewRecorder()
	testMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ws", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
