package main

import (
	"fmt"
	"io"
	"net/http"

	"garrison.ai/internal/sim/catalogs"
	"garrison.ai/internal/sim/world"
)

type metricsSource interface {
	Metrics() world.Metrics
}

func buildMux(realm metricsSource, cats *catalogs.Catalogs, wsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, realm.Metrics(), cats.Counts())
	})
	mux.Handle("/v1/ws", wsHandler)
	return mux
}

// writeMetrics emits the Prometheus text exposition format.
func writeMetrics(w io.Writer, m world.Metrics, c catalogs.Counts) {
	gauge(w, "garrison_players", "Connected players.", m.Players)
	gauge(w, "garrison_garrisons", "Online players that own a garrison.", m.Garrisons)
	gauge(w, "garrison_map_entities", "Spawned plot and building objects.", m.Entities)
	gauge(w, "garrison_map_instances", "Open garrison map instances.", m.Instances)
	gauge(w, "garrison_inbox_depth", "Realm request backlog.", int64(m.InboxDepth))

	counter(w, "garrison_messages_dropped_total", "Messages dropped on full outboxes or without a route.", m.Dropped)
	counter(w, "garrison_saves_total", "Garrison saves.", m.Saves)
	counter(w, "garrison_save_errors_total", "Failed garrison saves.", m.SaveErrors)

	fmt.Fprintf(w, "# HELP garrison_catalog_entries Loaded catalog rows.\n")
	fmt.Fprintf(w, "# TYPE garrison_catalog_entries gauge\n")
	fmt.Fprintf(w, "garrison_catalog_entries{catalog=%q} %d\n", "site_levels", c.SiteLevels)
	fmt.Fprintf(w, "garrison_catalog_entries{catalog=%q} %d\n", "plots", c.Plots)
	fmt.Fprintf(w, "garrison_catalog_entries{catalog=%q} %d\n", "buildings", c.Buildings)
	fmt.Fprintf(w, "garrison_catalog_entries{catalog=%q} %d\n", "followers", c.Followers)
	fmt.Fprintf(w, "garrison_catalog_entries{catalog=%q} %d\n", "maps", c.Maps)
}

func gauge(w io.Writer, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, help, name, name, v)
}

func counter(w io.Writer, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
}
