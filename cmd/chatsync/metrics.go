// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/chatsync/lib/netutil"
)

// newRegistry returns a registry carrying the Go runtime and process
// collectors alongside whatever the caller registers.
func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func metricsHandler(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

// serveMetrics serves /metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, listener *netutil.HTTPListener, registry *prometheus.Registry, logger *slog.Logger) {
	logger.Info("serving metrics", "address", listener.Address())
	if err := listener.Serve(ctx, metricsHandler(registry)); err != nil {
		logger.Error("metrics server failed", "error", err)
	}
}
