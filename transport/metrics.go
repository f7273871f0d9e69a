// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the push stream's Prometheus collectors.
type Metrics struct {
	Polls          *prometheus.CounterVec
	Events         *prometheus.CounterVec
	Connected      prometheus.Gauge
	IntentsSent    *prometheus.CounterVec
	IntentsDropped prometheus.Counter
}

// NewMetrics creates the collectors and registers them with registerer
// when it is non-nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "push",
			Name:      "polls_total",
			Help:      "Long-poll requests, by result.",
		}, []string{"result"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "push",
			Name:      "events_total",
			Help:      "Push events received, by event name and result.",
		}, []string{"event", "result"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatsync",
			Subsystem: "push",
			Name:      "connected",
			Help:      "1 while the last long-poll succeeded.",
		}),
		IntentsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "push",
			Name:      "intents_total",
			Help:      "Outbound typing and join intents, by kind and result.",
		}, []string{"kind", "result"}),
		IntentsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "push",
			Name:      "intents_dropped_total",
			Help:      "Outbound intents dropped because the outbox was full.",
		}),
	}
	if registerer != nil {
		registerer.MustRegister(
			metrics.Polls,
			metrics.Events,
			metrics.Connected,
			metrics.IntentsSent,
			metrics.IntentsDropped,
		)
	}
	return metrics
}
