// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the orchestrator's Prometheus collectors.
type Metrics struct {
	Ingested         *prometheus.CounterVec
	StaleResponses   prometheus.Counter
	MalformedBatches prometheus.Counter
	SendFailures     prometheus.Counter
	Notifications    prometheus.Counter
	BadgeRefreshes   *prometheus.CounterVec
	UnreadMessages   prometheus.Gauge
	OnlineUsers      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with registerer
// when it is non-nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		Ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "orchestrator",
			Name:      "messages_ingested_total",
			Help:      "Messages offered to the ledger, by source and result.",
		}, []string{"source", "result"}),
		StaleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "orchestrator",
			Name:      "stale_responses_total",
			Help:      "Pull responses discarded because the conversation changed.",
		}),
		MalformedBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "orchestrator",
			Name:      "malformed_batches_total",
			Help:      "Pull responses dropped because the payload did not decode.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "orchestrator",
			Name:      "send_failures_total",
			Help:      "Optimistic sends the server rejected or never answered.",
		}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "orchestrator",
			Name:      "notifications_total",
			Help:      "OS notifications raised.",
		}),
		BadgeRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "orchestrator",
			Name:      "badge_refreshes_total",
			Help:      "Unread count refreshes, by outcome.",
		}, []string{"outcome"}),
		UnreadMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatsync",
			Subsystem: "orchestrator",
			Name:      "unread_messages",
			Help:      "Unread messages across all conversations, as last drawn in the sidebar.",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatsync",
			Subsystem: "orchestrator",
			Name:      "online_users",
			Help:      "Users in the presence online set.",
		}),
	}
	if registerer != nil {
		registerer.MustRegister(
			metrics.Ingested,
			metrics.StaleResponses,
			metrics.MalformedBatches,
			metrics.SendFailures,
			metrics.Notifications,
			metrics.BadgeRefreshes,
			metrics.UnreadMessages,
			metrics.OnlineUsers,
		)
	}
	return metrics
}
