// Package metrics exposes the Prometheus collectors of the collective network.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collective_reports_total",
		Help: "Interaction reports received, by kind and ingestion status.",
	}, []string{"kind", "status"})

	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collective_broadcasts_total",
		Help: "Egress messages queued for agents, by message type.",
	}, []string{"type"})

	BroadcastDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collective_broadcast_dropped_total",
		Help: "Egress messages dropped because an agent's send queue was full.",
	})

	ConnectedAgents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collective_connected_agents",
		Help: "Agents currently connected to the mesh.",
	})

	PromotionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collective_promotions_total",
		Help: "Knowledge promotions, by type (success_pattern, crisis_playbook, team).",
	}, []string{"type"})

	PredictionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collective_prediction_seconds",
		Help:    "Time spent computing predictions, by kind.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"kind"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collective_http_requests_total",
		Help: "HTTP requests served, by method and status code.",
	}, []string{"method", "status"})

	ImprovementCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collective_improvement_cycles_total",
		Help: "Self-improvement cycles run, by outcome.",
	}, []string{"outcome"})

	ProactiveActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collective_proactive_actions_total",
		Help: "Proactive actions generated, by action type.",
	}, []string{"action"})
)
