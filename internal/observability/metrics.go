package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MotionTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "motion_triggers_total",
		Help:      "Total number of motion triggers received",
	}, []string{"camera_id"})

	EventsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "events_created_total",
		Help:      "Total number of events persisted",
	}, []string{"camera_id", "mode"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "events_dropped_total",
		Help:      "Triggers dropped before analysis",
	}, []string{"reason"}) // outside_zone, cooldown, queue_overflow, shutdown

	AnalysisFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "analysis_fallbacks_total",
		Help:      "Fallback transitions between analysis modes",
	}, []string{"stage", "cause"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "homewatch",
		Name:      "analysis_duration_seconds",
		Help:      "Duration of analysis stages",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})

	AnalysisCost = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "analysis_cost_dollars_total",
		Help:      "Estimated spend on provider calls",
	}, []string{"provider", "mode"})

	AnalysisTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "analysis_tokens_total",
		Help:      "Token usage across provider calls",
	}, []string{"provider", "direction"}) // direction: prompt, completion

	EntitiesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "entities_matched_total",
		Help:      "Entity matcher outcomes",
	}, []string{"outcome"}) // matched, created, skipped

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "homewatch",
		Name:      "queue_depth",
		Help:      "Number of pending triggers in the processing queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "homewatch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "homewatch",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
