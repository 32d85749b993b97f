package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyvoice_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policyvoice_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Turn metrics
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyvoice_turns_total",
			Help: "Total conversation turns by outcome",
		},
		[]string{"outcome"}, // "ok", "upstream_error", "store_error"
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "policyvoice_turn_duration_seconds",
			Help:    "End-to-end turn latency, load to persist",
			Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16, 32},
		},
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policyvoice_llm_request_duration_seconds",
			Help:    "LLM completion latency",
			Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"provider"},
	)

	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyvoice_llm_tokens_total",
			Help: "Tokens consumed by LLM completions",
		},
		[]string{"provider", "kind"}, // "input", "output"
	)

	LLMCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyvoice_llm_cost_usd_total",
			Help: "Estimated LLM spend in USD, zero for unpriced models",
		},
		[]string{"provider"},
	)

	KnowledgeHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "policyvoice_knowledge_hits_total",
			Help: "Turns where the knowledge lookup returned a snippet",
		},
	)

	// Speech metrics
	TranscriptionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "policyvoice_transcription_duration_seconds",
			Help:    "Speech-to-text latency",
			Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16},
		},
	)

	TranscriptionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "policyvoice_transcription_errors_total",
			Help: "Failed speech-to-text calls",
		},
	)

	// Gateway metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "policyvoice_ws_active_connections",
			Help: "Open websocket connections",
		},
	)

	IgnoredMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyvoice_ws_ignored_messages_total",
			Help: "Inbound websocket messages dropped as malformed",
		},
		[]string{"reason"},
	)
)
