package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canna_agent_query_total",
			Help: "Queries reaching a terminal status",
		},
		[]string{"status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canna_agent_query_duration_seconds",
			Help:    "Query pipeline duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"agent_type"},
	)

	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canna_agent_escalations_total",
			Help: "Cross-verification escalations by trigger",
		},
		[]string{"trigger"},
	)

	VerifierInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canna_agent_verifier_invocations_total",
			Help: "Verifier agent invocations by outcome",
		},
		[]string{"agent_type", "outcome"},
	)

	ConsensusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canna_agent_consensus_total",
			Help: "Verification rounds by consensus outcome",
		},
		[]string{"outcome"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "canna_agent_confidence_score",
			Help:    "Final confidence scores of terminal queries",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	DispatchQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "canna_agent_dispatch_queue_depth",
			Help: "Queries waiting in the dispatch queue",
		},
	)

	DeadLetterTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "canna_agent_dead_letter_total",
			Help: "Dispatched queries whose pipeline ended in failure",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canna_agent_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canna_agent_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	HeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canna_agent_heartbeats_total",
			Help: "Agent heartbeat refreshes",
		},
		[]string{"agent_type"},
	)
)

func Init() {
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(EscalationsTotal)
	prometheus.MustRegister(VerifierInvocations)
	prometheus.MustRegister(ConsensusTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(DispatchQueueDepth)
	prometheus.MustRegister(DeadLetterTotal)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(HeartbeatsTotal)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
