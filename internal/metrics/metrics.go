// Package metrics provides Prometheus instrumentation for the exchange core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuctionsStarted counts auctions opened for search queries.
	AuctionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intent_exchange_auctions_started_total",
		Help: "Total number of auctions started",
	})

	// AuctionsFinalized counts finalized auctions, partitioned by mode
	// (user selection vs TTL-expiry auto-selection).
	AuctionsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_exchange_auctions_finalized_total",
		Help: "Total number of auctions finalized",
	}, []string{"mode"})

	// BidsSolicited counts bids collected into auctions, fallback included.
	BidsSolicited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intent_exchange_bids_solicited_total",
		Help: "Total number of bids collected into auctions",
	})

	// Settlements counts settlement decisions by outcome.
	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_exchange_settlements_total",
		Help: "Total number of secondary settlements recorded",
	}, []string{"decision"})

	// PrimaryRewardsIssued counts primary reward transactions created.
	PrimaryRewardsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intent_exchange_primary_rewards_total",
		Help: "Total number of primary reward transactions created",
	})

	// QuotaRejections counts click submissions rejected by the daily quota.
	QuotaRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intent_exchange_quota_rejections_total",
		Help: "Click submissions rejected by the daily quota",
	})

	// ScorerFallbacks counts quality evaluations served by the local
	// heuristic because the scorer service was unavailable.
	ScorerFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intent_exchange_scorer_fallbacks_total",
		Help: "Quality evaluations served by the local fallback heuristic",
	})

	// AutoBidEvaluations counts policy evaluations by outcome (bid or the
	// abstain reason).
	AutoBidEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_exchange_autobid_evaluations_total",
		Help: "Auto-bid policy evaluations by outcome",
	}, []string{"outcome"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_exchange_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intent_exchange_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// WebSocketClients tracks connected live-feed clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intent_exchange_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})
)
