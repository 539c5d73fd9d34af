// Package metrics defines the Prometheus collectors exported by the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SwapsExecuted counts executed swaps by pool asset pair.
var SwapsExecuted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "poolrisk_swaps_executed_total",
		Help: "Total number of swaps executed against the pool ledger",
	},
	[]string{"pair"},
)

// FeesCollected accumulates swap fees in quote-asset value by pair.
var FeesCollected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "poolrisk_fees_collected_total",
		Help: "Total swap fee value collected, in quote asset units",
	},
	[]string{"pair"},
)

// InsuranceClaims counts insurance claim settlements by outcome (full/partial).
var InsuranceClaims = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "poolrisk_insurance_claims_total",
		Help: "Total insurance claims settled, labeled by payout outcome",
	},
	[]string{"outcome"},
)

// Rebalances counts virtual-reserve rebalances by trigger reason.
var Rebalances = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "poolrisk_rebalances_total",
		Help: "Total pool rebalance events by trigger reason",
	},
	[]string{"reason"},
)

// SnapshotsRejected counts oracle snapshots dropped at ingestion.
var SnapshotsRejected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "poolrisk_snapshots_rejected_total",
		Help: "Oracle snapshots dropped at ingestion, labeled by cause",
	},
	[]string{"cause"},
)

// SwapQuoteLatency records latency distribution for swap quoting.
var SwapQuoteLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "poolrisk_swap_quote_latency_seconds",
		Help:    "Latency in seconds to price a swap quote",
		Buckets: prometheus.DefBuckets,
	},
)

// Register registers all collectors on the given registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		SwapsExecuted,
		FeesCollected,
		InsuranceClaims,
		Rebalances,
		SnapshotsRejected,
		SwapQuoteLatency,
	)
}
