package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the credit paths. Labels stay low-cardinality: outcomes and
// buckets only, never user IDs.
var (
	ChargesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creditrail",
		Name:      "charges_total",
		Help:      "Charge attempts by outcome.",
	}, []string{"outcome"})

	ChargedTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creditrail",
		Name:      "charged_tokens_total",
		Help:      "Tokens debited, by credit bucket.",
	}, []string{"bucket"})

	RecoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creditrail",
		Name:      "recoveries_total",
		Help:      "Recovery ticks by outcome.",
	}, []string{"outcome"})

	RecoveredTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "creditrail",
		Name:      "recovered_tokens_total",
		Help:      "Package tokens granted by recovery ticks.",
	})

	RedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creditrail",
		Name:      "redemptions_total",
		Help:      "Redemption attempts by outcome.",
	}, []string{"outcome"})

	WalletConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "creditrail",
		Name:      "wallet_conflicts_total",
		Help:      "Optimistic concurrency conflicts on wallet writes.",
	})

	ManualResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creditrail",
		Name:      "manual_resets_total",
		Help:      "Manual reset attempts by outcome.",
	}, []string{"outcome"})
)

// Outcome reduces a service result to a metric label.
func Outcome(success bool, errorCode string) string {
	if success {
		return "success"
	}
	if errorCode == "" {
		return "error"
	}
	return errorCode
}
