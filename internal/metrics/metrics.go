// Package metrics exposes Prometheus collectors for the settlement flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Name:      "settle_requests_total",
		Help:      "Settle calls by outcome (computed, replayed, waited, error).",
	}, []string{"outcome"})

	PaymentsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settlement",
		Name:      "payments_emitted_total",
		Help:      "Ledger payment rows produced by the minimizer.",
	})

	SettleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "settlement",
		Name:      "settle_duration_seconds",
		Help:      "End-to-end duration of Settle calls, persistence included.",
		Buckets:   prometheus.DefBuckets,
	})
)

const (
	OutcomeComputed = "computed"
	OutcomeReplayed = "replayed"
	OutcomeWaited   = "waited"
	OutcomeError    = "error"
)
