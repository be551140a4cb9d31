// Package metrics holds the Prometheus collectors of the cart engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Commands counts store commands by command and outcome.
	Commands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_commands_total",
			Help: "Total number of cart commands by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	// QuantityAdjusted counts commands whose quantity was clamped.
	QuantityAdjusted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_quantity_adjusted_total",
			Help: "Total number of commands whose requested quantity was clamped",
		},
		[]string{"command"},
	)

	// StorageWrites counts persistence writes by result (success|failure).
	StorageWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_storage_writes_total",
			Help: "Total number of cart snapshot writes by result",
		},
		[]string{"result"},
	)

	// StorageWriteDuration tracks how long snapshot writes take.
	StorageWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cart_storage_write_duration_seconds",
			Help:    "Duration of cart snapshot writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Loads counts loads by detected payload format.
	Loads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_loads_total",
			Help: "Total number of cart loads by detected format",
		},
		[]string{"format"},
	)

	// RecordsDropped counts persisted records rejected on load.
	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_records_dropped_total",
			Help: "Total number of persisted cart records dropped on load by reason",
		},
		[]string{"reason"},
	)

	// Reconciliations counts cross-instance reloads.
	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_reconciliations_total",
			Help: "Total number of external changes handled by result (reloaded|unchanged)",
		},
		[]string{"result"},
	)

	// InvalidPriceBreaks counts catalog products whose price table failed validation.
	InvalidPriceBreaks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_invalid_price_breaks_total",
			Help: "Total number of catalog products with an invalid price-break table",
		},
		[]string{"source", "action"},
	)
)
