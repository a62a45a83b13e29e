// Package metrics holds the Prometheus collectors of palletwatch.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "palletwatch_messages_scanned_total",
			Help: "Messages enumerated from the mail source within the lookback window.",
		},
	)
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palletwatch_events_total",
			Help: "Matching messages by terminal outcome.",
		},
		[]string{"outcome"},
	)
	TableFills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palletwatch_table_fills_total",
			Help: "Conditional table cell fills by field and outcome.",
		},
		[]string{"field", "outcome"},
	)
	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palletwatch_reminders_total",
			Help: "Reminder dispatch attempts by category, rule and status.",
		},
		[]string{"category", "rule", "status"},
	)
	CycleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palletwatch_cycle_errors_total",
			Help: "Errors contained within a polling cycle, by kind.",
		},
		[]string{"kind"},
	)
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "palletwatch_cycle_duration_seconds",
			Help:    "Wall time of one polling cycle including the reminder sweep.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
