package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"feedesk/internal/receipt/models"
)

// Metrics provides observability for receipt issuance.
// Tracks issuance outcomes and per-stage durations.
type Metrics struct {
	Receipts      *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
}

// New registers the receipt metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Receipts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "feedesk_receipts_total",
			Help: "Receipt issuance attempts by outcome",
		}, []string{"outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "feedesk_receipt_stage_duration_seconds",
			Help: "Duration of each issuance stage",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
	}
}

// IncrementOutcome records one finished request.
func (m *Metrics) IncrementOutcome(outcome string) {
	m.Receipts.WithLabelValues(outcome).Inc()
}

// ObserveStage records a stage duration. Call with time.Now() taken at stage start.
func (m *Metrics) ObserveStage(stage models.Stage, start time.Time) {
	m.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}
