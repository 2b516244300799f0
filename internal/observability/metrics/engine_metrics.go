package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics captures calculation health signals.
type EngineMetrics struct {
	calculations       *prometheus.CounterVec
	calculationErrors  *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	duration           *prometheus.HistogramVec
}

var (
	engineMetricsOnce sync.Once
	engineMetrics     *EngineMetrics
)

// Engine returns the singleton engine metrics registry.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = newEngineMetrics(prometheus.DefaultRegisterer)
	})
	return engineMetrics
}

func newEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	factory := promauto.With(reg)
	return &EngineMetrics{
		calculations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxengine",
			Name:      "calculations_total",
			Help:      "Completed tax calculations by state and type.",
		}, []string{"state", "type"}),
		calculationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxengine",
			Name:      "calculation_errors_total",
			Help:      "Aborted tax calculations by error kind.",
		}, []string{"kind"}),
		validationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxengine",
			Name:      "validation_failures_total",
			Help:      "Calculations whose post-calculation validation failed.",
		}, []string{"state"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taxengine",
			Name:      "calculation_duration_seconds",
			Help:      "End-to-end calculation pipeline duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
}

func (m *EngineMetrics) RecordCalculation(state, calcType string) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(state, calcType).Inc()
}

func (m *EngineMetrics) RecordCalculationError(kind string) {
	if m == nil {
		return
	}
	m.calculationErrors.WithLabelValues(kind).Inc()
}

func (m *EngineMetrics) RecordValidationFailure(state string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(state).Inc()
}

func (m *EngineMetrics) ObserveDuration(calcType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(calcType).Observe(elapsed.Seconds())
}
