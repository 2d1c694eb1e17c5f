// Package monitoring exposes calibration metrics to prometheus.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tfn"

// Metrics of model calibration. A nil *Metrics records nothing.
type Metrics struct {
	Evaluations *prometheus.CounterVec
	Solves      *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Samples     *prometheus.CounterVec
}

// NewMetrics registers the calibration metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "objective_evaluations_total",
				Help:      "Objective function evaluations",
			},
			[]string{"model"},
		),
		Solves: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "solves_total",
				Help:      "Finished solves by outcome",
			},
			[]string{"model", "status"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "solve_duration_seconds",
				Help:      "Wall time of a solve",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"model"},
		),
		Samples: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "monte_carlo_samples_total",
				Help:      "Monte Carlo parameter sets simulated",
			},
			[]string{"model"},
		),
	}
}

func (m *Metrics) Evaluated(model string) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(model).Inc()
}

// Solved records the outcome and wall time of a solve.
func (m *Metrics) Solved(model, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Solves.WithLabelValues(model, status).Inc()
	m.Duration.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) Sampled(model string, n int) {
	if m == nil {
		return
	}
	m.Samples.WithLabelValues(model).Add(float64(n))
}
