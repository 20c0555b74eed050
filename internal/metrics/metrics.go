// Package metrics provides Prometheus metrics for the touch identification
// engine: model fitting, offset prediction, likelihood scoring and
// identification session progress, exposed via the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	// Model fitting
	ModelsFitted prometheus.Counter   // Total number of user models fitted
	FitDuration  prometheus.Histogram // Duration of model fits in seconds

	// Prediction and evaluation
	Predictions        prometheus.Counter   // Total number of offset predictions served
	ImprovementPercent prometheus.Histogram // RMSE improvement reported by accuracy evaluations

	// Identification
	IdentifySteps       prometheus.Counter // Total identification steps processed
	ScoreFailures       prometheus.Counter // Likelihood scoring failures
	SingularCovariances prometheus.Counter // Covariances rejected as not positive definite
	SessionsTotal       prometheus.Counter // Identification sessions started
	TopCandidateProb    prometheus.Gauge   // Current top candidate probability

	// System
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry, which keeps test
// runs isolated from the global Prometheus state.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		ModelsFitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "models_fitted_total",
			Help: "Total number of user offset models fitted",
		}),
		FitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fit_duration_seconds",
			Help:    "Duration of user model fits in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of offset predictions served",
		}),
		ImprovementPercent: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "accuracy_improvement_percent",
			Help:    "RMSE improvement percentage reported by accuracy evaluations",
			Buckets: prometheus.LinearBuckets(-50, 10, 16),
		}),
		IdentifySteps: factory.NewCounter(prometheus.CounterOpts{
			Name: "identify_steps_total",
			Help: "Total identification steps processed",
		}),
		ScoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "score_failures_total",
			Help: "Total number of likelihood scoring failures",
		}),
		SingularCovariances: factory.NewCounter(prometheus.CounterOpts{
			Name: "singular_covariances_total",
			Help: "Covariances rejected as singular or not positive definite",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "identify_sessions_total",
			Help: "Total number of identification sessions started",
		}),
		TopCandidateProb: factory.NewGauge(prometheus.GaugeOpts{
			Name: "top_candidate_probability",
			Help: "Probability of the current top candidate in the active session",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}
