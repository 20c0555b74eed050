package metrics

import "time"

// Wrapper exposes the collectors through plain methods so inner packages can
// declare small sink interfaces instead of importing Prometheus types.
type Wrapper struct {
	m *Metrics
}

// NewWrapper wraps a Metrics set.
func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

// IdentifyStepsInc satisfies ident.MetricsSink.
func (w *Wrapper) IdentifyStepsInc() { w.m.IdentifySteps.Inc() }

// ScoreFailuresInc satisfies ident.MetricsSink.
func (w *Wrapper) ScoreFailuresInc() {
	w.m.ScoreFailures.Inc()
	w.m.ErrorsTotal.Inc()
}

// TopProbabilitySet satisfies ident.MetricsSink.
func (w *Wrapper) TopProbabilitySet(p float64) { w.m.TopCandidateProb.Set(p) }

// SingularCovarianceInc records a rejected covariance.
func (w *Wrapper) SingularCovarianceInc() { w.m.SingularCovariances.Inc() }

// SessionStarted records the start of an identification session.
func (w *Wrapper) SessionStarted() { w.m.SessionsTotal.Inc() }

// ModelFitted records a completed fit and its duration.
func (w *Wrapper) ModelFitted(d time.Duration) {
	w.m.ModelsFitted.Inc()
	w.m.FitDuration.Observe(d.Seconds())
}

// PredictionsAdd records a batch of served predictions.
func (w *Wrapper) PredictionsAdd(n float64) {
	if n > 0 {
		w.m.Predictions.Add(n)
	}
}

// ImprovementObserve records an accuracy evaluation result.
func (w *Wrapper) ImprovementObserve(pct float64) { w.m.ImprovementPercent.Observe(pct) }
