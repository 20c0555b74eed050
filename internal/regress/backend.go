// Package regress provides the regression capability behind per-user offset
// models: a backend contract (fit once, predict mean offsets with
// uncertainty) and a Gaussian-process reference implementation of it.
package regress

import (
	"gonum.org/v1/gonum/mat"

	"touchident/internal/touch"
)

// Backend is the pluggable regression capability consumed by the offset
// predictor. Implementations map touch locations to predicted offsets and,
// when asked, a 2x2 covariance describing predictive uncertainty.
//
// Predictive uncertainty must shrink near densely observed training touches
// and grow with distance from them; any kernel or locally weighted
// regression with that property is substitutable.
type Backend interface {
	// Fit estimates the regression state from touch/target observations.
	// At least one observation is required; Fit returns
	// touch.ErrInsufficientData otherwise.
	Fit(obs []touch.Observation) error

	// Predict returns the mean offset for every query point and, if wantCov
	// is set, a symmetric positive-definite 2x2 covariance per point.
	// Predict is a pure function of the fitted state and its arguments.
	Predict(points []touch.Point, wantCov bool) ([]touch.Point, []*mat.SymDense, error)
}
