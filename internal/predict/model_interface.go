// Package predict binds the regression backend to user identities: it fits
// immutable per-user offset models and quantifies how much a model improves
// targeting accuracy on held-out observations.
package predict

import (
	"gonum.org/v1/gonum/mat"

	"touchident/internal/touch"
)

// Prediction is the model output for one query touch: the mean correction
// to apply and a 2x2 covariance over the intended location,
// intended ~ N(touch+Offset, Cov).
type Prediction struct {
	Offset touch.Point
	Cov    *mat.SymDense
}

// Model is the trained per-user predictor consumed by the evaluator and the
// identification engine. Implementations must be safe for concurrent reads
// and must not mutate state during Predict.
type Model interface {
	// User returns the identity the model was fitted for.
	User() int

	// Predict returns one prediction per query point, covariance included.
	Predict(points []touch.Point) ([]Prediction, error)
}
