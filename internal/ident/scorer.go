// Package ident turns per-user offset predictions into a running belief over
// which user is touching: a likelihood scorer for single touches and a
// sequential log-domain accumulator over touch streams.
package ident

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"touchident/internal/predict"
	"touchident/internal/touch"
)

// Scorer evaluates how probable an observed target is under a model's
// predictive distribution for a touch.
//
// jitter is added to the covariance diagonal before the density evaluation.
// With jitter > 0 degenerate covariances are regularized; with jitter == 0
// the scorer is strict and returns touch.ErrSingularCovariance for any
// covariance that is not positive definite. The repo uses exactly one of the
// two modes per run, chosen in configuration.
type Scorer struct {
	jitter float64
}

// NewScorer returns a scorer with the given regularization epsilon.
func NewScorer(jitter float64) *Scorer {
	return &Scorer{jitter: jitter}
}

// Score returns the log-density of the bivariate normal
// N(touch+offset, cov) evaluated at the observed target. Continuous
// densities can exceed 1, so the result has no sign constraint.
func (s *Scorer) Score(tch, target touch.Point, pred predict.Prediction) (float64, error) {
	if !tch.Valid() || !target.Valid() {
		return 0, fmt.Errorf("score touch: %w", touch.ErrDimensionMismatch)
	}
	if pred.Cov == nil {
		return 0, fmt.Errorf("score touch: prediction carries no covariance: %w", touch.ErrSingularCovariance)
	}

	cov := pred.Cov
	if s.jitter > 0 {
		cov = mat.NewSymDense(2, []float64{
			pred.Cov.At(0, 0) + s.jitter, pred.Cov.At(0, 1),
			pred.Cov.At(1, 0), pred.Cov.At(1, 1) + s.jitter,
		})
	}

	corrected := tch.Add(pred.Offset)
	dist, ok := distmv.NewNormal([]float64{corrected.X, corrected.Y}, cov, nil)
	if !ok {
		return 0, fmt.Errorf("score touch at (%.3f, %.3f): %w", tch.X, tch.Y, touch.ErrSingularCovariance)
	}

	return dist.LogProb([]float64{target.X, target.Y}), nil
}
