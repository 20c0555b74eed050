package ident

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"

	"touchident/internal/predict"
	"touchident/internal/touch"
)

// MetricsSink receives identification counters. Defined here so the run does
// not depend on the metrics implementation directly.
type MetricsSink interface {
	IdentifyStepsInc()
	ScoreFailuresInc()
	TopProbabilitySet(float64)
}

// Run is one identification session over a fixed candidate set. It keeps a
// per-candidate accumulated log-likelihood, updated once per incoming
// touch/target pair, and derives a normalized probability vector at every
// step via log-sum-exp.
//
// Evidence accumulates without decay: once one candidate dominates, the
// belief is sticky, and shifting it requires exponentially more contrary
// evidence the longer the stream has run. That is the documented behavior of
// the cumulative update, not something the run tries to correct.
//
// A Run is owned by a single caller; concurrent streams need separate runs.
type Run struct {
	candidates []predict.Model
	scorer     *Scorer
	acc        []float64
	history    [][]float64
	metrics    MetricsSink
}

// NewRun creates an idle run over the given candidate models. The candidate
// set is fixed for the lifetime of the run.
func NewRun(candidates []predict.Model, scorer *Scorer) (*Run, error) {
	return NewRunWithMetrics(candidates, scorer, nil)
}

// NewRunWithMetrics is NewRun with an optional metrics sink.
func NewRunWithMetrics(candidates []predict.Model, scorer *Scorer, metrics MetricsSink) (*Run, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("identification run: no candidate models: %w", touch.ErrEmptyInput)
	}
	if scorer == nil {
		scorer = NewScorer(0)
	}
	return &Run{
		candidates: candidates,
		scorer:     scorer,
		acc:        make([]float64, len(candidates)),
		metrics:    metrics,
	}, nil
}

// Step scores one touch/target pair against every candidate, folds the
// scores into the accumulators and returns the updated probability vector.
// On error no accumulator is modified, so a failed step can be skipped by
// the caller without corrupting the run.
func (r *Run) Step(tch, target touch.Point) ([]float64, error) {
	scores := make([]float64, len(r.candidates))
	query := []touch.Point{tch}
	for k, c := range r.candidates {
		preds, err := c.Predict(query)
		if err != nil {
			r.failuresInc()
			return nil, fmt.Errorf("step: candidate %d: %w", c.User(), err)
		}
		score, err := r.scorer.Score(tch, target, preds[0])
		if err != nil {
			r.failuresInc()
			return nil, fmt.Errorf("step: candidate %d: %w", c.User(), err)
		}
		scores[k] = score
	}

	for k := range r.acc {
		r.acc[k] += scores[k]
	}

	probs := r.normalize()
	r.history = append(r.history, probs)

	if r.metrics != nil {
		r.metrics.IdentifyStepsInc()
		_, top := r.Top()
		r.metrics.TopProbabilitySet(top)
	}
	log.Trace().
		Floats64("probabilities", probs).
		Int("step", len(r.history)).
		Msg("identification step")

	return probs, nil
}

// normalize converts the accumulators into probabilities in the log domain,
// so arbitrarily negative accumulated likelihoods cannot underflow to 0/0.
func (r *Run) normalize() []float64 {
	lse := floats.LogSumExp(r.acc)
	probs := make([]float64, len(r.acc))
	for k, a := range r.acc {
		probs[k] = math.Exp(a - lse)
	}
	return probs
}

// Probabilities returns the current belief. Before the first step the
// belief is uniform over the candidates.
func (r *Run) Probabilities() []float64 {
	return r.normalize()
}

// Accumulated returns a copy of the per-candidate log-likelihood sums.
func (r *Run) Accumulated() []float64 {
	out := make([]float64, len(r.acc))
	copy(out, r.acc)
	return out
}

// History returns the probability vector emitted at every step, in input
// order. The slice is owned by the run; callers must not modify it.
func (r *Run) History() [][]float64 {
	return r.history
}

// Top returns the current most probable candidate's user id and probability.
func (r *Run) Top() (user int, prob float64) {
	probs := r.normalize()
	best := 0
	for k := range probs {
		if probs[k] > probs[best] {
			best = k
		}
	}
	return r.candidates[best].User(), probs[best]
}

// Users returns the candidate user ids in accumulator order.
func (r *Run) Users() []int {
	users := make([]int, len(r.candidates))
	for k, c := range r.candidates {
		users[k] = c.User()
	}
	return users
}

// Steps returns the number of touches folded into the run so far.
func (r *Run) Steps() int {
	return len(r.history)
}

// Reset clears the accumulators and history, restarting the run over the
// same candidate set.
func (r *Run) Reset() {
	for k := range r.acc {
		r.acc[k] = 0
	}
	r.history = nil
}

func (r *Run) failuresInc() {
	if r.metrics != nil {
		r.metrics.ScoreFailuresInc()
	}
}
