// Package session runs identification sessions end to end: it fits the
// candidate models, replays a touch stream through a sequential run, and
// reports the probability history. It also generates synthetic observation
// streams so the harness works without recorded data.
package session

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distmv"

	"touchident/internal/predict"
	"touchident/internal/touch"
)

// Sampler generates synthetic touch data. Each user gets a deterministic
// low-order polynomial offset field derived from the sampler seed and the
// user id, so repeated runs with the same seed produce the same data.
type Sampler struct {
	seed     int64
	noiseStd float64
	rng      *rand.Rand
	src      rand.Source
}

// NewSampler creates a sampler. noiseStd is the standard deviation of the
// per-observation touch noise added on top of the user's offset field.
func NewSampler(seed int64, noiseStd float64) *Sampler {
	if noiseStd <= 0 {
		noiseStd = 0.01
	}
	pcg := rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)
	return &Sampler{
		seed:     seed,
		noiseStd: noiseStd,
		rng:      rand.New(pcg),
		src:      pcg,
	}
}

// offsetField returns the deterministic mean offset of a user at p.
func (s *Sampler) offsetField(user int, p touch.Point) touch.Point {
	r := rand.New(rand.NewPCG(uint64(s.seed), uint64(user)+1))
	// Constant bias plus a gentle linear tilt across the screen, the shape
	// touch-offset studies report for thumb reach.
	bx := 0.04 * (r.Float64() - 0.5)
	by := 0.04 * (r.Float64() - 0.5)
	gx := 0.08 * (r.Float64() - 0.5)
	gy := 0.08 * (r.Float64() - 0.5)
	return touch.Point{
		X: bx + gx*(p.X-0.5),
		Y: by + gy*(p.Y-0.5),
	}
}

// TrainingObservations draws n observations for a user: touches uniform over
// the screen, targets displaced by the user's offset field plus noise.
func (s *Sampler) TrainingObservations(user, n int) []touch.Observation {
	obs := make([]touch.Observation, n)
	for i := 0; i < n; i++ {
		tch := touch.Point{X: s.rng.Float64(), Y: s.rng.Float64()}
		off := s.offsetField(user, tch)
		obs[i] = touch.Observation{
			User:  user,
			Touch: tch,
			Target: touch.Point{
				X: tch.X + off.X + s.noiseStd*s.rng.NormFloat64(),
				Y: tch.Y + off.Y + s.noiseStd*s.rng.NormFloat64(),
			},
		}
	}
	return obs
}

// StreamFromModel draws n touch/target pairs exactly from a fitted model's
// own predictive distribution: for each uniform touch the target is sampled
// from N(touch+offset, cov). Feeding such a stream back into an
// identification run is the consistency scenario where the model's
// probability should climb toward one.
func (s *Sampler) StreamFromModel(m predict.Model, n int) ([]touch.Observation, error) {
	stream := make([]touch.Observation, n)
	for i := 0; i < n; i++ {
		tch := touch.Point{X: s.rng.Float64(), Y: s.rng.Float64()}
		preds, err := m.Predict([]touch.Point{tch})
		if err != nil {
			return nil, fmt.Errorf("sample stream for user %d: %w", m.User(), err)
		}
		corrected := tch.Add(preds[0].Offset)
		dist, ok := distmv.NewNormal([]float64{corrected.X, corrected.Y}, preds[0].Cov, s.src)
		if !ok {
			return nil, fmt.Errorf("sample stream for user %d at step %d: %w",
				m.User(), i, touch.ErrSingularCovariance)
		}
		target := dist.Rand(nil)
		stream[i] = touch.Observation{
			User:   m.User(),
			Touch:  tch,
			Target: touch.Point{X: target[0], Y: target[1]},
		}
	}
	return stream, nil
}
