package regress

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"touchident/internal/common"
	"touchident/internal/touch"
)

// GP is a zero-mean Gaussian-process regression over targeting offsets with
// an RBF kernel k(a,b) = signalVar * exp(-gamma*|a-b|^2) and observation
// noise noiseVar on the diagonal. The X and Y offset components share the
// kernel, so the predictive covariance is isotropic per query point.
//
// gamma controls locality: small values average the offset field globally,
// large values fit sharp local structure and overfit sparse data.
type GP struct {
	gamma     float64
	signalVar float64
	noiseVar  float64

	fitted bool
	train  []touch.Point
	chol   mat.Cholesky
	alphaX *mat.VecDense
	alphaY *mat.VecDense
}

// NewGP creates an unfitted GP backend. Non-positive hyperparameters are
// replaced by the package defaults.
func NewGP(gamma, signalVar, noiseVar float64) *GP {
	if gamma <= 0 {
		gamma = common.DefaultGamma
	}
	if signalVar <= 0 {
		signalVar = common.DefaultSignalVariance
	}
	if noiseVar <= 0 {
		noiseVar = common.DefaultNoiseVariance
	}
	return &GP{gamma: gamma, signalVar: signalVar, noiseVar: noiseVar}
}

func (g *GP) kernel(a, b touch.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return g.signalVar * math.Exp(-g.gamma*(dx*dx+dy*dy))
}

// Fit computes the Cholesky factor of the kernel matrix over the training
// touches and the weight vectors for both offset components.
func (g *GP) Fit(obs []touch.Observation) error {
	if len(obs) == 0 {
		return fmt.Errorf("gp fit: %w", touch.ErrInsufficientData)
	}
	if err := touch.ValidateObservations(obs); err != nil {
		return fmt.Errorf("gp fit: %w", err)
	}

	n := len(obs)
	g.train = make([]touch.Point, n)
	offX := mat.NewVecDense(n, nil)
	offY := mat.NewVecDense(n, nil)
	for i, o := range obs {
		g.train[i] = o.Touch
		off := o.Offset()
		offX.SetVec(i, off.X)
		offY.SetVec(i, off.Y)
	}

	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := g.kernel(g.train[i], g.train[j])
			if i == j {
				v += g.noiseVar
			}
			k.SetSym(i, j, v)
		}
	}

	if ok := g.chol.Factorize(k); !ok {
		return fmt.Errorf("gp fit: kernel matrix of %d observations: %w", n, touch.ErrSingularCovariance)
	}

	g.alphaX = mat.NewVecDense(n, nil)
	g.alphaY = mat.NewVecDense(n, nil)
	if err := g.chol.SolveVecTo(g.alphaX, offX); err != nil {
		return fmt.Errorf("gp fit: solve x weights: %w", err)
	}
	if err := g.chol.SolveVecTo(g.alphaY, offY); err != nil {
		return fmt.Errorf("gp fit: solve y weights: %w", err)
	}

	g.fitted = true
	return nil
}

// Predict returns the posterior mean offset per query point and, when
// wantCov is set, the posterior covariance. The posterior variance is
// signalVar + noiseVar - k*' K^-1 k*, identical in both axes.
func (g *GP) Predict(points []touch.Point, wantCov bool) ([]touch.Point, []*mat.SymDense, error) {
	if !g.fitted {
		return nil, nil, fmt.Errorf("gp predict: model not fitted: %w", touch.ErrInsufficientData)
	}

	n := len(g.train)
	means := make([]touch.Point, len(points))
	var covs []*mat.SymDense
	if wantCov {
		covs = make([]*mat.SymDense, len(points))
	}

	kstar := mat.NewVecDense(n, nil)
	v := mat.NewVecDense(n, nil)
	for i, p := range points {
		if !p.Valid() {
			return nil, nil, fmt.Errorf("gp predict: query point %d: %w", i, touch.ErrDimensionMismatch)
		}
		for j := 0; j < n; j++ {
			kstar.SetVec(j, g.kernel(p, g.train[j]))
		}
		means[i] = touch.Point{
			X: mat.Dot(kstar, g.alphaX),
			Y: mat.Dot(kstar, g.alphaY),
		}
		if !wantCov {
			continue
		}
		if err := g.chol.SolveVecTo(v, kstar); err != nil {
			return nil, nil, fmt.Errorf("gp predict: posterior solve at point %d: %w", i, err)
		}
		variance := g.signalVar + g.noiseVar - mat.Dot(kstar, v)
		// Floating-point cancellation can push the variance a hair below
		// zero right on top of a training point.
		if variance < g.noiseVar {
			variance = g.noiseVar
		}
		covs[i] = mat.NewSymDense(2, []float64{variance, 0, 0, variance})
	}

	return means, covs, nil
}
