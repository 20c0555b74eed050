package predict

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"touchident/internal/regress"
	"touchident/internal/touch"
)

// stubBackend returns a fixed offset for every query.
type stubBackend struct {
	offset touch.Point
	fitErr error
	fitted bool
}

func (s *stubBackend) Fit(obs []touch.Observation) error {
	if s.fitErr != nil {
		return s.fitErr
	}
	s.fitted = true
	return nil
}

func (s *stubBackend) Predict(points []touch.Point, wantCov bool) ([]touch.Point, []*mat.SymDense, error) {
	means := make([]touch.Point, len(points))
	covs := make([]*mat.SymDense, len(points))
	for i := range points {
		means[i] = s.offset
		covs[i] = mat.NewSymDense(2, []float64{1e-4, 0, 0, 1e-4})
	}
	return means, covs, nil
}

func obsWithOffset(user, n int, off touch.Point) []touch.Observation {
	obs := make([]touch.Observation, n)
	for i := range obs {
		p := touch.Point{X: float64(i) / float64(n), Y: 0.5}
		obs[i] = touch.Observation{User: user, Touch: p, Target: p.Add(off)}
	}
	return obs
}

func TestFit_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Fit(1, nil, &stubBackend{}); !errors.Is(err, touch.ErrInsufficientData) {
		t.Errorf("empty observations: expected ErrInsufficientData, got %v", err)
	}

	mixed := obsWithOffset(2, 3, touch.Point{})
	if _, err := Fit(1, mixed, &stubBackend{}); err == nil {
		t.Error("expected error fitting user 1 on user 2's observations")
	}

	wantErr := errors.New("backend exploded")
	if _, err := Fit(1, obsWithOffset(1, 3, touch.Point{}), &stubBackend{fitErr: wantErr}); !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped backend error, got %v", err)
	}
}

func TestUserModel_Predict(t *testing.T) {
	t.Parallel()

	off := touch.Point{X: 0.01, Y: -0.02}
	m, err := Fit(7, obsWithOffset(7, 5, off), &stubBackend{offset: off})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if m.User() != 7 {
		t.Errorf("User() = %d, want 7", m.User())
	}

	preds, err := m.Predict([]touch.Point{{X: 0.5, Y: 0.5}, {X: 0.1, Y: 0.9}})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(preds) != 2 {
		t.Fatalf("got %d predictions, want 2", len(preds))
	}
	for i, p := range preds {
		if p.Offset != off {
			t.Errorf("prediction %d: offset %v, want %v", i, p.Offset, off)
		}
		if p.Cov == nil {
			t.Errorf("prediction %d: missing covariance", i)
		}
	}
}

func TestImprovementPercent_EmptyInput(t *testing.T) {
	t.Parallel()

	m, _ := Fit(1, obsWithOffset(1, 3, touch.Point{}), &stubBackend{})
	_, err := ImprovementPercent(nil, m)
	if !errors.Is(err, touch.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestImprovementPercent_IdentityPredictorIsZero(t *testing.T) {
	t.Parallel()

	// Zero predicted offset leaves touches unchanged: improvement must be
	// exactly zero, not merely close.
	m, _ := Fit(1, obsWithOffset(1, 3, touch.Point{}), &stubBackend{})
	test := obsWithOffset(1, 10, touch.Point{X: 0.03, Y: 0.01})
	got, err := ImprovementPercent(test, m)
	if err != nil {
		t.Fatalf("improvement: %v", err)
	}
	if got != 0 {
		t.Errorf("identity predictor improvement = %g, want exactly 0", got)
	}
}

func TestImprovementPercent_PerfectAndHarmful(t *testing.T) {
	t.Parallel()

	off := touch.Point{X: 0.03, Y: 0.01}
	test := obsWithOffset(1, 10, off)

	perfect, _ := Fit(1, obsWithOffset(1, 3, off), &stubBackend{offset: off})
	got, err := ImprovementPercent(test, perfect)
	if err != nil {
		t.Fatalf("improvement: %v", err)
	}
	if math.Abs(got-100) > 1e-9 {
		t.Errorf("perfect predictor improvement = %g, want 100", got)
	}

	// Correcting in the wrong direction must yield a negative number,
	// reported without clamping.
	harmful, _ := Fit(1, obsWithOffset(1, 3, off), &stubBackend{offset: touch.Point{X: -off.X, Y: -off.Y}})
	got, err = ImprovementPercent(test, harmful)
	if err != nil {
		t.Fatalf("improvement: %v", err)
	}
	if got >= 0 {
		t.Errorf("harmful predictor improvement = %g, want negative", got)
	}
}

func TestImprovementPercent_ZeroRawError(t *testing.T) {
	t.Parallel()

	m, _ := Fit(1, obsWithOffset(1, 3, touch.Point{}), &stubBackend{})
	test := obsWithOffset(1, 5, touch.Point{})
	got, err := ImprovementPercent(test, m)
	if err != nil {
		t.Fatalf("improvement: %v", err)
	}
	if got != 0 {
		t.Errorf("improvement on perfect raw data = %g, want 0", got)
	}
}

func TestImprovementPercent_WithGPBackend(t *testing.T) {
	t.Parallel()

	// End-to-end over the real backend: a consistent bias should be mostly
	// corrected on held-out data.
	off := touch.Point{X: 0.02, Y: -0.01}
	train := make([]touch.Observation, 0, 25)
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			p := touch.Point{X: 0.1 + 0.2*float64(i), Y: 0.1 + 0.2*float64(j)}
			train = append(train, touch.Observation{User: 3, Touch: p, Target: p.Add(off)})
		}
	}
	m, err := Fit(3, train, regress.NewGP(0, 0, 0))
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	test := []touch.Observation{
		{User: 3, Touch: touch.Point{X: 0.25, Y: 0.35}, Target: touch.Point{X: 0.27, Y: 0.34}},
		{User: 3, Touch: touch.Point{X: 0.65, Y: 0.55}, Target: touch.Point{X: 0.67, Y: 0.54}},
		{User: 3, Touch: touch.Point{X: 0.45, Y: 0.75}, Target: touch.Point{X: 0.47, Y: 0.74}},
	}
	got, err := ImprovementPercent(test, m)
	if err != nil {
		t.Fatalf("improvement: %v", err)
	}
	if got < 50 {
		t.Errorf("improvement = %.2f%%, expected the bias to be mostly corrected", got)
	}
}
