package predict

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"touchident/internal/regress"
	"touchident/internal/touch"
)

// UserModel is an offset predictor fitted to one user's observations.
// It is immutable after Fit: there are no online updates, and a fitted
// model can serve any number of Predict calls.
type UserModel struct {
	user    int
	backend regress.Backend
}

// Fit trains a model for the given user on its observations. The backend
// instance becomes owned by the returned model and must not be refitted or
// shared. Observations belonging to a different user are rejected early,
// since mixing users silently corrupts the likelihood comparison downstream.
func Fit(user int, obs []touch.Observation, backend regress.Backend) (*UserModel, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("fit user %d: %w", user, touch.ErrInsufficientData)
	}
	for i, o := range obs {
		if o.User != user {
			return nil, fmt.Errorf("fit user %d: observation %d belongs to user %d", user, i, o.User)
		}
	}

	if err := backend.Fit(obs); err != nil {
		return nil, fmt.Errorf("fit user %d: %w", user, err)
	}

	log.Debug().Int("user", user).Int("observations", len(obs)).Msg("fitted offset model")
	return &UserModel{user: user, backend: backend}, nil
}

// User returns the identity the model was fitted for.
func (m *UserModel) User() int { return m.user }

// Predict returns the predicted offset and covariance for each query touch.
func (m *UserModel) Predict(points []touch.Point) ([]Prediction, error) {
	means, covs, err := m.backend.Predict(points, true)
	if err != nil {
		return nil, fmt.Errorf("predict user %d: %w", m.user, err)
	}
	preds := make([]Prediction, len(points))
	for i := range points {
		preds[i] = Prediction{Offset: means[i], Cov: covs[i]}
	}
	return preds, nil
}
