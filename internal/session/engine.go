package session

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"touchident/internal/cfg"
	"touchident/internal/ident"
	"touchident/internal/metrics"
	"touchident/internal/predict"
	"touchident/internal/regress"
	"touchident/internal/storage"
	"touchident/internal/touch"
)

// Engine wires configuration, models and the identification run together
// for one session at a time.
type Engine struct {
	config  *cfg.Settings
	metrics *metrics.Wrapper
	store   *storage.Store // optional; sessions are persisted when set
}

// Result holds the outcome of one identification session.
type Result struct {
	SessionID string
	TrueUser  int
	Users     []int
	Steps     int
	History   [][]float64
	Final     []float64
	TopUser   int
	TopProb   float64
	Correct   bool

	// StepsToHalf and StepsToNinety are the first steps at which the true
	// user's probability exceeded 0.5 and 0.9; -1 if never.
	StepsToHalf   int
	StepsToNinety int

	StartedAt time.Time
	Duration  time.Duration
}

// NewEngine creates a session engine. metrics and store may be nil.
func NewEngine(config *cfg.Settings, m *metrics.Wrapper, store *storage.Store) *Engine {
	return &Engine{config: config, metrics: m, store: store}
}

// FitModels fits one offset model per candidate user from the given
// per-user training sets, in ascending user order. Users with fewer than
// MinObservations observations fail the whole fit: a missing candidate
// would silently skew the identification comparison.
func (e *Engine) FitModels(train map[int][]touch.Observation) ([]predict.Model, error) {
	users := make([]int, 0, len(train))
	for u := range train {
		users = append(users, u)
	}
	sort.Ints(users)

	models := make([]predict.Model, 0, len(users))
	for _, u := range users {
		obs := train[u]
		if len(obs) < e.config.MinObservations {
			return nil, fmt.Errorf("fit models: user %d has %d observations, need %d: %w",
				u, len(obs), e.config.MinObservations, touch.ErrInsufficientData)
		}

		backend := regress.NewGP(e.config.Gamma, e.config.SignalVariance, e.config.NoiseVariance)
		start := time.Now()
		m, err := predict.Fit(u, obs, backend)
		if err != nil {
			return nil, fmt.Errorf("fit models: %w", err)
		}
		if e.metrics != nil {
			e.metrics.ModelFitted(time.Since(start))
		}
		models = append(models, m)
	}

	log.Info().Ints("users", users).Msg("fitted candidate models")
	return models, nil
}

// RunStream replays a touch stream through a fresh identification run over
// the candidate models and returns the session result. trueUser is the
// identity that actually produced the stream, used only for the correctness
// fields of the result.
func (e *Engine) RunStream(models []predict.Model, stream []touch.Observation, trueUser int) (*Result, error) {
	if len(stream) == 0 {
		return nil, fmt.Errorf("run stream: %w", touch.ErrEmptyInput)
	}

	var sink ident.MetricsSink
	if e.metrics != nil {
		sink = e.metrics
		e.metrics.SessionStarted()
	}
	run, err := ident.NewRunWithMetrics(models, ident.NewScorer(e.config.CovJitter), sink)
	if err != nil {
		return nil, fmt.Errorf("run stream: %w", err)
	}

	started := time.Now()
	result := &Result{
		SessionID:     fmt.Sprintf("session-%d", started.UnixNano()),
		TrueUser:      trueUser,
		Users:         run.Users(),
		StartedAt:     started,
		StepsToHalf:   -1,
		StepsToNinety: -1,
	}

	trueIdx := -1
	for k, u := range result.Users {
		if u == trueUser {
			trueIdx = k
		}
	}

	for i, o := range stream {
		probs, err := run.Step(o.Touch, o.Target)
		if err != nil {
			if e.metrics != nil && errors.Is(err, touch.ErrSingularCovariance) {
				e.metrics.SingularCovarianceInc()
			}
			return nil, fmt.Errorf("run stream: step %d: %w", i, err)
		}
		if trueIdx >= 0 {
			if result.StepsToHalf < 0 && probs[trueIdx] > 0.5 {
				result.StepsToHalf = i + 1
			}
			if result.StepsToNinety < 0 && probs[trueIdx] > 0.9 {
				result.StepsToNinety = i + 1
			}
		}
	}

	if e.metrics != nil {
		e.metrics.PredictionsAdd(float64(len(stream) * len(models)))
	}

	result.Steps = run.Steps()
	result.History = run.History()
	result.Final = run.Probabilities()
	result.TopUser, result.TopProb = run.Top()
	result.Correct = result.TopUser == trueUser
	result.Duration = time.Since(started)

	log.Info().
		Int("steps", result.Steps).
		Int("top_user", result.TopUser).
		Float64("top_prob", result.TopProb).
		Bool("correct", result.Correct).
		Dur("duration", result.Duration).
		Msg("identification session finished")

	if e.store != nil {
		rec := storage.SessionRecord{
			ID:        result.SessionID,
			TrueUser:  result.TrueUser,
			Users:     result.Users,
			Steps:     result.Steps,
			Final:     result.Final,
			History:   result.History,
			TopUser:   result.TopUser,
			TopProb:   result.TopProb,
			Correct:   result.Correct,
			StartedAt: result.StartedAt,
		}
		if err := e.store.StoreSession(rec); err != nil {
			log.Warn().Err(err).Str("session", result.SessionID).Msg("failed to persist session record")
		}
	}

	return result, nil
}
