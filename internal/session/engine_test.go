package session

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touchident/internal/cfg"
	"touchident/internal/storage"
	"touchident/internal/touch"
)

func testSettings() *cfg.Settings {
	return &cfg.Settings{
		Gamma:           40.0,
		SignalVariance:  0.01,
		NoiseVariance:   1e-4,
		CovJitter:       1e-9,
		Users:           []int{1, 2},
		StreamLength:    40,
		Seed:            1,
		MinObservations: 8,
		TrainSplit:      0.8,
		OutputPath:      "results",
		MetricsPort:     8080,
	}
}

// biasedGrid builds noiseless training data for a user whose targets sit at
// touch+bias everywhere.
func biasedGrid(user int, bias touch.Point) []touch.Observation {
	obs := make([]touch.Observation, 0, 25)
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			p := touch.Point{X: 0.1 + 0.2*float64(i), Y: 0.1 + 0.2*float64(j)}
			obs = append(obs, touch.Observation{User: user, Touch: p, Target: p.Add(bias)})
		}
	}
	return obs
}

func TestEngine_FitModels(t *testing.T) {
	t.Parallel()

	engine := NewEngine(testSettings(), nil, nil)
	train := map[int][]touch.Observation{
		2: biasedGrid(2, touch.Point{X: -0.03, Y: 0.01}),
		1: biasedGrid(1, touch.Point{X: 0.03}),
	}

	models, err := engine.FitModels(train)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, 1, models[0].User(), "models must come back in ascending user order")
	assert.Equal(t, 2, models[1].User())
}

func TestEngine_FitModels_TooFewObservations(t *testing.T) {
	t.Parallel()

	engine := NewEngine(testSettings(), nil, nil)
	train := map[int][]touch.Observation{
		1: biasedGrid(1, touch.Point{X: 0.03}),
		2: biasedGrid(2, touch.Point{})[:3],
	}

	_, err := engine.FitModels(train)
	require.Error(t, err)
	assert.True(t, errors.Is(err, touch.ErrInsufficientData), "expected ErrInsufficientData, got %v", err)
}

func TestEngine_RunStream_EmptyStream(t *testing.T) {
	t.Parallel()

	engine := NewEngine(testSettings(), nil, nil)
	_, err := engine.RunStream(nil, nil, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, touch.ErrEmptyInput))
}

func TestEngine_IdentifiesTrueUser(t *testing.T) {
	t.Parallel()

	engine := NewEngine(testSettings(), nil, nil)
	biases := map[int]touch.Point{
		1: {X: 0.03, Y: 0.0},
		2: {X: -0.03, Y: 0.01},
	}
	train := map[int][]touch.Observation{
		1: biasedGrid(1, biases[1]),
		2: biasedGrid(2, biases[2]),
	}
	models, err := engine.FitModels(train)
	require.NoError(t, err)

	// A stream that follows user 1's bias exactly.
	stream := make([]touch.Observation, 40)
	for i := range stream {
		p := touch.Point{X: 0.15 + 0.017*float64(i), Y: 0.2 + 0.015*float64(i)}
		stream[i] = touch.Observation{User: 1, Touch: p, Target: p.Add(biases[1])}
	}

	result, err := engine.RunStream(models, stream, 1)
	require.NoError(t, err)

	assert.True(t, result.Correct)
	assert.Equal(t, 1, result.TopUser)
	assert.Greater(t, result.TopProb, 0.99)
	assert.Equal(t, 40, result.Steps)
	assert.Len(t, result.History, 40)
	assert.Equal(t, []int{1, 2}, result.Users)
	require.GreaterOrEqual(t, result.StepsToHalf, 1, "true user never passed 0.5")
	require.GreaterOrEqual(t, result.StepsToNinety, result.StepsToHalf)

	sum := 0.0
	for _, p := range result.Final {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9, "final belief not normalized")
	for _, probs := range result.History {
		for _, p := range probs {
			assert.False(t, math.IsNaN(p), "NaN probability in history")
		}
	}
}

func TestEngine_PersistsSession(t *testing.T) {
	t.Parallel()

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	engine := NewEngine(testSettings(), nil, store)
	train := map[int][]touch.Observation{
		1: biasedGrid(1, touch.Point{X: 0.03}),
		2: biasedGrid(2, touch.Point{X: -0.03}),
	}
	models, err := engine.FitModels(train)
	require.NoError(t, err)

	stream := biasedGrid(1, touch.Point{X: 0.03})[:10]
	before := time.Now().Add(-time.Minute)
	result, err := engine.RunStream(models, stream, 1)
	require.NoError(t, err)

	sessions, err := store.GetSessions(before, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, result.SessionID, sessions[0].ID)
	assert.Equal(t, result.TopUser, sessions[0].TopUser)
	assert.Equal(t, result.Steps, sessions[0].Steps)
	assert.Equal(t, result.Correct, sessions[0].Correct)
}
