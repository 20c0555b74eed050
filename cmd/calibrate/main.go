package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"touchident/internal/cfg"
	"touchident/internal/metrics"
	"touchident/internal/predict"
	"touchident/internal/regress"
	"touchident/internal/session"
	"touchident/internal/storage"
	"touchident/internal/touch"
)

// calibrate fits an offset model per configured user and reports how much
// each model reduces RMS targeting error on a held-out split.
func main() {
	var (
		trainSize = flag.Int("train", 250, "Synthetic observations per user when none are stored")
		logLevel  = flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	)
	flag.Parse()

	_ = godotenv.Load()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	mw := metrics.NewWrapper(metrics.New())

	var store *storage.Store
	if c.DataPath != "" {
		store, err = storage.New(c.DataPath)
		if err != nil {
			log.Warn().Err(err).Str("path", c.DataPath).Msg("storage unavailable, using synthetic data only")
			store = nil
		} else {
			defer store.Close()
		}
	}

	sampler := session.NewSampler(c.Seed, 0)

	fmt.Println("=== Calibration Report ===")
	fmt.Printf("%-8s %-8s %-8s %s\n", "user", "train", "test", "improvement")

	failed := false
	for _, user := range c.Users {
		improvement, nTrain, nTest, err := calibrateUser(c, store, sampler, user, *trainSize)
		if err != nil {
			log.Error().Err(err).Int("user", user).Msg("calibration failed")
			failed = true
			continue
		}
		mw.ImprovementObserve(improvement)
		fmt.Printf("%-8d %-8d %-8d %+.2f%%\n", user, nTrain, nTest, improvement)
	}

	if failed {
		os.Exit(1)
	}
}

func calibrateUser(c cfg.Settings, store *storage.Store, sampler *session.Sampler, user, trainSize int) (improvement float64, nTrain, nTest int, err error) {
	var obs []touch.Observation
	if store != nil {
		obs, err = store.GetObservations(user)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("load observations: %w", err)
		}
	}
	if len(obs) < c.MinObservations {
		obs = sampler.TrainingObservations(user, trainSize)
	}

	split := int(float64(len(obs)) * c.TrainSplit)
	if split < 1 || split >= len(obs) {
		return 0, 0, 0, fmt.Errorf("user %d: %d observations cannot be split for evaluation: %w",
			user, len(obs), touch.ErrInsufficientData)
	}
	train, test := obs[:split], obs[split:]

	backend := regress.NewGP(c.Gamma, c.SignalVariance, c.NoiseVariance)
	model, err := predict.Fit(user, train, backend)
	if err != nil {
		return 0, 0, 0, err
	}

	improvement, err = predict.ImprovementPercent(test, model)
	if err != nil {
		return 0, 0, 0, err
	}
	return improvement, len(train), len(test), nil
}
