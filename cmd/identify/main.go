package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"touchident/internal/cfg"
	"touchident/internal/metrics"
	"touchident/internal/predict"
	"touchident/internal/session"
	"touchident/internal/storage"
	"touchident/internal/touch"
)

func main() {
	var (
		trueUser     = flag.Int("user", 0, "True user producing the stream (0 = first configured user)")
		steps        = flag.Int("steps", 0, "Stream length (0 = use configured value)")
		trainSize    = flag.Int("train", 200, "Synthetic training observations per user when none are stored")
		outputPath   = flag.String("output", "", "Output directory for reports (overrides config)")
		logLevel     = flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
		serveMetrics = flag.Bool("metrics", false, "Serve Prometheus metrics while running")
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
	if *steps > 0 {
		c.StreamLength = *steps
	}
	if *outputPath != "" {
		c.OutputPath = *outputPath
	}
	if *trueUser == 0 {
		*trueUser = c.Users[0]
	}

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	if *serveMetrics {
		addr := fmt.Sprintf(":%d", c.MetricsPort)
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
		log.Info().Str("addr", addr).Msg("serving metrics")
	}

	store := openStore(c)
	if store != nil {
		defer store.Close()
	}

	sampler := session.NewSampler(c.Seed, 0)
	train, err := trainingData(c, store, sampler, *trainSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble training data")
	}

	engine := session.NewEngine(&c, mw, store)
	models, err := engine.FitModels(train)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to fit candidate models")
	}

	var trueModel predict.Model
	for _, mdl := range models {
		if mdl.User() == *trueUser {
			trueModel = mdl
		}
	}
	if trueModel == nil {
		log.Fatal().Int("user", *trueUser).Msg("true user is not among the configured candidates")
	}

	stream, err := sampler.StreamFromModel(trueModel, c.StreamLength)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sample touch stream")
	}

	result, err := engine.RunStream(models, stream, *trueUser)
	if err != nil {
		log.Fatal().Err(err).Msg("identification session failed")
	}

	if err := session.NewReporter(result, c.OutputPath).GenerateReport(); err != nil {
		log.Fatal().Err(err).Msg("failed to write report")
	}

	fmt.Printf("=== Identification Result ===\n")
	fmt.Printf("True user:     %d\n", result.TrueUser)
	fmt.Printf("Top candidate: %d (p=%.4f)\n", result.TopUser, result.TopProb)
	fmt.Printf("Correct:       %t after %d steps\n", result.Correct, result.Steps)
	fmt.Printf("Report:        %s\n", c.OutputPath)
}

func openStore(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Str("path", c.DataPath).Msg("storage unavailable, continuing without persistence")
		return nil
	}
	return store
}

// trainingData returns per-user training sets: stored observations when
// present, synthetic ones otherwise (persisted for reuse when a store is
// open).
func trainingData(c cfg.Settings, store *storage.Store, sampler *session.Sampler, trainSize int) (map[int][]touch.Observation, error) {
	train := make(map[int][]touch.Observation, len(c.Users))
	for _, user := range c.Users {
		var obs []touch.Observation
		if store != nil {
			stored, err := store.GetObservations(user)
			if err != nil {
				return nil, fmt.Errorf("load observations for user %d: %w", user, err)
			}
			obs = stored
		}
		if len(obs) < c.MinObservations {
			if trainSize <= 0 {
				return nil, fmt.Errorf("user %d: %d stored observations, need %d: %w",
					user, len(obs), c.MinObservations, touch.ErrInsufficientData)
			}
			obs = sampler.TrainingObservations(user, trainSize)
			log.Debug().Int("user", user).Int("n", trainSize).Msg("generated synthetic training data")
			if store != nil {
				if err := store.StoreObservations(user, obs); err != nil {
					log.Warn().Err(err).Int("user", user).Msg("failed to persist synthetic observations")
				}
			}
		}
		train[user] = obs
	}
	return train, nil
}
