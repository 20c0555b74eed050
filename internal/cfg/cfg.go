package cfg

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"touchident/internal/common"
)

type Settings struct {
	// Regression hyperparameters
	Gamma          float64
	SignalVariance float64
	NoiseVariance  float64

	// Identification
	CovJitter    float64 // epsilon added to covariance diagonals; 0 = strict singular errors
	Users        []int
	StreamLength int
	Seed         int64

	// Training
	MinObservations int
	TrainSplit      float64

	// System
	DataPath    string
	OutputPath  string
	MetricsPort int
}

type ConfigFile struct {
	Model struct {
		Gamma          float64 `yaml:"gamma"`
		SignalVariance float64 `yaml:"signalVariance"`
		NoiseVariance  float64 `yaml:"noiseVariance"`
	} `yaml:"model"`

	Identify struct {
		CovJitter    float64 `yaml:"covJitter"`
		Users        []int   `yaml:"users"`
		StreamLength int     `yaml:"streamLength"`
		Seed         int64   `yaml:"seed"`
	} `yaml:"identify"`

	Training struct {
		MinObservations int     `yaml:"minObservations"`
		TrainSplit      float64 `yaml:"trainSplit"`
	} `yaml:"training"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		OutputPath  string `yaml:"outputPath"`
		MetricsPort int    `yaml:"metricsPort"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := Settings{
		Gamma:           getFloatFromEnvOrConfig(common.EnvGamma, config.Model.Gamma, common.DefaultGamma),
		SignalVariance:  getFloatFromEnvOrConfig(common.EnvSignalVariance, config.Model.SignalVariance, common.DefaultSignalVariance),
		NoiseVariance:   getFloatFromEnvOrConfig(common.EnvNoiseVariance, config.Model.NoiseVariance, common.DefaultNoiseVariance),
		CovJitter:       getJitterFromEnvOrConfig(config.Identify.CovJitter),
		Users:           getUsersFromEnvOrConfig(config.Identify.Users),
		StreamLength:    getIntFromEnvOrConfig(common.EnvStreamLength, config.Identify.StreamLength, common.DefaultStreamLength),
		Seed:            getInt64FromEnvOrConfig(common.EnvSeed, config.Identify.Seed, common.DefaultSeed),
		MinObservations: getIntFromEnvOrConfig(common.EnvMinObservations, config.Training.MinObservations, common.DefaultMinObservations),
		TrainSplit:      getFloatFromEnvOrConfig(common.EnvTrainSplit, config.Training.TrainSplit, common.DefaultTrainSplit),
		DataPath:        getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		OutputPath:      getStringFromEnvOrConfig(common.EnvOutputPath, config.System.OutputPath, common.DefaultOutputPath),
		MetricsPort:     getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Gamma:           getFloatOrDefault(common.EnvGamma, common.DefaultGamma),
		SignalVariance:  getFloatOrDefault(common.EnvSignalVariance, common.DefaultSignalVariance),
		NoiseVariance:   getFloatOrDefault(common.EnvNoiseVariance, common.DefaultNoiseVariance),
		CovJitter:       getJitterFromEnvOrConfig(common.DefaultCovJitter),
		Users:           parseUsers(os.Getenv(common.EnvUsers), []int{1, 2}),
		StreamLength:    getIntOrDefault(common.EnvStreamLength, common.DefaultStreamLength),
		Seed:            getInt64OrDefault(common.EnvSeed, common.DefaultSeed),
		MinObservations: getIntOrDefault(common.EnvMinObservations, common.DefaultMinObservations),
		TrainSplit:      getFloatOrDefault(common.EnvTrainSplit, common.DefaultTrainSplit),
		DataPath:        os.Getenv(common.EnvDataPath), // optional
		OutputPath:      getEnvOrDefault(common.EnvOutputPath, common.DefaultOutputPath),
		MetricsPort:     getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getStringFromEnvOrConfig(key, configValue, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if configValue != "" {
		return configValue
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getInt64FromEnvOrConfig(key string, configValue, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// getJitterFromEnvOrConfig treats jitter separately from the other floats:
// zero is a meaningful value (strict mode), so the env override alone
// distinguishes "unset" from "explicitly zero".
func getJitterFromEnvOrConfig(configValue float64) float64 {
	if v, ok := os.LookupEnv(common.EnvCovJitter); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return configValue
}

func getUsersFromEnvOrConfig(configUsers []int) []int {
	if env := os.Getenv(common.EnvUsers); env != "" {
		return parseUsers(env, configUsers)
	}
	if len(configUsers) > 0 {
		return configUsers
	}
	return []int{1, 2}
}

func parseUsers(v string, def []int) []int {
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	users := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return def
		}
		users = append(users, id)
	}
	return users
}

// validateSettings performs range checks on all configuration values.
func validateSettings(settings *Settings) error {
	if settings.Gamma <= 0 || settings.Gamma > common.MaxGamma {
		return fmt.Errorf("gamma must be between 0 and %g, got %f", common.MaxGamma, settings.Gamma)
	}
	if settings.SignalVariance <= 0 {
		return fmt.Errorf("signal variance must be positive, got %f", settings.SignalVariance)
	}
	if settings.NoiseVariance <= 0 {
		return fmt.Errorf("noise variance must be positive, got %f", settings.NoiseVariance)
	}
	if settings.CovJitter < 0 || settings.CovJitter > common.MaxCovJitter {
		return fmt.Errorf("covariance jitter must be between 0 and %g, got %g", common.MaxCovJitter, settings.CovJitter)
	}

	if len(settings.Users) < 2 {
		return fmt.Errorf("at least two candidate users must be specified, got %d", len(settings.Users))
	}
	sorted := append([]int(nil), settings.Users...)
	sort.Ints(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return fmt.Errorf("duplicate candidate user id %d", sorted[i])
		}
	}

	if settings.StreamLength <= 0 || settings.StreamLength > common.MaxStreamLength {
		return fmt.Errorf("stream length must be between 1 and %d, got %d", common.MaxStreamLength, settings.StreamLength)
	}
	if settings.MinObservations <= 0 || settings.MinObservations > common.MaxMinObservations {
		return fmt.Errorf("min observations must be between 1 and %d, got %d", common.MaxMinObservations, settings.MinObservations)
	}
	if settings.TrainSplit <= 0 || settings.TrainSplit >= 1 {
		return fmt.Errorf("train split must be strictly between 0 and 1, got %f", settings.TrainSplit)
	}
	if settings.MetricsPort < common.MinMetricsPort || settings.MetricsPort > common.MaxMetricsPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinMetricsPort, common.MaxMetricsPort, settings.MetricsPort)
	}

	return nil
}
