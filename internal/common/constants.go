package common

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvGamma           = "GAMMA"
	EnvSignalVariance  = "SIGNAL_VARIANCE"
	EnvNoiseVariance   = "NOISE_VARIANCE"
	EnvCovJitter       = "COV_JITTER"
	EnvMinObservations = "MIN_OBSERVATIONS"
	EnvTrainSplit      = "TRAIN_SPLIT"
	EnvDataPath        = "DATA_PATH"
	EnvOutputPath      = "OUTPUT_PATH"
	EnvMetricsPort     = "METRICS_PORT"
	EnvUsers           = "USERS"
	EnvStreamLength    = "STREAM_LENGTH"
	EnvSeed            = "SEED"
)

// Configuration defaults
const (
	DefaultGamma           = 40.0
	DefaultSignalVariance  = 0.01
	DefaultNoiseVariance   = 1e-4
	DefaultCovJitter       = 1e-9
	DefaultMinObservations = 8
	DefaultTrainSplit      = 0.8
	DefaultOutputPath      = "results"
	DefaultMetricsPort     = 8080
	DefaultStreamLength    = 100
	DefaultSeed            = 1
)

// Validation bounds
const (
	MaxGamma           = 1e6
	MaxCovJitter       = 1e-3
	MaxMinObservations = 100000
	MaxStreamLength    = 1000000
	MinMetricsPort     = 1024
	MaxMetricsPort     = 65535
)
