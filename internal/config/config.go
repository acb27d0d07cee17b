package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Default simulation parameters. They match the env-default tags on SimConfig.
const (
	DefaultSensitivity = 0.15
	DefaultFPS         = 25.0
	DefaultEpsilon     = 1e-3
	DefaultEnvironment = "development"
)

// SimConfig holds the simulation and output settings. Every field may come
// from a config file (json, yaml, toml, edn or .env), from DVSIM_* environment
// variables, or from the command line; the CLI applies explicitly set flags
// last.
type SimConfig struct {
	// Environment selects the logger flavour ("development" or "production").
	Environment string `json:"environment" yaml:"environment" toml:"environment" env:"DVSIM_ENVIRONMENT" env-default:"development"`

	// Sensitivity is the log-intensity contrast threshold C shared by all pixels.
	Sensitivity float64 `json:"sensitivity" yaml:"sensitivity" toml:"sensitivity" env:"DVSIM_C" env-default:"0.15"`

	// StartTime is the timestamp of the first frame in microseconds.
	StartTime int64 `json:"start_time" yaml:"start_time" toml:"start_time" env:"DVSIM_START_TIME" env-default:"0"`

	// FPS is the frame rate used to space consecutive frames.
	FPS float64 `json:"fps" yaml:"fps" toml:"fps" env:"DVSIM_FPS" env-default:"25"`

	// Epsilon is added to pixel values before taking the logarithm.
	Epsilon float64 `json:"epsilon" yaml:"epsilon" toml:"epsilon" env:"DVSIM_EPSILON" env-default:"0.001"`

	// Format forces the output container; empty selects it from the extension.
	Format string `json:"format" yaml:"format" toml:"format" env:"DVSIM_FORMAT"`

	// ThresholdsPath points at a CSV matrix of per-pixel thresholds.
	ThresholdsPath string `json:"thresholds" yaml:"thresholds" toml:"thresholds" env:"DVSIM_THRESHOLDS"`

	// Verbose enables debug logging.
	Verbose bool `json:"verbose" yaml:"verbose" toml:"verbose" env:"DVSIM_VERBOSE"`
}

// DefaultSimConfig returns the built-in defaults without consulting the
// environment.
func DefaultSimConfig() *SimConfig {
	return &SimConfig{
		Environment: DefaultEnvironment,
		Sensitivity: DefaultSensitivity,
		FPS:         DefaultFPS,
		Epsilon:     DefaultEpsilon,
	}
}

// LoadSimConfig reads the configuration like ReadSimConfig and validates it.
func LoadSimConfig(path string) (*SimConfig, error) {
	cfg, err := ReadSimConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ReadSimConfig reads path (when non-empty) and then the environment into a
// SimConfig without validating it, so callers can layer further overrides
// before calling Validate. Fields missing from both fall back to their
// defaults.
//
// The file is read from the OS filesystem because cleanenv takes a path.
func ReadSimConfig(path string) (*SimConfig, error) {
	var cfg SimConfig
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("could not read environment: %w", err)
		}
		return &cfg, nil
	}

	cleanPath := filepath.Clean(path)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}
	if err := cleanenv.ReadConfig(cleanPath, &cfg); err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *SimConfig) Validate() error {
	if c.Sensitivity <= 0 {
		return fmt.Errorf("sensitivity must be positive, got %g", c.Sensitivity)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %g", c.FPS)
	}
	if c.StartTime < 0 {
		return fmt.Errorf("start_time must be non-negative, got %d", c.StartTime)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be positive, got %g", c.Epsilon)
	}
	switch strings.ToLower(c.Format) {
	case "", "pb", "csv", "sqlite":
	default:
		return fmt.Errorf("unknown format %q (want pb, csv or sqlite)", c.Format)
	}
	return nil
}

// GetStartTime returns StartTime as an unsigned microsecond timestamp.
func (c *SimConfig) GetStartTime() uint64 {
	if c.StartTime < 0 {
		return 0
	}
	return uint64(c.StartTime)
}

// GetEnvironment returns the environment or the default.
func (c *SimConfig) GetEnvironment() string {
	if c.Environment == "" {
		return DefaultEnvironment
	}
	return c.Environment
}
