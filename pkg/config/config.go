// Package config loads runtime configuration from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrParsingConfig is returned when environment variables can't be parsed into a Config.
var ErrParsingConfig = errors.New("failed to parse environment variables into config")

// Config holds settings shared by the command line tools.
type Config struct {
	// Where downloaded dataset files are cached. Defaults to os.TempDir().
	CacheDir string `env:"DATASET_CACHE_DIR"`

	// Where bundled dataset files live.
	DataDir string `env:"LAMBADA_DATA_DIR" envDefault:"data"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"INFO"`
	Offline       bool   `env:"LAMBADA_OFFLINE"`
	FetchAttempts int    `env:"LAMBADA_FETCH_ATTEMPTS" envDefault:"3"`

	MySQLDSN           string `env:"MYSQL_DSN"`
	TurbopufferAPIKey  string `env:"TURBOPUFFER_API_KEY"`
	TurbopufferBaseURL string `env:"TURBOPUFFER_BASE_URL" envDefault:"https://gcp-us-central1.turbopuffer.com"`
}

// Load reads the configuration from the environment. Variables already set in
// the environment take precedence over those in envFiles. Without envFiles, a
// .env file in the working directory is loaded if present.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load() // .env is optional
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, fmt.Errorf("loading env files %v: %w", envFiles, err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = os.TempDir()
	}
	if cfg.FetchAttempts < 1 {
		return Config{}, fmt.Errorf("%w: LAMBADA_FETCH_ATTEMPTS must be positive, got %d", ErrParsingConfig, cfg.FetchAttempts)
	}
	return cfg, nil
}
