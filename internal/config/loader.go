package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/hypnoticwarchief/cratex/internal/kvstore"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

// Load reads and parses the configuration file and environment variables.
// A missing file yields the defaults.
func Load(configPath string) (*Config, *Secrets, error) {
	var cfg Config

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.ValidateInputs(); err != nil {
		return nil, nil, fmt.Errorf("input validation failed: %w", err)
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return &cfg, secrets, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Backend.URL == "" && !cfg.Backend.Offline {
		cfg.Backend.URL = DefaultBackendURL
	}
	if cfg.Backend.TimeoutSeconds == 0 {
		cfg.Backend.TimeoutSeconds = 3
	}

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = defaultDataDir()
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = kvstore.DriverSQLite
	}
	if cfg.Storage.Path == "" {
		switch cfg.Storage.Driver {
		case kvstore.DriverSQLite:
			cfg.Storage.Path = filepath.Join(cfg.Storage.DataDir, "cratex.db")
		case kvstore.DriverFile:
			cfg.Storage.Path = filepath.Join(cfg.Storage.DataDir, "state.json")
		}
	}

	if cfg.Simulation.ExecuteSeconds == 0 {
		cfg.Simulation.ExecuteSeconds = 25.5
	}
	if cfg.Simulation.TimeScale == 0 {
		cfg.Simulation.TimeScale = 1.0
	}
	if cfg.Simulation.DefaultWorkers == 0 {
		cfg.Simulation.DefaultWorkers = models.DefaultWorkers
	}
	if cfg.Simulation.DefaultBatch == 0 {
		cfg.Simulation.DefaultBatch = models.DefaultBatchSize
	}

	if cfg.Dashboard.PollIntervalMS == 0 {
		cfg.Dashboard.PollIntervalMS = 1000
	}
	if cfg.Dashboard.DefaultPath == "" {
		cfg.Dashboard.DefaultPath = DefaultLibraryPath
	}

	if cfg.Agent.BaseURL == "" {
		cfg.Agent.BaseURL = DefaultAgentBaseURL
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = string(models.DefaultModel)
	}
	if cfg.Agent.RequestsPerMinute == 0 {
		cfg.Agent.RequestsPerMinute = 30
	}
	if cfg.Agent.TimeoutSeconds == 0 {
		cfg.Agent.TimeoutSeconds = 60
	}
	if cfg.Agent.RateLimitWindowSeconds == 0 {
		cfg.Agent.RateLimitWindowSeconds = 60
	}
	if cfg.Agent.RateLimitMaxRequests == 0 {
		cfg.Agent.RateLimitMaxRequests = 10
	}

	if cfg.Spotify.BaseURL == "" {
		cfg.Spotify.BaseURL = DefaultSpotifyBaseURL
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8000"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.Storage.DataDir, "cratex.log")
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".cratex"
	}
	return filepath.Join(home, ".cratex")
}
