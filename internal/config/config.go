package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hypnoticwarchief/cratex/internal/kvstore"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

// Config represents the complete application configuration
type Config struct {
	Backend    BackendConfig    `toml:"backend"`
	Storage    StorageConfig    `toml:"storage"`
	Simulation SimulationConfig `toml:"simulation"`
	Dashboard  DashboardConfig  `toml:"dashboard"`
	Agent      AgentConfig      `toml:"agent"`
	Spotify    SpotifyConfig    `toml:"spotify"`
	Server     ServerConfig     `toml:"server"`
	Logging    LoggingConfig    `toml:"logging"`
}

// BackendConfig points at the remote sorter
type BackendConfig struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"` // per request (default 3)
	Offline        bool   `toml:"offline"`         // never contact the backend
}

// StorageConfig selects the local key-value store
type StorageConfig struct {
	Driver  string `toml:"driver"`   // memory, file or sqlite (default sqlite)
	Path    string `toml:"path"`     // defaults inside data_dir
	DataDir string `toml:"data_dir"` // default ~/.cratex
}

// SimulationConfig tunes the offline engine
type SimulationConfig struct {
	Seed           uint64  `toml:"seed"`            // 0 picks a random seed
	ExecuteSeconds float64 `toml:"execute_seconds"` // default 25.5
	TimeScale      float64 `toml:"time_scale"`      // multiplies every delay (default 1.0)
	DefaultWorkers int     `toml:"default_workers"` // default 4
	DefaultBatch   int     `toml:"default_batch"`   // default 20
	DisableFanOut  bool    `toml:"disable_fan_out"` // suppress worker chatter by default
}

// DashboardConfig holds controller settings
type DashboardConfig struct {
	PollIntervalMS int    `toml:"poll_interval_ms"` // default 1000
	DefaultPath    string `toml:"default_path"`     // default /Volumes/Music/Unsorted
}

// AgentConfig configures the assistant transport
type AgentConfig struct {
	BaseURL                string `toml:"base_url"`
	Model                  string `toml:"model"`
	RequestsPerMinute      int    `toml:"requests_per_minute"` // pacing per model (default 30)
	TimeoutSeconds         int    `toml:"timeout_seconds"`     // default 60
	RateLimitWindowSeconds int    `toml:"rate_limit_window_seconds"`
	RateLimitMaxRequests   int    `toml:"rate_limit_max_requests"`
}

// SpotifyConfig configures playlist export
type SpotifyConfig struct {
	BaseURL string `toml:"base_url"`
}

// ServerConfig configures the development backend
type ServerConfig struct {
	Listen string `toml:"listen"` // default :8000
}

// LoggingConfig configures the process logger
type LoggingConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
	File  string `toml:"file"`  // JSON log file; "-" disables
}

// Secrets holds credentials read from the environment
type Secrets struct {
	// APIKey is the system credential for the assistant
	APIKey string
	// Deployed lets the system credential bypass the rate limiter
	Deployed     bool
	SpotifyToken string
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Backend.Offline && c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required unless backend.offline is set")
	}
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("backend.timeout_seconds must be non-negative")
	}

	switch c.Storage.Driver {
	case kvstore.DriverMemory, kvstore.DriverFile, kvstore.DriverSQLite:
	default:
		return fmt.Errorf("storage.driver must be one of %s, %s, %s (got %q)",
			kvstore.DriverMemory, kvstore.DriverFile, kvstore.DriverSQLite, c.Storage.Driver)
	}

	if c.Simulation.ExecuteSeconds <= 0 {
		return fmt.Errorf("simulation.execute_seconds must be positive")
	}
	if c.Simulation.TimeScale <= 0 {
		return fmt.Errorf("simulation.time_scale must be positive")
	}
	if c.Simulation.DefaultWorkers < 1 || c.Simulation.DefaultWorkers > 64 {
		return fmt.Errorf("simulation.default_workers must be between 1 and 64 (got %d)", c.Simulation.DefaultWorkers)
	}
	if c.Simulation.DefaultBatch < 1 {
		return fmt.Errorf("simulation.default_batch must be at least 1")
	}

	if c.Dashboard.PollIntervalMS < 100 {
		return fmt.Errorf("dashboard.poll_interval_ms must be at least 100 (got %d)", c.Dashboard.PollIntervalMS)
	}

	if _, ok := models.ParseModel(c.Agent.Model); !ok {
		return fmt.Errorf("agent.model %q is not a known model", c.Agent.Model)
	}
	if c.Agent.RequestsPerMinute < 0 {
		return fmt.Errorf("agent.requests_per_minute must be non-negative")
	}
	if c.Agent.RateLimitMaxRequests < 1 || c.Agent.RateLimitWindowSeconds < 1 {
		return fmt.Errorf("agent rate limit window and max requests must be positive")
	}

	return nil
}

// BackendTimeout returns the per-request backend timeout
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// PollInterval returns the dashboard polling interval
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Dashboard.PollIntervalMS) * time.Millisecond
}

// ExecuteDuration returns the simulated execution length
func (c *Config) ExecuteDuration() time.Duration {
	return time.Duration(c.Simulation.ExecuteSeconds * float64(time.Second))
}

// RateLimitWindow returns the assistant's sliding window
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.Agent.RateLimitWindowSeconds) * time.Second
}

// AgentTimeout returns the assistant HTTP timeout
func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.Agent.TimeoutSeconds) * time.Second
}

// DryRunDefaults returns the dry run configuration used when none is given
func (c *Config) DryRunDefaults() models.DryRunConfig {
	fanOut := !c.Simulation.DisableFanOut
	return models.DryRunConfig{
		Workers:     c.Simulation.DefaultWorkers,
		BatchSize:   c.Simulation.DefaultBatch,
		SmartFanOut: &fanOut,
	}
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{
		APIKey:       strings.TrimSpace(os.Getenv("API_KEY")),
		SpotifyToken: strings.TrimSpace(os.Getenv("SPOTIFY_TOKEN")),
	}

	switch strings.ToLower(strings.TrimSpace(os.Getenv("CRATEX_DEPLOYED"))) {
	case "", "0", "false", "no":
	case "1", "true", "yes":
		secrets.Deployed = true
	default:
		return nil, fmt.Errorf("CRATEX_DEPLOYED must be a boolean (got %q)", os.Getenv("CRATEX_DEPLOYED"))
	}

	return secrets, nil
}
