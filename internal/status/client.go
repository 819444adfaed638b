package status

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/hypnoticwarchief/cratex/internal/analysis"
	"github.com/hypnoticwarchief/cratex/internal/backend"
	"github.com/hypnoticwarchief/cratex/internal/engine"
	"github.com/hypnoticwarchief/cratex/internal/history"
	"github.com/hypnoticwarchief/cratex/internal/kvstore"
	"github.com/hypnoticwarchief/cratex/internal/metrics"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

const (
	// DefaultPath is the library location used until one is chosen
	DefaultPath = "/Volumes/Music/Unsorted"
	// DefaultMinConfidence is reported by the offline configuration
	DefaultMinConfidence = 0.75

	AckAnalyze  = "Starting library analysis..."
	AckExecute  = "Executing file moves..."
	AckRollback = "Rollback complete"
	AckReset    = "Pipeline reset."
)

// Backend is the remote sorter. *backend.Client implements it.
type Backend interface {
	Status(ctx context.Context) (*models.PipelineStatus, error)
	Config(ctx context.Context) (*models.ConfigResponse, error)
	Analyze(ctx context.Context, path string, cfg *models.DryRunConfig) (*models.Acknowledgement, error)
	Execute(ctx context.Context) (*models.Acknowledgement, error)
	Rollback(ctx context.Context) (*models.Acknowledgement, error)
	Reset(ctx context.Context) (*models.Acknowledgement, error)
}

// Options wires a Client
type Options struct {
	// Backend may be nil, in which case every call is simulated
	Backend          Backend
	Engine           *engine.Engine
	History          *history.Store
	Store            kvstore.Store
	SystemCredential string
	InitialPath      string
	Metrics          *metrics.Collector
}

// Client is the single entry point for pipeline reads and commands.
// Every call tries the backend first and falls back to the simulation
// engine only when the backend cannot be reached.
type Client struct {
	backend          Backend
	engine           *engine.Engine
	history          *history.Store
	kv               kvstore.Store
	systemCredential string
	metrics          *metrics.Collector
	logger           *slog.Logger

	mu        sync.RWMutex
	simulated bool
	path      string
}

// New creates a status client
func New(opts Options, logger *slog.Logger) *Client {
	path := opts.InitialPath
	if path == "" {
		path = DefaultPath
	}
	return &Client{
		backend:          opts.Backend,
		engine:           opts.Engine,
		history:          opts.History,
		kv:               opts.Store,
		systemCredential: opts.SystemCredential,
		metrics:          opts.Metrics,
		logger:           logger.With("component", "status"),
		simulated:        opts.Backend == nil,
		path:             path,
	}
}

// GetStatus returns the backend status or, on any failure, the simulated one
func (c *Client) GetStatus(ctx context.Context) models.PipelineStatus {
	if c.backend != nil {
		st, err := c.backend.Status(ctx)
		if err == nil {
			c.setSimulated(false)
			return *st
		}
		c.logger.Debug("Status unavailable from backend", "error", err)
		c.metrics.RecordFallback("status")
	}
	c.setSimulated(true)
	return c.engine.Status()
}

// StartDryRun starts an analysis of path
func (c *Client) StartDryRun(ctx context.Context, path string, cfg *models.DryRunConfig) (models.Acknowledgement, error) {
	if path == "" {
		path = c.CurrentPath()
	}
	c.SetPath(path)

	if ack, done, err := c.remote("analyze", func(b Backend) (*models.Acknowledgement, error) {
		return b.Analyze(ctx, path, cfg)
	}); done {
		return ack, err
	}

	var local models.DryRunConfig
	if cfg != nil {
		local = *cfg
	}
	if !c.engine.IsRunning() {
		c.engine.StartDryRun(path, local)
	}
	return models.Acknowledgement{Message: AckAnalyze}, nil
}

// Execute commits the proposed moves
func (c *Client) Execute(ctx context.Context) (models.Acknowledgement, error) {
	if ack, done, err := c.remote("execute", func(b Backend) (*models.Acknowledgement, error) {
		return b.Execute(ctx)
	}); done {
		return ack, err
	}

	if !c.engine.IsRunning() {
		c.engine.StartExecute()
	}
	return models.Acknowledgement{Message: AckExecute}, nil
}

// Rollback reverses the last run. The simulated rollback completes before returning
// and is skipped while a run is in progress.
func (c *Client) Rollback(ctx context.Context) (models.Acknowledgement, error) {
	if ack, done, err := c.remote("rollback", func(b Backend) (*models.Acknowledgement, error) {
		return b.Rollback(ctx)
	}); done {
		return ack, err
	}

	if !c.engine.IsRunning() {
		if err := c.engine.Rollback(ctx); err != nil && !errors.Is(err, engine.ErrBusy) {
			return models.Acknowledgement{}, err
		}
	}
	return models.Acknowledgement{Message: AckRollback}, nil
}

// Reset returns the pipeline to Idle
func (c *Client) Reset(ctx context.Context) (models.Acknowledgement, error) {
	if ack, done, err := c.remote("reset", func(b Backend) (*models.Acknowledgement, error) {
		return b.Reset(ctx)
	}); done {
		return ack, err
	}

	c.engine.Reset()
	return models.Acknowledgement{Message: AckReset}, nil
}

// GetConfig returns the backend configuration or the locally derived one
func (c *Client) GetConfig(ctx context.Context) models.ConfigResponse {
	if c.backend != nil {
		cfg, err := c.backend.Config(ctx)
		if err == nil {
			return *cfg
		}
		c.logger.Debug("Config unavailable from backend", "error", err)
		c.metrics.RecordFallback("config")
	}
	return models.ConfigResponse{
		HasGeminiKey:         c.HasCredential(),
		DefaultMinConfidence: DefaultMinConfidence,
		CWD:                  c.CurrentPath(),
		PreferredModel:       c.PreferredModel(),
	}
}

// IsSimulated reports whether the last call was served by the engine
func (c *Client) IsSimulated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.simulated
}

// SetPath changes the library location used by later runs
func (c *Client) SetPath(path string) {
	if path == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = path
}

// CurrentPath returns the library location
func (c *Client) CurrentPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// History lists recorded execute runs
func (c *Client) History() []models.HistoryItem {
	return c.history.List()
}

// RollbackHistory reverses one recorded run
func (c *Client) RollbackHistory(ctx context.Context, id string) error {
	return c.history.Rollback(ctx, id)
}

// LibraryAnalysis summarizes the library behind the current status
func (c *Client) LibraryAnalysis(ctx context.Context) models.LibraryAnalysis {
	return analysis.Build(c.GetStatus(ctx).Stats.PlannedMoves)
}

// HasCredential reports whether an assistant credential is available
func (c *Client) HasCredential() bool {
	if key, ok, err := c.kv.Get(kvstore.KeyAPIKey); err == nil && ok && strings.TrimSpace(key) != "" {
		return true
	}
	return c.systemCredential != ""
}

// PreferredModel returns the stored model or the default
func (c *Client) PreferredModel() models.AIModel {
	if name, ok, err := c.kv.Get(kvstore.KeyModel); err == nil && ok {
		if m, known := models.ParseModel(name); known {
			return m
		}
	}
	return models.DefaultModel
}

// Wait blocks until background simulated runs have finished
func (c *Client) Wait() {
	c.engine.Wait()
}

// remote tries op against the backend. done is false when the caller should
// fall back to the engine.
func (c *Client) remote(name string, op func(Backend) (*models.Acknowledgement, error)) (models.Acknowledgement, bool, error) {
	if c.backend == nil {
		c.setSimulated(true)
		return models.Acknowledgement{}, false, nil
	}

	ack, err := op(c.backend)
	if err == nil {
		c.setSimulated(false)
		return *ack, true, nil
	}
	if errors.Is(err, backend.ErrUnavailable) {
		c.metrics.RecordFallback(name)
		c.setSimulated(true)
		return models.Acknowledgement{}, false, nil
	}
	c.logger.Warn("Backend command failed", "command", name, "error", err)
	return models.Acknowledgement{}, true, err
}

func (c *Client) setSimulated(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.simulated = v
}
