package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hypnoticwarchief/cratex/internal/agent"
	"github.com/hypnoticwarchief/cratex/internal/backend"
	"github.com/hypnoticwarchief/cratex/internal/config"
	"github.com/hypnoticwarchief/cratex/internal/dashboard"
	"github.com/hypnoticwarchief/cratex/internal/engine"
	"github.com/hypnoticwarchief/cratex/internal/history"
	"github.com/hypnoticwarchief/cratex/internal/kvstore"
	"github.com/hypnoticwarchief/cratex/internal/logging"
	"github.com/hypnoticwarchief/cratex/internal/metrics"
	"github.com/hypnoticwarchief/cratex/internal/ratelimit"
	"github.com/hypnoticwarchief/cratex/internal/spotify"
	"github.com/hypnoticwarchief/cratex/internal/status"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

// app holds every component a command may need
type app struct {
	cfg       *config.Config
	secrets   *config.Secrets
	logger    *slog.Logger
	logCloser io.Closer

	kv         kvstore.Store
	metrics    *metrics.Collector
	engine     *engine.Engine
	history    *history.Store
	status     *status.Client
	view       *dashboard.TerminalView
	controller *dashboard.Controller
}

func newApp() (*app, error) {
	if envFile != "" {
		if err := loadEnvFile(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
		}
	}

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	if verbose {
		level = slog.LevelDebug
	}
	logFile := cfg.Logging.File
	if logFile == "-" {
		logFile = ""
	}
	logger, logCloser, err := logging.Setup(logging.Options{Level: level, FilePath: logFile})
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	kv, err := kvstore.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	collector := metrics.NewCollector(logger)
	hist := history.New(kv, logger)
	eng := engine.New(engine.Options{
		Seed:            cfg.Simulation.Seed,
		Sleeper:         sleeperFor(cfg),
		Recorder:        hist,
		ExecuteDuration: cfg.ExecuteDuration(),
		Metrics:         collector,
	}, logger)
	hist.SetRewinder(eng)

	var remote status.Backend
	if !cfg.Backend.Offline {
		remote = backend.NewClient(cfg.Backend.URL, cfg.BackendTimeout(), logger, collector)
	}
	st := status.New(status.Options{
		Backend:          remote,
		Engine:           eng,
		History:          hist,
		Store:            kv,
		SystemCredential: secrets.APIKey,
		InitialPath:      cfg.Dashboard.DefaultPath,
		Metrics:          collector,
	}, logger)

	theme, _, _ := kv.Get(kvstore.KeyTheme)
	view := dashboard.NewTerminalView(os.Stdout, theme)

	logger.Debug("CrateX starting",
		"version", Version,
		"config", configPath,
		"storage", cfg.Storage.Driver,
		"backend", cfg.Backend.URL,
		"offline", cfg.Backend.Offline)

	return &app{
		cfg:        cfg,
		secrets:    secrets,
		logger:     logger,
		logCloser:  logCloser,
		kv:         kv,
		metrics:    collector,
		engine:     eng,
		history:    hist,
		status:     st,
		view:       view,
		controller: dashboard.New(st, view, cfg.PollInterval(), logger),
	}, nil
}

func sleeperFor(cfg *config.Config) engine.Sleeper {
	if cfg.Simulation.TimeScale == 1 {
		return engine.RealSleeper{}
	}
	return engine.ScaledSleeper{Factor: cfg.Simulation.TimeScale}
}

// Close abandons in-flight simulated runs and releases storage and the log file
func (a *app) Close() {
	a.engine.Reset()
	a.engine.Wait()
	if err := kvstore.Close(a.kv); err != nil {
		a.logger.Warn("Failed to close storage", "error", err)
	}
	_ = a.logCloser.Close()
}

// newAgent builds the assistant with its limiter, transport and Spotify client
func (a *app) newAgent() *agent.Agent {
	limiter := ratelimit.New(a.kv, ratelimit.Options{
		Window:           a.cfg.RateLimitWindow(),
		MaxRequests:      a.cfg.Agent.RateLimitMaxRequests,
		SystemCredential: a.secrets.APIKey,
		Deployed:         a.secrets.Deployed,
	}, a.logger, a.metrics)

	defaultModel, _ := models.ParseModel(a.cfg.Agent.Model)
	return agent.New(agent.Options{
		LLM:               agent.NewOpenAICompat(a.cfg.Agent.BaseURL, a.cfg.AgentTimeout()),
		Store:             a.kv,
		Limiter:           limiter,
		Spotify:           spotify.NewClient(a.cfg.Spotify.BaseURL, a.kv, a.secrets.SpotifyToken, a.logger),
		SystemCredential:  a.secrets.APIKey,
		DefaultModel:      defaultModel,
		RequestsPerMinute: a.cfg.Agent.RequestsPerMinute,
		Metrics:           a.metrics,
	}, a.logger)
}

// follow polls until the pipeline stops running, then prints the summary
func (a *app) follow(ctx context.Context) error {
	err := a.controller.Run(ctx, func(s dashboard.Snapshot) bool {
		return !s.Status.IsRunning
	})
	if err != nil {
		return err
	}
	a.view.RenderSummary(a.controller.Last().Status)
	return nil
}

// withApp wires the application and a signal-aware context around fn
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = fn(ctx, a, args)
		if errors.Is(err, context.Canceled) {
			a.logger.Info("Interrupted")
			return nil
		}
		return err
	}
}
