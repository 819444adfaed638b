package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hypnoticwarchief/cratex/pkg/models"
)

// Pipeline is the write path the dispatcher drives. *status.Client implements it.
type Pipeline interface {
	StartDryRun(ctx context.Context, path string, cfg *models.DryRunConfig) (models.Acknowledgement, error)
	Execute(ctx context.Context) (models.Acknowledgement, error)
	SetPath(path string)
	CurrentPath() string
}

// Dispatcher applies decoded actions. Pipeline actions go through the same
// status client calls the dashboard uses; every action is then forwarded to
// the UI callback.
type Dispatcher struct {
	pipeline Pipeline
	notify   func(Action)
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. notify may be nil.
func NewDispatcher(pipeline Pipeline, notify func(Action), logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		pipeline: pipeline,
		notify:   notify,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Dispatch applies a and forwards it to the UI callback. A failed pipeline
// command is returned without notifying.
func (d *Dispatcher) Dispatch(ctx context.Context, a Action) error {
	d.logger.Info("Agent action", "tool", a.ToolName())

	switch act := a.(type) {
	case TriggerPipeline:
		var err error
		switch act.Mode {
		case ModeDryRun:
			_, err = d.pipeline.StartDryRun(ctx, d.pipeline.CurrentPath(), nil)
		case ModeExecute:
			_, err = d.pipeline.Execute(ctx)
		default:
			err = fmt.Errorf("unsupported pipeline mode %q", act.Mode)
		}
		if err != nil {
			return fmt.Errorf("trigger_pipeline: %w", err)
		}
	case UpdatePath:
		d.pipeline.SetPath(act.Path)
	case CreatePlaylist, FindPurchaseLink, WebSearch:
		// UI-only
	}

	if d.notify != nil {
		d.notify(a)
	}
	return nil
}
