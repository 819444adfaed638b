// Package dashboard polls the status client and drives a view.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hypnoticwarchief/cratex/internal/agent"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

// DefaultPollInterval matches the status refresh rate of the web dashboard
const DefaultPollInterval = time.Second

// Notification messages
const (
	MsgSortComplete    = "Library Sort Complete!"
	MsgDryRunComplete  = "Dry Run Analysis Complete"
	MsgAnalysisStarted = "Analysis Started"
)

// NotificationKind styles a notification
type NotificationKind string

const (
	KindSuccess NotificationKind = "success"
	KindInfo    NotificationKind = "info"
)

// Notification is a transient message for the user
type Notification struct {
	Message string
	Kind    NotificationKind
	URL     string
}

// Snapshot is one polled state
type Snapshot struct {
	Status models.PipelineStatus
	Online bool
	Path   string
}

// View presents snapshots and notifications
type View interface {
	Render(s Snapshot)
	Notify(n Notification)
	ShowError(err error)
}

// Source is the status client surface the controller needs
type Source interface {
	GetStatus(ctx context.Context) models.PipelineStatus
	StartDryRun(ctx context.Context, path string, cfg *models.DryRunConfig) (models.Acknowledgement, error)
	Execute(ctx context.Context) (models.Acknowledgement, error)
	Rollback(ctx context.Context) (models.Acknowledgement, error)
	Reset(ctx context.Context) (models.Acknowledgement, error)
	SetPath(path string)
	CurrentPath() string
	IsSimulated() bool
}

// Controller owns the polling loop and the user-facing commands
type Controller struct {
	src      Source
	view     View
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	prevStage models.PipelineStage
	last      Snapshot
}

// New creates a controller. A non-positive interval selects DefaultPollInterval.
func New(src Source, view View, interval time.Duration, logger *slog.Logger) *Controller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Controller{
		src:       src,
		view:      view,
		interval:  interval,
		logger:    logger.With("component", "dashboard"),
		prevStage: models.StageIdle,
	}
}

// Poll fetches one snapshot, renders it and raises completion notifications
func (c *Controller) Poll(ctx context.Context) Snapshot {
	st := c.src.GetStatus(ctx)
	snap := Snapshot{
		Status: st,
		Online: !c.src.IsSimulated(),
		Path:   c.src.CurrentPath(),
	}

	c.mu.Lock()
	completed := st.CurrentStage == models.StageCompleted && c.prevStage != models.StageCompleted
	c.prevStage = st.CurrentStage
	c.last = snap
	c.mu.Unlock()

	c.view.Render(snap)
	if completed {
		msg := MsgDryRunComplete
		if st.HasMoved() {
			msg = MsgSortComplete
		}
		c.view.Notify(Notification{Message: msg, Kind: KindSuccess})
	}
	return snap
}

// Run polls until ctx is done or stop reports true for a snapshot.
// A nil stop polls until cancellation.
func (c *Controller) Run(ctx context.Context, stop func(Snapshot) bool) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		snap := c.Poll(ctx)
		if stop != nil && stop(snap) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Last returns the most recent snapshot
func (c *Controller) Last() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Analyze starts a dry run on path, or on the current path when empty
func (c *Controller) Analyze(ctx context.Context, path string, cfg *models.DryRunConfig) error {
	if path == "" {
		path = c.src.CurrentPath()
	}
	if _, err := c.src.StartDryRun(ctx, path, cfg); err != nil {
		return c.fail("analyze", err)
	}
	c.view.Notify(Notification{Message: MsgAnalysisStarted, Kind: KindInfo})
	return nil
}

// Commit applies the proposed moves
func (c *Controller) Commit(ctx context.Context) error {
	if _, err := c.src.Execute(ctx); err != nil {
		return c.fail("execute", err)
	}
	return nil
}

// Rollback undoes the last sort
func (c *Controller) Rollback(ctx context.Context) error {
	if _, err := c.src.Rollback(ctx); err != nil {
		return c.fail("rollback", err)
	}
	return nil
}

// Reset returns the pipeline to idle
func (c *Controller) Reset(ctx context.Context) error {
	if _, err := c.src.Reset(ctx); err != nil {
		return c.fail("reset", err)
	}
	return nil
}

// SetPath changes the library path used by later dry runs
func (c *Controller) SetPath(path string) {
	c.src.SetPath(path)
}

// CanRollback reports whether the last snapshot is a completed sort
func (c *Controller) CanRollback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.Status.CurrentStage == models.StageCompleted && c.last.Status.HasMoved()
}

// HandleAction surfaces an applied agent action to the user
func (c *Controller) HandleAction(a agent.Action) {
	switch act := a.(type) {
	case agent.TriggerPipeline:
		c.view.Notify(Notification{Message: fmt.Sprintf("Agent started %s", act.Mode), Kind: KindInfo})
	case agent.UpdatePath:
		c.view.Notify(Notification{Message: "Library path set to " + act.Path, Kind: KindInfo})
	case agent.FindPurchaseLink:
		store := act.Store
		if store == "" {
			store = "Bandcamp"
		}
		c.view.Notify(Notification{
			Message: fmt.Sprintf("Found %q on %s.", act.Query, store),
			Kind:    KindInfo,
			URL:     "https://www.beatport.com/search?q=" + strings.ReplaceAll(url.QueryEscape(act.Query), "+", "%20"),
		})
	case agent.CreatePlaylist:
		c.view.Notify(Notification{
			Message: fmt.Sprintf("Playlist %q created on %s.", act.Name, act.Platform),
			Kind:    KindSuccess,
			URL:     act.URL,
		})
	case agent.WebSearch:
		c.logger.Debug("Agent web search", "query", act.Query)
	}
}

func (c *Controller) fail(op string, err error) error {
	c.logger.Warn("Command failed", "operation", op, "error", err)
	c.view.ShowError(err)
	return err
}
