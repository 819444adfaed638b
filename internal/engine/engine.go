package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hypnoticwarchief/cratex/internal/history"
	"github.com/hypnoticwarchief/cratex/internal/metrics"
	"github.com/hypnoticwarchief/cratex/internal/synth"
	"github.com/hypnoticwarchief/cratex/internal/util"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

const (
	stepsPerStage = 25

	baseDryRunDuration = 30 * time.Second
	perWorkerSpeedup   = 1500 * time.Millisecond
	minDryRunDuration  = 5 * time.Second

	// DefaultExecuteDuration equals the dry-run duration at the default worker count
	DefaultExecuteDuration = 25500 * time.Millisecond

	maxScannedMoves = 3000
	finalConfidence = 0.94

	rollbackStepDelay    = 750 * time.Millisecond
	historyVerifyDelay   = 1000 * time.Millisecond
	historyMoveBackDelay = 1500 * time.Millisecond
	executeHistoryLabel  = "Auto-Sort Execution"
)

var (
	// ErrBusy is returned when a run is already in flight
	ErrBusy = errors.New("pipeline is already running")
	// ErrInterrupted is returned by a run that was superseded by Reset
	ErrInterrupted = errors.New("pipeline run interrupted by reset")
)

// Recorder persists completed execute runs
type Recorder interface {
	Record(item models.HistoryItem) error
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Seed            uint64
	Sleeper         Sleeper
	Recorder        Recorder
	Clock           func() time.Time
	ExecuteDuration time.Duration
	Metrics         *metrics.Collector
}

// Engine owns the simulated pipeline status and its transitions
type Engine struct {
	mu         sync.Mutex
	status     models.PipelineStatus
	generation uint64
	cancel     context.CancelFunc

	rng      *rand.Rand
	synth    *synth.Generator
	sleeper  Sleeper
	recorder Recorder
	now      func() time.Time
	execDur  time.Duration
	metrics  *metrics.Collector
	logger   *slog.Logger

	wg sync.WaitGroup
}

// run is one claimed occupancy of the pipeline
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	gen    uint64
	id     string
	kind   string
}

// New creates an idle engine
func New(opts Options, logger *slog.Logger) *Engine {
	if opts.Sleeper == nil {
		opts.Sleeper = RealSleeper{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ExecuteDuration <= 0 {
		opts.ExecuteDuration = DefaultExecuteDuration
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}

	return &Engine{
		status:   models.NewPipelineStatus(),
		rng:      rand.New(rand.NewPCG(opts.Seed, opts.Seed>>1|1)),
		synth:    synth.New(opts.Seed + 1),
		sleeper:  opts.Sleeper,
		recorder: opts.Recorder,
		now:      opts.Clock,
		execDur:  opts.ExecuteDuration,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "engine"),
	}
}

// Status returns a deep copy of the current status
func (e *Engine) Status() models.PipelineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status.Clone()
}

// IsRunning reports whether a run currently occupies the pipeline
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status.IsRunning
}

// Wait blocks until every run launched by a Start method has returned
func (e *Engine) Wait() {
	e.wg.Wait()
}

// DryRunDuration is the total simulated duration of an analysis pass
func DryRunDuration(workers int) time.Duration {
	if workers <= 0 {
		workers = models.DefaultWorkers
	}
	d := baseDryRunDuration - time.Duration(workers-1)*perWorkerSpeedup
	if d < minDryRunDuration {
		return minDryRunDuration
	}
	return d
}

// StartDryRun claims the pipeline and runs an analysis pass in the background.
// It returns false when a run is already in flight.
func (e *Engine) StartDryRun(path string, cfg models.DryRunConfig) bool {
	r, err := e.claimDryRun(context.Background(), path, cfg)
	if err != nil {
		return false
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = e.finish(r, e.dryRun(r, path, cfg.WithDefaults()))
	}()
	return true
}

// RunDryRun runs an analysis pass and blocks until it completes
func (e *Engine) RunDryRun(ctx context.Context, path string, cfg models.DryRunConfig) error {
	r, err := e.claimDryRun(ctx, path, cfg)
	if err != nil {
		return err
	}
	return e.finish(r, e.dryRun(r, path, cfg.WithDefaults()))
}

// StartExecute claims the pipeline and commits proposed moves in the background.
// It returns false when a run is already in flight.
func (e *Engine) StartExecute() bool {
	r, err := e.claimExecute(context.Background())
	if err != nil {
		return false
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = e.finish(r, e.execute(r))
	}()
	return true
}

// RunExecute commits proposed moves and blocks until it completes
func (e *Engine) RunExecute(ctx context.Context) error {
	r, err := e.claimExecute(ctx)
	if err != nil {
		return err
	}
	return e.finish(r, e.execute(r))
}

// Rollback reverses the last run and returns the pipeline to Idle
func (e *Engine) Rollback(ctx context.Context) error {
	r, err := e.claim(ctx, "rollback", func(s *models.PipelineStatus) {
		s.IsRunning = true
		s.CurrentStage = models.StageRollingBack
		s.Logs = append(s.Logs, e.logLine("!!! INITIATING ROLLBACK !!!"))
	})
	if err != nil {
		return err
	}
	e.metrics.RecordStage(string(models.StageRollingBack))

	err = e.sleep(r, rollbackStepDelay)
	if err == nil {
		err = e.step(r, func(s *models.PipelineStatus) {
			s.Logs = append(s.Logs, e.logLine("Reversing file operations..."))
		})
	}
	if err == nil {
		err = e.sleep(r, rollbackStepDelay)
	}
	if err == nil {
		err = e.step(r, func(s *models.PipelineStatus) {
			s.IsRunning = false
			s.CurrentStage = models.StageIdle
			s.Progress = 0
			s.Stats = models.PipelineStats{}
			s.ProposedChanges = []models.FileOperation{}
			s.Logs = []string{e.logLine("Rollback successful. Library restored to original state.")}
		})
	}
	return e.finish(r, err)
}

// RollbackHistory animates reversing a recorded execute run
func (e *Engine) RollbackHistory(ctx context.Context, id string) error {
	r, err := e.claim(ctx, "history_rollback", func(s *models.PipelineStatus) {
		s.IsRunning = true
		s.CurrentStage = models.StageRollingBack
		s.Logs = append(s.Logs,
			e.logLine("INITIATING HISTORY ROLLBACK: "+id),
			e.logLine("Verifying file integrity..."))
	})
	if err != nil {
		return err
	}
	e.metrics.RecordStage(string(models.StageRollingBack))

	err = e.sleep(r, historyVerifyDelay)
	if err == nil {
		err = e.step(r, func(s *models.PipelineStatus) {
			s.Logs = append(s.Logs, e.logLine("Moving files back to source..."))
		})
	}
	if err == nil {
		err = e.sleep(r, historyMoveBackDelay)
	}
	if err == nil {
		err = e.step(r, func(s *models.PipelineStatus) {
			s.Logs = append(s.Logs, e.logLine("Rollback successful."))
			s.CurrentStage = models.StageIdle
			s.IsRunning = false
			s.ProposedChanges = []models.FileOperation{}
		})
	}
	return e.finish(r, err)
}

// Reset unconditionally restores the initial status and supersedes any run in flight
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.logger.Info("Pipeline reset")
}

func (e *Engine) resetLocked() {
	e.generation++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.status = models.NewPipelineStatus()
}

func (e *Engine) claimDryRun(ctx context.Context, path string, cfg models.DryRunConfig) (*run, error) {
	cfg = cfg.WithDefaults()
	return e.claim(ctx, "dry_run", func(s *models.PipelineStatus) {
		s.IsRunning = true
		s.CurrentStage = models.DryRunStages[0]
		s.Progress = 0
		s.Stats = models.PipelineStats{}
		s.ProposedChanges = []models.FileOperation{}
		s.Logs = []string{e.logLine("Pipeline Initialized. Target: " + path)}
		if cfg.FanOutEnabled() {
			s.Logs = append(s.Logs,
				e.logLine(fmt.Sprintf("System: Spawning %d parallel workers...", cfg.Workers)),
				e.logLine(fmt.Sprintf("System: Batch Strategy: %d files/worker", cfg.BatchSize)))
		}
	})
}

func (e *Engine) claimExecute(ctx context.Context) (*run, error) {
	return e.claim(ctx, "execute", func(s *models.PipelineStatus) {
		s.IsRunning = true
		s.CurrentStage = models.ExecuteStages[0]
		s.Progress = 0
		s.Logs = []string{e.logLine("EXECUTION STARTED. Moving files...")}
	})
}

// claim takes the run slot and applies init atomically with the check
func (e *Engine) claim(parent context.Context, kind string, init func(*models.PipelineStatus)) (*run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status.IsRunning {
		return nil, ErrBusy
	}

	e.generation++
	ctx, cancel := context.WithCancel(parent)
	e.cancel = cancel
	r := &run{
		ctx:    ctx,
		cancel: cancel,
		gen:    e.generation,
		id:     uuid.New().String(),
		kind:   kind,
	}
	init(&e.status)
	e.logger.Info("Run started", "kind", kind, "run_id", r.id)
	return r, nil
}

// step applies fn unless the run has been superseded
func (e *Engine) step(r *run, fn func(*models.PipelineStatus)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r.gen != e.generation {
		return ErrInterrupted
	}
	fn(&e.status)
	return nil
}

func (e *Engine) sleep(r *run, d time.Duration) error {
	if err := e.sleeper.Sleep(r.ctx, d); err != nil {
		if e.stale(r) {
			return ErrInterrupted
		}
		return err
	}
	return nil
}

func (e *Engine) stale(r *run) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return r.gen != e.generation
}

// finish releases the run. A run abandoned by its caller resets the pipeline
// so the running flag never outlives the run.
func (e *Engine) finish(r *run, err error) error {
	e.mu.Lock()
	if r.gen == e.generation {
		if err != nil && !errors.Is(err, ErrInterrupted) {
			e.resetLocked()
		}
		e.cancel = nil
	}
	e.mu.Unlock()
	r.cancel()

	switch {
	case err == nil:
		e.logger.Info("Run finished", "kind", r.kind, "run_id", r.id)
	case errors.Is(err, ErrInterrupted):
		e.logger.Info("Run superseded by reset", "kind", r.kind, "run_id", r.id)
	default:
		e.logger.Warn("Run abandoned", "kind", r.kind, "run_id", r.id, "error", err)
	}
	e.metrics.RecordRun(r.kind, err == nil)
	return err
}

func (e *Engine) dryRun(r *run, path string, cfg models.DryRunConfig) error {
	err := e.walk(r, models.DryRunStages, DryRunDuration(cfg.Workers), func(stage models.PipelineStage, s *models.PipelineStatus) {
		switch stage {
		case models.StageScanMetadata:
			s.Stats.PlannedMoves += int(e.rng.Float64() * 120 * float64(cfg.Workers) / 4)
			if s.Stats.PlannedMoves > maxScannedMoves {
				s.Stats.PlannedMoves = maxScannedMoves
			}
		case models.StageAIGenreDiscovery:
			s.Stats.AvgConfidence = 0.6 + e.rng.Float64()*0.39
			if cfg.FanOutEnabled() && e.rng.Float64() > 0.85 {
				worker := e.rng.IntN(cfg.Workers) + 1
				batch := e.rng.IntN(500) + 1
				s.Logs = append(s.Logs, e.logLine(fmt.Sprintf(
					"Worker %d: Processing Batch #%d (%d files)...", worker, batch, cfg.BatchSize)))
			}
		}
	})
	if err != nil {
		return err
	}

	err = e.step(r, func(s *models.PipelineStatus) {
		s.Logs = append(s.Logs, e.logLine("DRY RUN COMPLETE. Review proposed changes before execution."))
		ops := e.synth.Generate(path)
		s.ProposedChanges = ops
		s.Stats.PlannedMoves = len(ops)
		s.Stats.AvgConfidence = finalConfidence
		s.IsRunning = false
		s.CurrentStage = models.StageCompleted
	})
	if err == nil {
		e.metrics.RecordStage(string(models.StageCompleted))
	}
	return err
}

func (e *Engine) execute(r *run) error {
	if err := e.walk(r, models.ExecuteStages, e.execDur, nil); err != nil {
		return err
	}

	err := e.step(r, func(s *models.PipelineStatus) {
		s.Logs = append(s.Logs, e.logLine("Sort Complete. Rollback available."))
		for i := range s.ProposedChanges {
			s.ProposedChanges[i].Status = models.OperationMoved
		}
		if e.recorder != nil {
			item := history.NewItem(e.now(), s.Stats.PlannedMoves, executeHistoryLabel)
			if err := e.recorder.Record(item); err != nil {
				e.logger.Warn("Failed to record execution history", "error", err)
			}
		}
		s.IsRunning = false
		s.CurrentStage = models.StageCompleted
	})
	if err == nil {
		e.metrics.RecordStage(string(models.StageCompleted))
	}
	return err
}

// walk advances through stages, sleeping between progress ticks
func (e *Engine) walk(r *run, stages []models.PipelineStage, total time.Duration, tick func(models.PipelineStage, *models.PipelineStatus)) error {
	delay := total / time.Duration(len(stages)*stepsPerStage)

	for _, stage := range stages {
		err := e.step(r, func(s *models.PipelineStatus) {
			s.CurrentStage = stage
			s.Progress = 0
			s.Logs = append(s.Logs, e.logLine("Running Stage: "+string(stage)))
		})
		if err != nil {
			return err
		}
		e.metrics.RecordStage(string(stage))
		e.logger.Debug("Stage started", "stage", stage, "run_id", r.id)

		for p := 0; p <= 100; p += 100 / stepsPerStage {
			err := e.step(r, func(s *models.PipelineStatus) {
				s.Progress = float64(p)
				if tick != nil {
					tick(stage, s)
				}
			})
			if err != nil {
				return err
			}
			if err := e.sleep(r, delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) logLine(msg string) string {
	return util.LogLine(e.now(), msg)
}
