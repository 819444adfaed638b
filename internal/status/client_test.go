package status

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hypnoticwarchief/cratex/internal/backend"
	"github.com/hypnoticwarchief/cratex/internal/engine"
	"github.com/hypnoticwarchief/cratex/internal/history"
	"github.com/hypnoticwarchief/cratex/internal/kvstore"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

type fakeBackend struct {
	err      error
	status   *models.PipelineStatus
	analyzed []string
	calls    []string
}

func (f *fakeBackend) Status(context.Context) (*models.PipelineStatus, error) {
	f.calls = append(f.calls, "status")
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

func (f *fakeBackend) Config(context.Context) (*models.ConfigResponse, error) {
	f.calls = append(f.calls, "config")
	if f.err != nil {
		return nil, f.err
	}
	return &models.ConfigResponse{CWD: "/remote", DefaultMinConfidence: 0.5, PreferredModel: models.ModelPro}, nil
}

func (f *fakeBackend) Analyze(_ context.Context, path string, _ *models.DryRunConfig) (*models.Acknowledgement, error) {
	f.calls = append(f.calls, "analyze")
	f.analyzed = append(f.analyzed, path)
	return f.ack("Backend analyzing")
}

func (f *fakeBackend) Execute(context.Context) (*models.Acknowledgement, error) {
	f.calls = append(f.calls, "execute")
	return f.ack("Backend executing")
}

func (f *fakeBackend) Rollback(context.Context) (*models.Acknowledgement, error) {
	f.calls = append(f.calls, "rollback")
	return f.ack("Backend rolled back")
}

func (f *fakeBackend) Reset(context.Context) (*models.Acknowledgement, error) {
	f.calls = append(f.calls, "reset")
	return f.ack("Backend reset")
}

func (f *fakeBackend) ack(msg string) (*models.Acknowledgement, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Acknowledgement{Message: msg}, nil
}

func instant() engine.Sleeper {
	return engine.SleeperFunc(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, b Backend) (*Client, kvstore.Store) {
	t.Helper()
	logger := testLogger()
	kv := kvstore.NewMemory()
	hist := history.New(kv, logger)
	eng := engine.New(engine.Options{Seed: 11, Sleeper: instant(), Recorder: hist}, logger)
	hist.SetRewinder(eng)

	c := New(Options{Backend: b, Engine: eng, History: hist, Store: kv}, logger)
	t.Cleanup(c.Wait)
	return c, kv
}

var errUnavailable = &backend.UnavailableError{Endpoint: "/x", Err: errors.New("connection refused")}

func TestGetStatus_Online(t *testing.T) {
	remote := &models.PipelineStatus{IsRunning: true, CurrentStage: models.StageSortAndLog, Progress: 12}
	c, _ := newTestClient(t, &fakeBackend{status: remote})

	got := c.GetStatus(context.Background())
	if got.CurrentStage != models.StageSortAndLog || got.Progress != 12 {
		t.Errorf("Expected backend payload verbatim, got %+v", got)
	}
	if c.IsSimulated() {
		t.Error("Expected online mode")
	}
}

func TestGetStatus_FallsBackOnAnyError(t *testing.T) {
	for _, err := range []error{errUnavailable, &backend.RejectedError{StatusCode: 500, Message: "boom"}, errors.New("decode")} {
		c, _ := newTestClient(t, &fakeBackend{err: err})
		got := c.GetStatus(context.Background())
		if got.CurrentStage != models.StageIdle || got.IsRunning {
			t.Errorf("Expected simulated idle status, got %+v", got)
		}
		if !c.IsSimulated() {
			t.Errorf("Expected simulated mode after %v", err)
		}
	}
}

func TestCommands_Online(t *testing.T) {
	b := &fakeBackend{status: &models.PipelineStatus{}}
	c, _ := newTestClient(t, b)
	ctx := context.Background()

	ack, err := c.StartDryRun(ctx, "/remote/music", nil)
	if err != nil || ack.Message != "Backend analyzing" {
		t.Fatalf("StartDryRun = %q, %v", ack.Message, err)
	}
	if ack, err := c.Execute(ctx); err != nil || ack.Message != "Backend executing" {
		t.Errorf("Execute = %q, %v", ack.Message, err)
	}
	if ack, err := c.Rollback(ctx); err != nil || ack.Message != "Backend rolled back" {
		t.Errorf("Rollback = %q, %v", ack.Message, err)
	}
	if ack, err := c.Reset(ctx); err != nil || ack.Message != "Backend reset" {
		t.Errorf("Reset = %q, %v", ack.Message, err)
	}
	if len(c.engine.Status().Logs) != 0 {
		t.Error("Engine must stay untouched while online")
	}
	if b.analyzed[0] != "/remote/music" || c.CurrentPath() != "/remote/music" {
		t.Errorf("Unexpected path handling %v / %s", b.analyzed, c.CurrentPath())
	}
}

func TestCommands_RejectionSurfaces(t *testing.T) {
	rejected := &backend.RejectedError{StatusCode: 409, Message: "Pipeline already running"}
	c, _ := newTestClient(t, &fakeBackend{err: rejected})
	ctx := context.Background()

	_, err := c.StartDryRun(ctx, "/music", nil)
	var re *backend.RejectedError
	if !errors.As(err, &re) || re.Message != "Pipeline already running" {
		t.Fatalf("Expected rejection verbatim, got %v", err)
	}
	if c.engine.IsRunning() {
		t.Error("Rejection must not start the simulation")
	}
	if _, err := c.Reset(ctx); !errors.As(err, &re) {
		t.Errorf("Expected rejection from Reset, got %v", err)
	}
}

func TestCommands_FallbackOnUnavailable(t *testing.T) {
	c, kv := newTestClient(t, &fakeBackend{err: errUnavailable})
	ctx := context.Background()

	ack, err := c.StartDryRun(ctx, "/local/music", &models.DryRunConfig{Workers: 6})
	if err != nil || ack.Message != AckAnalyze {
		t.Fatalf("StartDryRun = %q, %v", ack.Message, err)
	}
	if !c.IsSimulated() {
		t.Error("Expected simulated mode")
	}
	c.Wait()

	st := c.GetStatus(ctx)
	if st.CurrentStage != models.StageCompleted || len(st.ProposedChanges) == 0 {
		t.Fatalf("Expected completed dry run, got stage %s with %d changes", st.CurrentStage, len(st.ProposedChanges))
	}

	ack, err = c.Execute(ctx)
	if err != nil || ack.Message != AckExecute {
		t.Fatalf("Execute = %q, %v", ack.Message, err)
	}
	c.Wait()
	if !c.GetStatus(ctx).HasMoved() {
		t.Error("Expected moved operations after execute")
	}

	items := c.History()
	if len(items) != 1 || items[0].FileCount != len(st.ProposedChanges) {
		t.Fatalf("Expected one history item, got %+v", items)
	}
	var stored []models.HistoryItem
	if found, err := kvstore.GetJSON(kv, kvstore.KeyHistory, &stored); !found || err != nil {
		t.Errorf("History not persisted: %v", err)
	}

	ack, err = c.Rollback(ctx)
	if err != nil || ack.Message != AckRollback {
		t.Fatalf("Rollback = %q, %v", ack.Message, err)
	}
	if st := c.GetStatus(ctx); st.CurrentStage != models.StageIdle || st.Stats.PlannedMoves != 0 {
		t.Errorf("Expected idle after rollback, got %+v", st.Stats)
	}

	ack, err = c.Reset(ctx)
	if err != nil || ack.Message != AckReset {
		t.Fatalf("Reset = %q, %v", ack.Message, err)
	}
	if st := c.GetStatus(ctx); len(st.Logs) != 0 {
		t.Errorf("Expected empty logs after reset, got %v", st.Logs)
	}
}

func TestStartDryRun_IgnoredWhileRunning(t *testing.T) {
	logger := testLogger()
	kv := kvstore.NewMemory()
	release := make(chan struct{})
	blocking := engine.SleeperFunc(func(ctx context.Context, _ time.Duration) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	eng := engine.New(engine.Options{Seed: 3, Sleeper: blocking}, logger)
	c := New(Options{Engine: eng, History: history.New(kv, logger), Store: kv}, logger)

	ctx := context.Background()
	if _, err := c.StartDryRun(ctx, "/first", nil); err != nil {
		t.Fatalf("StartDryRun failed: %v", err)
	}
	ack, err := c.StartDryRun(ctx, "/second", nil)
	if err != nil || ack.Message != AckAnalyze {
		t.Errorf("Second call should still acknowledge, got %q %v", ack.Message, err)
	}

	if first := c.GetStatus(ctx).Logs[0]; !strings.HasSuffix(first, "/first") {
		t.Errorf("Second dry run must not restart the pipeline, got %q", first)
	}

	if _, err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	close(release)
	c.Wait()
}

func TestGetConfig(t *testing.T) {
	t.Run("online", func(t *testing.T) {
		c, _ := newTestClient(t, &fakeBackend{})
		cfg := c.GetConfig(context.Background())
		if cfg.CWD != "/remote" || cfg.PreferredModel != models.ModelPro {
			t.Errorf("Expected backend config, got %+v", cfg)
		}
	})

	t.Run("offline defaults", func(t *testing.T) {
		c, _ := newTestClient(t, nil)
		cfg := c.GetConfig(context.Background())
		want := models.ConfigResponse{
			HasGeminiKey:         false,
			DefaultMinConfidence: 0.75,
			CWD:                  DefaultPath,
			PreferredModel:       models.DefaultModel,
		}
		if cfg != want {
			t.Errorf("GetConfig = %+v, want %+v", cfg, want)
		}
	})

	t.Run("offline stored preferences", func(t *testing.T) {
		c, kv := newTestClient(t, &fakeBackend{err: errUnavailable})
		_ = kv.Set(kvstore.KeyAPIKey, "user-key")
		_ = kv.Set(kvstore.KeyModel, string(models.ModelFlashLite))
		c.SetPath("/Users/dj/Crates")

		cfg := c.GetConfig(context.Background())
		if !cfg.HasGeminiKey || cfg.PreferredModel != models.ModelFlashLite || cfg.CWD != "/Users/dj/Crates" {
			t.Errorf("Unexpected config %+v", cfg)
		}
	})

	t.Run("unknown stored model", func(t *testing.T) {
		c, kv := newTestClient(t, nil)
		_ = kv.Set(kvstore.KeyModel, "gpt-2")
		if got := c.PreferredModel(); got != models.DefaultModel {
			t.Errorf("Expected default model, got %s", got)
		}
	})
}

func TestRollback_AcknowledgedWhileRunning(t *testing.T) {
	logger := testLogger()
	kv := kvstore.NewMemory()
	release := make(chan struct{})
	blocking := engine.SleeperFunc(func(ctx context.Context, _ time.Duration) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	eng := engine.New(engine.Options{Seed: 3, Sleeper: blocking}, logger)
	c := New(Options{Backend: &fakeBackend{err: errUnavailable}, Engine: eng, History: history.New(kv, logger), Store: kv}, logger)

	ctx := context.Background()
	if _, err := c.StartDryRun(ctx, "/music", nil); err != nil {
		t.Fatalf("StartDryRun failed: %v", err)
	}

	ack, err := c.Rollback(ctx)
	if err != nil || ack.Message != AckRollback {
		t.Errorf("Rollback during a run should acknowledge, got %q %v", ack.Message, err)
	}
	if !c.GetStatus(ctx).IsRunning {
		t.Error("Rollback must not disturb the running dry run")
	}

	if _, err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	close(release)
	c.Wait()
}

func TestHasCredential(t *testing.T) {
	c, kv := newTestClient(t, nil)
	if c.HasCredential() {
		t.Error("Expected no credential on a fresh store")
	}

	if err := kv.Set(kvstore.KeyAPIKey, "   "); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if c.HasCredential() {
		t.Error("Whitespace key must not count as a credential")
	}

	if err := kv.Set(kvstore.KeyAPIKey, "user-key"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !c.HasCredential() {
		t.Error("Expected stored key to count as a credential")
	}
}

func TestNilBackendAlwaysSimulates(t *testing.T) {
	c, _ := newTestClient(t, nil)
	if !c.IsSimulated() {
		t.Error("Nil backend should start in simulated mode")
	}
	if _, err := c.Reset(context.Background()); err != nil {
		t.Errorf("Reset failed: %v", err)
	}
}

func TestRollbackHistory_DelegatesToStore(t *testing.T) {
	c, _ := newTestClient(t, nil)
	if err := c.RollbackHistory(context.Background(), "missing"); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLibraryAnalysis(t *testing.T) {
	c, _ := newTestClient(t, nil)
	if got := c.LibraryAnalysis(context.Background()); got.TotalTracks != 2843 {
		t.Errorf("Expected default track count, got %d", got.TotalTracks)
	}
}
