package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hypnoticwarchief/cratex/internal/backend"
	"github.com/hypnoticwarchief/cratex/internal/engine"
	"github.com/hypnoticwarchief/cratex/internal/history"
	"github.com/hypnoticwarchief/cratex/internal/kvstore"
	"github.com/hypnoticwarchief/cratex/internal/status"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func instant() engine.Sleeper {
	return engine.SleeperFunc(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
}

func newTestServer(t *testing.T, sleeper engine.Sleeper) (*Server, *engine.Engine) {
	t.Helper()
	logger := testLogger()
	hist := history.New(kvstore.NewMemory(), logger)
	eng := engine.New(engine.Options{Seed: 5, Sleeper: sleeper, Recorder: hist}, logger)
	hist.SetRewinder(eng)
	t.Cleanup(func() {
		eng.Reset()
		eng.Wait()
	})

	srv := New(Options{
		Engine:  eng,
		History: hist,
		Config:  models.ConfigResponse{CWD: "/srv/music", DefaultMinConfidence: 0.75, PreferredModel: models.DefaultModel},
	}, logger)
	return srv, eng
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, rec.Body.String())
	}
	return body["detail"]
}

func TestStatusAndConfig(t *testing.T) {
	srv, _ := newTestServer(t, instant())

	rec := do(t, srv, http.MethodGet, "/status", nil)
	var st models.PipelineStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("GET /status = %d %v", rec.Code, err)
	}
	if st.CurrentStage != models.StageIdle || st.Logs == nil {
		t.Errorf("unexpected idle status %+v", st)
	}

	rec = do(t, srv, http.MethodGet, "/config", nil)
	var cfg models.ConfigResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil || cfg.CWD != "/srv/music" {
		t.Errorf("GET /config = %s %v", rec.Body.String(), err)
	}
}

func TestFullFlow(t *testing.T) {
	srv, eng := newTestServer(t, instant())

	rec := do(t, srv, http.MethodPost, "/analyze", backend.AnalyzeRequest{Path: "/srv/music/unsorted"})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /analyze = %d %s", rec.Code, rec.Body.String())
	}
	eng.Wait()
	if st := eng.Status(); st.CurrentStage != models.StageCompleted || len(st.ProposedChanges) == 0 {
		t.Fatalf("expected completed dry run, got %s", st.CurrentStage)
	}

	rec = do(t, srv, http.MethodPost, "/execute", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /execute = %d %s", rec.Code, rec.Body.String())
	}
	eng.Wait()

	rec = do(t, srv, http.MethodGet, "/history/", nil)
	var items []models.HistoryItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil || len(items) != 1 {
		t.Fatalf("GET /history = %s %v", rec.Body.String(), err)
	}

	rec = do(t, srv, http.MethodPost, "/history/"+items[0].ID+"/rollback", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history rollback = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, srv, http.MethodPost, "/history/"+items[0].ID+"/rollback", nil)
	if rec.Code != http.StatusConflict || detail(t, rec) != history.ErrAlreadyRolledBack.Error() {
		t.Errorf("second rollback = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, srv, http.MethodPost, "/history/nope/rollback", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing rollback = %d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/analysis", nil)
	var report models.LibraryAnalysis
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil || report.TotalTracks != eng.Status().Stats.PlannedMoves {
		t.Errorf("GET /analysis = %s %v", rec.Body.String(), err)
	}
}

func TestAnalyze_BusyAndValidation(t *testing.T) {
	release := make(chan struct{})
	blocking := engine.SleeperFunc(func(ctx context.Context, _ time.Duration) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	srv, eng := newTestServer(t, blocking)
	defer close(release)

	rec := do(t, srv, http.MethodPost, "/analyze", map[string]any{"path": "", "config": map[string]any{"workers": 8}})
	if rec.Code != http.StatusOK {
		t.Fatalf("first analyze = %d", rec.Code)
	}
	if first := eng.Status().Logs[0]; !strings.HasSuffix(first, "Target: /srv/music") {
		t.Errorf("empty path should use the configured cwd, got %q", first)
	}

	rec = do(t, srv, http.MethodPost, "/analyze", backend.AnalyzeRequest{Path: "/other"})
	if rec.Code != http.StatusConflict || detail(t, rec) != "Pipeline already running" {
		t.Errorf("busy analyze = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, srv, http.MethodPost, "/execute", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("busy execute = %d", rec.Code)
	}
	rec = do(t, srv, http.MethodPost, "/rollback", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("busy rollback = %d", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/reset", nil)
	if rec.Code != http.StatusOK || eng.IsRunning() {
		t.Errorf("reset = %d running=%v", rec.Code, eng.IsRunning())
	}

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewBufferString("{not json"))
	bad := httptest.NewRecorder()
	srv.ServeHTTP(bad, req)
	if bad.Code != http.StatusBadRequest || detail(t, bad) != msgBadRequest {
		t.Errorf("bad body = %d %s", bad.Code, bad.Body.String())
	}
}

func TestExecute_RequiresAnalysis(t *testing.T) {
	srv, _ := newTestServer(t, instant())
	rec := do(t, srv, http.MethodPost, "/execute", nil)
	if rec.Code != http.StatusBadRequest || detail(t, rec) != msgNoAnalysis {
		t.Errorf("execute without analysis = %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, instant())
	rec := do(t, srv, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d", rec.Code)
	}
}

func TestBackendClientContract(t *testing.T) {
	srv, eng := newTestServer(t, instant())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := backend.NewClient(ts.URL, 2*time.Second, testLogger(), nil)
	ctx := context.Background()

	ack, err := client.Analyze(ctx, "/srv/music", nil)
	if err != nil || ack.Message != status.AckAnalyze {
		t.Fatalf("Analyze = %+v, %v", ack, err)
	}
	eng.Wait()

	st, err := client.Status(ctx)
	if err != nil || st.CurrentStage != models.StageCompleted {
		t.Fatalf("Status = %+v, %v", st, err)
	}

	if _, err := client.Rollback(ctx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	// Nothing proposed after a rollback
	_, err = client.Execute(ctx)
	var rejected *backend.RejectedError
	if !errors.As(err, &rejected) || rejected.Message != msgNoAnalysis {
		t.Errorf("expected rejection, got %v", err)
	}
}
