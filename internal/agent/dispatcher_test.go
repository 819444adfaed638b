package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hypnoticwarchief/cratex/pkg/models"
)

type fakePipeline struct {
	path     string
	dryRuns  []string
	executes int
	err      error
}

func (f *fakePipeline) StartDryRun(_ context.Context, path string, _ *models.DryRunConfig) (models.Acknowledgement, error) {
	f.dryRuns = append(f.dryRuns, path)
	return models.Acknowledgement{}, f.err
}

func (f *fakePipeline) Execute(context.Context) (models.Acknowledgement, error) {
	f.executes++
	return models.Acknowledgement{}, f.err
}

func (f *fakePipeline) SetPath(path string) { f.path = path }
func (f *fakePipeline) CurrentPath() string { return f.path }

func TestDispatcher_PipelineActions(t *testing.T) {
	p := &fakePipeline{path: "/Music/Old"}
	var notified []Action
	d := NewDispatcher(p, func(a Action) { notified = append(notified, a) }, testLogger())
	ctx := context.Background()

	if err := d.Dispatch(ctx, UpdatePath{Path: "/Music/New"}); err != nil {
		t.Fatal(err)
	}
	if err := d.Dispatch(ctx, TriggerPipeline{Mode: ModeDryRun}); err != nil {
		t.Fatal(err)
	}
	if err := d.Dispatch(ctx, TriggerPipeline{Mode: ModeExecute}); err != nil {
		t.Fatal(err)
	}

	if len(p.dryRuns) != 1 || p.dryRuns[0] != "/Music/New" {
		t.Errorf("dry run should use the updated path, got %v", p.dryRuns)
	}
	if p.executes != 1 {
		t.Errorf("expected one execute, got %d", p.executes)
	}
	if len(notified) != 3 {
		t.Errorf("every action should reach the UI, got %d", len(notified))
	}
}

func TestDispatcher_UIOnlyActions(t *testing.T) {
	p := &fakePipeline{}
	var notified []Action
	d := NewDispatcher(p, func(a Action) { notified = append(notified, a) }, testLogger())

	for _, a := range []Action{CreatePlaylist{Platform: "apple_music", Name: "x"}, FindPurchaseLink{Query: "q"}, WebSearch{Query: "q"}} {
		if err := d.Dispatch(context.Background(), a); err != nil {
			t.Fatal(err)
		}
	}
	if len(p.dryRuns) != 0 || p.executes != 0 {
		t.Error("UI-only actions must not touch the pipeline")
	}
	if len(notified) != 3 {
		t.Errorf("expected 3 notifications, got %d", len(notified))
	}
}

func TestDispatcher_PipelineError(t *testing.T) {
	boom := errors.New("Pipeline already running")
	p := &fakePipeline{err: boom}
	called := false
	d := NewDispatcher(p, func(Action) { called = true }, testLogger())

	if err := d.Dispatch(context.Background(), TriggerPipeline{Mode: ModeExecute}); !errors.Is(err, boom) {
		t.Errorf("expected pipeline error, got %v", err)
	}
	if called {
		t.Error("failed actions must not be forwarded")
	}
}

func TestDispatcher_NilNotify(t *testing.T) {
	d := NewDispatcher(&fakePipeline{}, nil, testLogger())
	if err := d.Dispatch(context.Background(), WebSearch{Query: "q"}); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
