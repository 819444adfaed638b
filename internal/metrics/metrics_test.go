package metrics

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue reads one labelled counter from the default registry
func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.RecordBackendRequest("/status", "ok", time.Millisecond)
	c.RecordFallback("status")
	c.RecordStage("Scan Metadata")
	c.RecordRun("dry_run", true)
	c.RecordRateLimitRejection()
	c.RecordAgentRequest("m", false)
	c.RecordPacingWait("m", time.Millisecond)
}

func TestCollectorCounts(t *testing.T) {
	c := NewCollector(slog.New(slog.NewTextHandler(io.Discard, nil)))

	runs := map[string]string{"kind": "execute", "outcome": "success"}
	before := counterValue(t, "cratex_runs_total", runs)
	c.RecordRun("execute", true)
	c.RecordRun("execute", true)
	if got := counterValue(t, "cratex_runs_total", runs) - before; got != 2 {
		t.Errorf("runs delta = %v, want 2", got)
	}

	fallback := map[string]string{"operation": "analyze"}
	before = counterValue(t, "cratex_simulation_fallback_total", fallback)
	c.RecordFallback("analyze")
	if got := counterValue(t, "cratex_simulation_fallback_total", fallback) - before; got != 1 {
		t.Errorf("fallback delta = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	NewCollector(slog.New(slog.NewTextHandler(io.Discard, nil))).RecordStage("Completed")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cratex_stage_transitions_total") {
		t.Error("stage counter missing from scrape")
	}
}
