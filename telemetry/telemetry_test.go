package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLogLoggerTextMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogLogger(&buf, false)

	logger.Log(Event{
		RunID:    "run-1",
		Step:     3,
		Executor: "planner",
		Message:  "executor_completed",
		Meta:     map[string]any{"tokens": 42},
	})

	out := buf.String()
	if !strings.Contains(out, "executor_completed") {
		t.Fatalf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "run_id=run-1") {
		t.Fatalf("expected run_id attribute, got %q", out)
	}
}

func TestLogLoggerJSONMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogLogger(&buf, true)

	logger.Log(Event{RunID: "run-2", Step: 1, Message: "hello"})

	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Fatalf("expected JSON msg field, got %q", buf.String())
	}
}

func TestNoopsDoNotPanic(t *testing.T) {
	NoopLogger{}.Log(Event{})
	NoopMetrics{}.IncCounter("x", nil, 1)
	NoopMetrics{}.SetGauge("x", nil, 1)
	NoopMetrics{}.ObserveDuration("x", nil, 1)

	ctx, end := NoopTracer{}.StartSpan(context.Background(), "span", nil)
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	end(nil)
}

func TestPrometheusMetricsReusesVectorsAcrossLabelSets(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)

	metrics.IncCounter("requests_total", map[string]string{"status": "ok"}, 1)
	metrics.IncCounter("requests_total", map[string]string{"status": "ok"}, 1)
	metrics.SetGauge("queue_depth", map[string]string{"actor_type": "agent"}, 5)
	metrics.ObserveDuration("step_seconds", map[string]string{"executor": "planner"}, 0.25)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 3 {
		t.Fatalf("expected 3 metric families, got %d", len(families))
	}
}
