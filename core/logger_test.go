package core

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
)

// TestDefaultLogger_Format verifies the level prefix and field rendering
func TestDefaultLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	l := NewDefaultLoggerTo(log.New(&buf, "", 0))

	l.Info("task running", F("task", 3), F("worker", "goroutine#3"))
	l.Warn("task rejected", F("error", errors.New("boom")))
	l.Debug("plain")

	want := []string{
		"[INFO] task running {task: 3, worker: goroutine#3}",
		"[WARN] task rejected {error: boom}",
		"[DEBUG] plain",
	}
	got := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestLoggingPanicHandler verifies panics are reported at error level
func TestLoggingPanicHandler(t *testing.T) {
	var buf bytes.Buffer
	h := &LoggingPanicHandler{Logger: NewDefaultLoggerTo(log.New(&buf, "", 0))}

	h.HandlePanic(context.Background(), "bounded-pool(1)", 0, "boom", []byte("stack"))

	out := buf.String()
	for _, s := range []string{"[ERROR] task panicked", "executor: bounded-pool(1)", "panic: boom"} {
		if !strings.Contains(out, s) {
			t.Errorf("output %q lacks %q", out, s)
		}
	}
}

// TestExecutorConfig_WithDefaults verifies nil handlers are filled in
func TestExecutorConfig_WithDefaults(t *testing.T) {
	var nilConfig *ExecutorConfig
	d := nilConfig.WithDefaults()
	if d.PanicHandler == nil || d.Metrics == nil || d.RejectedTaskHandler == nil {
		t.Fatalf("WithDefaults on nil left a handler unset: %+v", d)
	}

	custom := &NoOpRejectedTaskHandler{}
	c := (&ExecutorConfig{RejectedTaskHandler: custom}).WithDefaults()
	if c.RejectedTaskHandler != custom {
		t.Error("WithDefaults replaced a configured handler")
	}
	if _, ok := c.Metrics.(*NilMetrics); !ok {
		t.Errorf("Metrics = %T, want *NilMetrics", c.Metrics)
	}
}
