package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storyteller/internal/config"
	"storyteller/internal/services"
)

func TestConsoleHandlerRendersSubject(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelInfo))

	logger = NewComponentLogger(logger, "job-session")
	logger.Info("status received", String(FieldJobID, "7f3a"), String(FieldStage, "generating_story"), Int(FieldProgress, 20))

	line := buf.String()
	if !strings.Contains(line, "INFO job-session · Job 7f3a (generating_story): status received") {
		t.Fatalf("unexpected subject rendering: %q", line)
	}
	if !strings.Contains(line, "progress=20") {
		t.Fatalf("expected progress attr, got %q", line)
	}
	if strings.Contains(line, "job_id=") {
		t.Fatalf("job_id should be folded into the subject: %q", line)
	}
}

func TestConsoleHandlerQuotesAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelInfo))
	logger.WithGroup("http").Info("request", String("path", "/jobs/a b/status"), Group("resp", Int("status", 503)))

	line := buf.String()
	if !strings.Contains(line, `http.path="/jobs/a b/status"`) {
		t.Fatalf("expected quoted grouped path, got %q", line)
	}
	if !strings.Contains(line, "http.resp.status=503") {
		t.Fatalf("expected nested group key, got %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelWarn))
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info should be filtered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "WARN shown") {
		t.Fatalf("warn missing: %q", buf.String())
	}
}

func TestNewJSONWritesStructuredRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	logger, err := New(Options{Level: "debug", Format: "json", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithJobID(context.Background(), "job-1")
	ctx = services.WithRequestID(ctx, "req-9")
	WithContext(ctx, logger).Info("submitted")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("decode record %q: %v", data, err)
	}
	if record[FieldJobID] != "job-1" || record[FieldCorrelationID] != "req-9" {
		t.Fatalf("context fields missing: %v", record)
	}
	if record["level"] != "info" {
		t.Fatalf("level = %v, want info", record["level"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key: %v", record)
	}
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unsupported level")
	}
}

func TestConsoleHandlerWithAttrsKeepsSubject(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelInfo)).
		With(String(FieldComponent, "story-api"), String("base_url", "http://x"))
	logger.Info("request sent", String(FieldJobID, "j1"), Error(errors.New("boom")))

	line := buf.String()
	if !strings.Contains(line, "INFO story-api · Job j1: request sent base_url=http://x error=boom") {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestNewFromConfigCreatesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Logging.Format = "json"
	logger, err := NewFromConfig(&cfg, false)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Warn("probe")
	if _, err := os.Stat(cfg.LogFilePath()); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelInfo))
	WarnWithContext(logger, "notification failed", "ntfy_failed", String(FieldErrorHint, "check ntfy topic"))

	line := buf.String()
	for _, want := range []string{"event_type=ntfy_failed", `error_hint="check ntfy topic"`, "impact="} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should be disabled")
	}
	NewComponentLogger(nil, "x").Info("ignored")
}
