package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curator/internal/logging"
	"curator/internal/services"
)

func TestNewJSONWritesStructuredLines(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "curator.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("job classified",
		logging.String(logging.FieldComponent, "workflow"),
		logging.String(logging.FieldJobID, "abc-123"),
		logging.Int(logging.FieldAttempt, 2),
	)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("unmarshal log line %q: %v", line, err)
	}
	if entry["msg"] != "job classified" {
		t.Fatalf("msg = %v, want job classified", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Fatalf("level = %v, want info", entry["level"])
	}
	if entry["component"] != "workflow" {
		t.Fatalf("component = %v, want workflow", entry["component"])
	}
	if entry["job_id"] != "abc-123" {
		t.Fatalf("job_id = %v, want abc-123", entry["job_id"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("expected ts field in log entry")
	}
}

func TestNewConsoleIncludesComponentAndAttrs(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "console.log")

	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Debug("watch event",
		logging.String(logging.FieldComponent, "watchfs"),
		logging.String(logging.FieldPath, "/downloads/show.mkv"),
	)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.Contains(line, "DEBUG") {
		t.Fatalf("line %q missing level label", line)
	}
	if !strings.Contains(line, "watchfs:") {
		t.Fatalf("line %q missing component prefix", line)
	}
	if !strings.Contains(line, "path=/downloads/show.mkv") {
		t.Fatalf("line %q missing path attribute", line)
	}
}

func TestNewLevelFiltersBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "filtered.log")

	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("dropped")
	logger.Warn("kept")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if strings.Contains(content, "dropped") {
		t.Fatal("info entry should have been filtered")
	}
	if !strings.Contains(content, "kept") {
		t.Fatal("warn entry should have been written")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	if attrs := logging.ContextFields(ctx); len(attrs) != 0 {
		t.Fatalf("expected no attrs for empty context, got %d", len(attrs))
	}

	ctx = services.WithComponent(ctx, "classifier")
	ctx = services.WithJobID(ctx, "job-9")
	ctx = services.WithRequestID(ctx, "req-1")

	attrs := logging.ContextFields(ctx)
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attrs, got %d", len(attrs))
	}
	got := map[string]string{}
	for _, attr := range attrs {
		got[attr.Key] = attr.Value.String()
	}
	want := map[string]string{
		logging.FieldComponent:     "classifier",
		logging.FieldJobID:         "job-9",
		logging.FieldCorrelationID: "req-1",
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("attr %s = %q, want %q", key, got[key], value)
		}
	}
}

func TestNewComponentLogger(t *testing.T) {
	logger := logging.NewComponentLogger(nil, "organizer")
	if logger == nil {
		t.Fatal("expected logger")
	}
	logger.Info("no output expected")
}
