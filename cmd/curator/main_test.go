package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"curator/internal/config"
	"curator/internal/queue"
	"curator/internal/testsupport"
)

// writeConfigFile serializes a test config so the CLI loads it like a user's
// file. The socket inside the temp dir never exists, which exercises the
// direct-store fallback.
func writeConfigFile(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestQueueListEmptyFallsBackToStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeConfigFile(t, cfg)

	out, err := runCommand(t, "--config", path, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Queue is empty") {
		t.Fatalf("expected empty-queue message, got:\n%s", out)
	}
}

func TestQueueListShowsSeededJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeConfigFile(t, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewJob(t, store, filepath.Join(cfg.Paths.DownloadingDir, "Show.S01E01.mkv"))

	out, err := runCommand(t, "--config", path, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Show.S01E01.mkv") {
		t.Fatalf("expected job filename in output, got:\n%s", out)
	}
	if !strings.Contains(out, "queued") {
		t.Fatalf("expected queued status in output, got:\n%s", out)
	}
}

func TestQueueRetryFallsBackToStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeConfigFile(t, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, filepath.Join(cfg.Paths.DownloadingDir, "Broken.mkv"))

	ctx := context.Background()
	if _, err := store.Update(ctx, job.ID, func(j *queue.Job) error {
		j.Status = queue.StatusProcessing
		return nil
	}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := store.Update(ctx, job.ID, func(j *queue.Job) error {
		j.SetFailed("gateway unreachable")
		return nil
	}); err != nil {
		t.Fatalf("fail: %v", err)
	}

	out, err := runCommand(t, "--config", path, "queue", "retry")
	if err != nil {
		t.Fatalf("queue retry: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Re-queued 1") {
		t.Fatalf("expected one re-queued job, got:\n%s", out)
	}

	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != queue.StatusQueued {
		t.Fatalf("expected queued, got %s", reloaded.Status)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[classifier]") {
		t.Fatal("sample config should contain a [classifier] section")
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
}

func TestConfigShowPrintsPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeConfigFile(t, cfg)

	out, err := runCommand(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v\n%s", err, out)
	}
	if !strings.Contains(out, cfg.Paths.LibraryDir) {
		t.Fatalf("expected library dir in output, got:\n%s", out)
	}
}

func TestBuildQueueStatsRowsOrdersByLifecycle(t *testing.T) {
	rows := buildQueueStatsRows(map[string]int{
		"failed":     2,
		"queued":     3,
		"completed":  1,
		"processing": 0,
	})
	if len(rows) != 3 {
		t.Fatalf("zero counts should be skipped, got %d rows", len(rows))
	}
	if rows[0][0] != "queued" || rows[1][0] != "completed" || rows[2][0] != "failed" {
		t.Fatalf("unexpected ordering: %v", rows)
	}
}
