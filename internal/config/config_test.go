package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curator/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
[paths]
downloading_dir = "`+filepath.Join(dir, "down")+`"
completed_dir = "`+filepath.Join(dir, "done")+`"
library_dir = "`+filepath.Join(dir, "lib")+`"

[watch]
quiet_window_seconds = 2

[classifier]
api_key = "test-key"
model = "test/model"
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Watch.QuietWindowSeconds != 2 {
		t.Fatalf("quiet_window_seconds = %d, want 2", cfg.Watch.QuietWindowSeconds)
	}
	if cfg.Classifier.Model != "test/model" {
		t.Fatalf("model = %q, want test/model", cfg.Classifier.Model)
	}
	// Untouched sections keep defaults.
	if cfg.Worker.MaxAttempts != 3 {
		t.Fatalf("max_attempts = %d, want default 3", cfg.Worker.MaxAttempts)
	}
	if cfg.Worker.StallTimeoutSeconds != 30 {
		t.Fatalf("stall_timeout_seconds = %d, want default 30", cfg.Worker.StallTimeoutSeconds)
	}
	if cfg.Library.UnsortedDir != "Unsorted" {
		t.Fatalf("unsorted_dir = %q, want Unsorted", cfg.Library.UnsortedDir)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("logging format = %q, want console", cfg.Logging.Format)
	}
}

func TestLoadRequiresAPIKeyUnlessDryRun(t *testing.T) {
	t.Setenv("CURATOR_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	dir := t.TempDir()
	base := `
[paths]
downloading_dir = "` + filepath.Join(dir, "down") + `"
completed_dir = "` + filepath.Join(dir, "done") + `"
library_dir = "` + filepath.Join(dir, "lib") + `"
`

	if _, _, _, err := config.Load(writeConfig(t, base)); err == nil {
		t.Fatal("expected missing api key error")
	} else if !strings.Contains(err.Error(), "classifier.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, _, _, err := config.Load(writeConfig(t, base+"\n[classifier]\ndry_run = true\n"))
	if err != nil {
		t.Fatalf("Load with dry_run: %v", err)
	}
	if !cfg.Classifier.DryRun {
		t.Fatal("expected dry_run to be set")
	}
}

func TestLoadAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("CURATOR_API_KEY", "env-key")

	dir := t.TempDir()
	cfg, _, _, err := config.Load(writeConfig(t, `
[paths]
downloading_dir = "`+filepath.Join(dir, "down")+`"
completed_dir = "`+filepath.Join(dir, "done")+`"
library_dir = "`+filepath.Join(dir, "lib")+`"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Classifier.APIKey != "env-key" {
		t.Fatalf("api_key = %q, want env-key", cfg.Classifier.APIKey)
	}
}

func TestValidateRejectsOverlappingRoots(t *testing.T) {
	dir := t.TempDir()
	same := filepath.Join(dir, "both")
	_, _, _, err := config.Load(writeConfig(t, `
[paths]
downloading_dir = "`+same+`"
completed_dir = "`+same+`"
library_dir = "`+filepath.Join(dir, "lib")+`"

[classifier]
dry_run = true
`))
	if err == nil {
		t.Fatal("expected overlap error")
	}
	if !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateWorkerBounds(t *testing.T) {
	dir := t.TempDir()
	_, _, _, err := config.Load(writeConfig(t, `
[paths]
downloading_dir = "`+filepath.Join(dir, "down")+`"
completed_dir = "`+filepath.Join(dir, "done")+`"
library_dir = "`+filepath.Join(dir, "lib")+`"

[worker]
poll_interval_seconds = 30
stall_timeout_seconds = 30

[classifier]
dry_run = true
`))
	if err == nil {
		t.Fatal("expected stall timeout error")
	}
	if !strings.Contains(err.Error(), "stall_timeout_seconds") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestManagerReloadNotifiesSubscribers(t *testing.T) {
	dir := t.TempDir()
	body := `
[paths]
downloading_dir = "` + filepath.Join(dir, "down") + `"
completed_dir = "` + filepath.Join(dir, "done") + `"
library_dir = "` + filepath.Join(dir, "lib") + `"

[watch]
quiet_window_seconds = 5

[classifier]
dry_run = true
`
	path := writeConfig(t, body)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	mgr := config.NewManager(path, cfg, nil)
	var gotOld, gotNew *config.Config
	mgr.Subscribe(func(previous, current *config.Config) {
		gotOld, gotNew = previous, current
	})

	updated := strings.Replace(body, "quiet_window_seconds = 5", "quiet_window_seconds = 9", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	reloaded, err := mgr.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if reloaded.Watch.QuietWindowSeconds != 9 {
		t.Fatalf("quiet_window_seconds = %d, want 9", reloaded.Watch.QuietWindowSeconds)
	}
	if mgr.Current() != reloaded {
		t.Fatal("Current should return the reloaded snapshot")
	}
	if gotOld != cfg || gotNew != reloaded {
		t.Fatal("subscriber did not receive old and new snapshots")
	}
}

func TestManagerReloadKeepsSnapshotOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
[paths]
downloading_dir = "`+filepath.Join(dir, "down")+`"
completed_dir = "`+filepath.Join(dir, "done")+`"
library_dir = "`+filepath.Join(dir, "lib")+`"

[classifier]
dry_run = true
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mgr := config.NewManager(path, cfg, nil)

	if err := os.WriteFile(path, []byte("not [valid toml"), 0o644); err != nil {
		t.Fatalf("corrupt config: %v", err)
	}
	if _, err := mgr.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if mgr.Current() != cfg {
		t.Fatal("failed reload must keep the previous snapshot")
	}
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := config.ExpandPath("~/library")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "library") {
		t.Fatalf("ExpandPath = %q, want %q", got, filepath.Join(home, "library"))
	}
}
