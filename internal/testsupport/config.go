// Package testsupport provides shared builders for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"curator/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The classifier runs in dry-run mode so nothing touches the network.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadingDir = filepath.Join(base, "downloading")
	cfg.Paths.CompletedDir = filepath.Join(base, "completed")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SocketPath = filepath.Join(base, "curator.sock")
	cfg.Classifier.DryRun = true

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithQuietWindow overrides the debounce quiet window in seconds.
func WithQuietWindow(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Watch.QuietWindowSeconds = seconds
	}
}

// WithMaxAttempts overrides the classification retry budget.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Worker.MaxAttempts = attempts
	}
}

// WithOverwrite enables overwriting existing library files on move.
func WithOverwrite() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Library.OverwriteExisting = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
