package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	DownloadingDir string `toml:"downloading_dir"`
	CompletedDir   string `toml:"completed_dir"`
	LibraryDir     string `toml:"library_dir"`
	DataDir        string `toml:"data_dir"`
	LogDir         string `toml:"log_dir"`
	SocketPath     string `toml:"socket_path"`
}

// Watch contains configuration for filesystem watching and debounce.
type Watch struct {
	QuietWindowSeconds      int `toml:"quiet_window_seconds"`
	MissingFileGraceSeconds int `toml:"missing_file_grace_seconds"`
}

// Worker contains configuration for the queue worker loop.
type Worker struct {
	PollIntervalSeconds   int `toml:"poll_interval_seconds"`
	StallTimeoutSeconds   int `toml:"stall_timeout_seconds"`
	MaxAttempts           int `toml:"max_attempts"`
	BackoffBaseSeconds    int `toml:"backoff_base_seconds"`
	CompletedGraceSeconds int `toml:"completed_grace_seconds"`
}

// Classifier contains connection settings for the AI classification service.
type Classifier struct {
	APIKey           string `toml:"api_key"`
	BaseURL          string `toml:"base_url"`
	Model            string `toml:"model"`
	Referer          string `toml:"referer"`
	Title            string `toml:"title"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	InstructionsPath string `toml:"instructions_path"`
	DryRun           bool   `toml:"dry_run"`
}

// Library contains configuration for the destination library structure.
type Library struct {
	UnsortedDir       string `toml:"unsorted_dir"`
	OverwriteExisting bool   `toml:"overwrite_existing"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	Classification     bool   `toml:"classification"`
	Organization       bool   `toml:"organization"`
	Errors             bool   `toml:"errors"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Curator.
//
// Configuration sections by subsystem:
//   - Paths: watched directories, library root, data/log/socket locations
//   - Watch: debounce quiet window and missing-source grace period
//   - Worker: queue polling, stall detection, retry policy
//   - Classifier: AI classification service connection settings
//   - Library: destination layout and conflict rules
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Watch         Watch         `toml:"watch"`
	Worker        Worker        `toml:"worker"`
	Classifier    Classifier    `toml:"classifier"`
	Library       Library       `toml:"library"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/curator/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/curator/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("curator.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "curator.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "curator.lock")
}

// QuietWindow returns the debounce quiet window as a duration.
func (c *Config) QuietWindow() time.Duration {
	return time.Duration(c.Watch.QuietWindowSeconds) * time.Second
}

// MissingFileGrace returns how long a vanished source is tolerated before
// the job is purged.
func (c *Config) MissingFileGrace() time.Duration {
	return time.Duration(c.Watch.MissingFileGraceSeconds) * time.Second
}

// PollInterval returns the worker polling interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollIntervalSeconds) * time.Second
}

// StallTimeout returns how long ready work may sit untouched before the
// worker is considered stalled.
func (c *Config) StallTimeout() time.Duration {
	return time.Duration(c.Worker.StallTimeoutSeconds) * time.Second
}

// BackoffBase returns the base delay for retry backoff.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Worker.BackoffBaseSeconds) * time.Second
}

// CompletedGrace returns how long completed jobs stay visible before pruning.
func (c *Config) CompletedGrace() time.Duration {
	return time.Duration(c.Worker.CompletedGraceSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
