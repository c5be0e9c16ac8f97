package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DownloadingDir) == "" {
		return errors.New("paths.downloading_dir must be set")
	}
	if strings.TrimSpace(c.Paths.CompletedDir) == "" {
		return errors.New("paths.completed_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if c.Paths.DownloadingDir == c.Paths.CompletedDir {
		return errors.New("paths.downloading_dir and paths.completed_dir must differ")
	}
	if c.Paths.LibraryDir == c.Paths.DownloadingDir || c.Paths.LibraryDir == c.Paths.CompletedDir {
		return errors.New("paths.library_dir must not overlap the watched directories")
	}
	return nil
}

func (c *Config) validateWatch() error {
	return ensurePositiveMap(map[string]int{
		"watch.quiet_window_seconds":       c.Watch.QuietWindowSeconds,
		"watch.missing_file_grace_seconds": c.Watch.MissingFileGraceSeconds,
	})
}

func (c *Config) validateWorker() error {
	if err := ensurePositiveMap(map[string]int{
		"worker.poll_interval_seconds":   c.Worker.PollIntervalSeconds,
		"worker.max_attempts":            c.Worker.MaxAttempts,
		"worker.backoff_base_seconds":    c.Worker.BackoffBaseSeconds,
		"worker.completed_grace_seconds": c.Worker.CompletedGraceSeconds,
	}); err != nil {
		return err
	}
	if c.Worker.StallTimeoutSeconds <= 0 {
		return errors.New("worker.stall_timeout_seconds must be positive")
	}
	if c.Worker.StallTimeoutSeconds <= c.Worker.PollIntervalSeconds {
		return errors.New("worker.stall_timeout_seconds must be greater than worker.poll_interval_seconds")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	if c.Classifier.DryRun {
		return nil
	}
	if c.Classifier.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/curator/config.toml"
		}
		return fmt.Errorf("classifier.api_key is required. Set CURATOR_API_KEY env var or edit %s (create with 'curator config init')", defaultPath)
	}
	if strings.TrimSpace(c.Classifier.BaseURL) == "" {
		return errors.New("classifier.base_url must be set")
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		return errors.New("classifier.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
