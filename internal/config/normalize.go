package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeClassifier(); err != nil {
		return err
	}
	c.normalizeWatch()
	c.normalizeWorker()
	c.normalizeLibrary()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DownloadingDir, err = expandPath(c.Paths.DownloadingDir); err != nil {
		return fmt.Errorf("paths.downloading_dir: %w", err)
	}
	if c.Paths.CompletedDir, err = expandPath(c.Paths.CompletedDir); err != nil {
		return fmt.Errorf("paths.completed_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = defaultSocketPath
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeClassifier() error {
	c.Classifier.APIKey = strings.TrimSpace(c.Classifier.APIKey)
	if c.Classifier.APIKey == "" {
		if value, ok := os.LookupEnv("CURATOR_API_KEY"); ok {
			c.Classifier.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Classifier.APIKey = strings.TrimSpace(value)
		}
	}
	c.Classifier.BaseURL = strings.TrimSpace(c.Classifier.BaseURL)
	if c.Classifier.BaseURL == "" {
		c.Classifier.BaseURL = defaultClassifierBaseURL
	}
	c.Classifier.Model = strings.TrimSpace(c.Classifier.Model)
	if c.Classifier.Model == "" {
		c.Classifier.Model = defaultClassifierModel
	}
	c.Classifier.Referer = strings.TrimSpace(c.Classifier.Referer)
	c.Classifier.Title = strings.TrimSpace(c.Classifier.Title)
	if c.Classifier.Title == "" {
		c.Classifier.Title = defaultClassifierTitle
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = defaultClassifierTimeout
	}
	if strings.TrimSpace(c.Classifier.InstructionsPath) == "" {
		c.Classifier.InstructionsPath = defaultInstructionsPath
	}
	var err error
	if c.Classifier.InstructionsPath, err = expandPath(c.Classifier.InstructionsPath); err != nil {
		return fmt.Errorf("classifier.instructions_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeWatch() {
	if c.Watch.QuietWindowSeconds <= 0 {
		c.Watch.QuietWindowSeconds = defaultQuietWindowSeconds
	}
	if c.Watch.MissingFileGraceSeconds <= 0 {
		c.Watch.MissingFileGraceSeconds = defaultMissingFileGrace
	}
}

func (c *Config) normalizeWorker() {
	if c.Worker.PollIntervalSeconds <= 0 {
		c.Worker.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Worker.StallTimeoutSeconds <= 0 {
		c.Worker.StallTimeoutSeconds = defaultStallTimeoutSeconds
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = defaultMaxAttempts
	}
	if c.Worker.BackoffBaseSeconds <= 0 {
		c.Worker.BackoffBaseSeconds = defaultBackoffBaseSeconds
	}
	if c.Worker.CompletedGraceSeconds <= 0 {
		c.Worker.CompletedGraceSeconds = defaultCompletedGraceSeconds
	}
}

func (c *Config) normalizeLibrary() {
	c.Library.UnsortedDir = strings.Trim(strings.TrimSpace(c.Library.UnsortedDir), "/")
	if c.Library.UnsortedDir == "" {
		c.Library.UnsortedDir = defaultUnsortedDir
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
