package config

const (
	defaultDownloadingDir         = "~/downloads/downloading"
	defaultCompletedDir           = "~/downloads/completed"
	defaultLibraryDir             = "~/library"
	defaultDataDir                = "~/.local/share/curator"
	defaultLogDir                 = "~/.local/share/curator/logs"
	defaultSocketPath             = "~/.local/share/curator/curator.sock"
	defaultQuietWindowSeconds     = 5
	defaultMissingFileGrace       = 5
	defaultPollIntervalSeconds    = 1
	defaultStallTimeoutSeconds    = 30
	defaultMaxAttempts            = 3
	defaultBackoffBaseSeconds     = 10
	defaultCompletedGraceSeconds  = 1
	defaultClassifierBaseURL      = "https://openrouter.ai/api/v1/chat/completions"
	defaultClassifierModel        = "google/gemini-3-flash-preview"
	defaultClassifierTitle        = "Curator Library Classifier"
	defaultClassifierTimeout      = 60
	defaultInstructionsPath       = "~/.config/curator/instructions.md"
	defaultUnsortedDir            = "Unsorted"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 60
	defaultNotifyRequestTimeout   = 10
	defaultNotifyDedupWindowSecs  = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadingDir: defaultDownloadingDir,
			CompletedDir:   defaultCompletedDir,
			LibraryDir:     defaultLibraryDir,
			DataDir:        defaultDataDir,
			LogDir:         defaultLogDir,
			SocketPath:     defaultSocketPath,
		},
		Watch: Watch{
			QuietWindowSeconds:      defaultQuietWindowSeconds,
			MissingFileGraceSeconds: defaultMissingFileGrace,
		},
		Worker: Worker{
			PollIntervalSeconds:   defaultPollIntervalSeconds,
			StallTimeoutSeconds:   defaultStallTimeoutSeconds,
			MaxAttempts:           defaultMaxAttempts,
			BackoffBaseSeconds:    defaultBackoffBaseSeconds,
			CompletedGraceSeconds: defaultCompletedGraceSeconds,
		},
		Classifier: Classifier{
			BaseURL:          defaultClassifierBaseURL,
			Model:            defaultClassifierModel,
			Title:            defaultClassifierTitle,
			TimeoutSeconds:   defaultClassifierTimeout,
			InstructionsPath: defaultInstructionsPath,
		},
		Library: Library{
			UnsortedDir: defaultUnsortedDir,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			Classification:     true,
			Organization:       true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupWindowSecs,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
