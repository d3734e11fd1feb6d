package config

const (
	defaultDataDir          = "~/.local/share/revoice"
	defaultAudioDir         = "~/.local/share/revoice/audio"
	defaultExportDir        = "~/revoice-exports"
	defaultLogDir           = "~/.local/share/revoice/logs"
	defaultSocketPath       = "~/.local/share/revoice/revoice.sock"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60

	defaultTranscriberBaseURL = "http://127.0.0.1:8020"
	defaultTranscriberModel   = "whisper-1"
	defaultTranscriberTimeout = 600

	defaultRewriterBaseURL   = "https://openrouter.ai/api/v1/chat/completions"
	defaultRewriterModel     = "google/gemini-3-flash-preview"
	defaultRewriterMaxTokens = 4096
	defaultRewriterTimeout   = 120

	defaultSpeechBaseURL = "http://127.0.0.1:8880"
	defaultSpeechModel   = "kokoro"
	defaultSpeechFormat  = "mp3"
	defaultSpeechTimeout = 600

	defaultNotifyRequestTimeout     = 10
	defaultNotifyDedupWindowSeconds = 600

	defaultWorkflowQueuePollInterval  = 5
	defaultWorkflowErrorRetryInterval = 10
	defaultWorkflowSettleDelayMillis  = 200
	defaultWorkflowHeartbeatInterval  = 15
	defaultWorkflowHeartbeatTimeout   = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			AudioDir:   defaultAudioDir,
			ExportDir:  defaultExportDir,
			LogDir:     defaultLogDir,
			SocketPath: defaultSocketPath,
		},
		Transcriber: Transcriber{
			BaseURL:        defaultTranscriberBaseURL,
			Model:          defaultTranscriberModel,
			TimeoutSeconds: defaultTranscriberTimeout,
		},
		Rewriter: Rewriter{
			BaseURL:        defaultRewriterBaseURL,
			Model:          defaultRewriterModel,
			MaxTokens:      defaultRewriterMaxTokens,
			TimeoutSeconds: defaultRewriterTimeout,
		},
		Speech: Speech{
			BaseURL:        defaultSpeechBaseURL,
			Model:          defaultSpeechModel,
			Format:         defaultSpeechFormat,
			TimeoutSeconds: defaultSpeechTimeout,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			Batch:              true,
			Review:             true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupWindowSeconds,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultWorkflowQueuePollInterval,
			ErrorRetryInterval: defaultWorkflowErrorRetryInterval,
			SettleDelayMillis:  defaultWorkflowSettleDelayMillis,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
