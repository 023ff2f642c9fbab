package config

const (
	defaultDataDir                  = "~/.local/share/framecast"
	defaultLogDir                   = "~/.local/share/framecast/logs"
	defaultAPIBind                  = "127.0.0.1:7600"
	defaultInlineThresholdKB        = 350
	defaultCompression              = "zstd"
	defaultCompressionRatio         = 0.8
	defaultRetryMaxAttempts         = 3
	defaultRetryBaseDelayMS         = 200
	defaultRetryMaxDelayMS          = 5000
	defaultRetryJitter              = 0.2
	defaultSyncBudgetSeconds        = 25
	defaultSafetyMarginSeconds      = 5
	defaultAsyncWorkers             = 2
	defaultMinVisualsPerScene       = 2
	defaultMaxAudioDriftSeconds     = 2.0
	defaultDurationToleranceSeconds = 0.5
	defaultHookMinSeconds           = 3
	defaultHookMaxSeconds           = 15
	defaultConclusionMinSeconds     = 5
	defaultConclusionMaxSeconds     = 30
	defaultNarrationVoice           = "narrator-neutral"
	defaultWordsPerMinute           = 150
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultNotifyRequestTimeout     = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Store: Store{
			InlineThresholdKB: defaultInlineThresholdKB,
			Compression:       defaultCompression,
			CompressionRatio:  defaultCompressionRatio,
		},
		Retry: Retry{
			MaxAttempts: defaultRetryMaxAttempts,
			BaseDelayMS: defaultRetryBaseDelayMS,
			MaxDelayMS:  defaultRetryMaxDelayMS,
			Jitter:      defaultRetryJitter,
		},
		Pipeline: Pipeline{
			SyncBudgetSeconds:   defaultSyncBudgetSeconds,
			SafetyMarginSeconds: defaultSafetyMarginSeconds,
			AsyncWorkers:        defaultAsyncWorkers,
			OptionalStages:      []string{"media"},
		},
		Policy: Policy{
			MinVisualsPerScene:   defaultMinVisualsPerScene,
			AllowPlaceholders:    false,
			RequireMasterAudio:   true,
			RequireAudioParity:   true,
			MaxAudioDriftSeconds: defaultMaxAudioDriftSeconds,
		},
		Schema: Schema{
			DurationToleranceSeconds: defaultDurationToleranceSeconds,
			HookMinSeconds:           defaultHookMinSeconds,
			HookMaxSeconds:           defaultHookMaxSeconds,
			ConclusionMinSeconds:     defaultConclusionMinSeconds,
			ConclusionMaxSeconds:     defaultConclusionMaxSeconds,
		},
		Narration: Narration{
			Voice:          defaultNarrationVoice,
			WordsPerMinute: defaultWordsPerMinute,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			QualityGate:    true,
			Pipeline:       true,
			Errors:         true,
		},
	}
}
