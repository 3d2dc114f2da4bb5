package config

const (
	defaultConfigPath = "~/.config/teed/config.toml"
	defaultDataDir    = "~/.local/share/teed"
	defaultLogDir     = "~/.local/share/teed/logs"
	defaultLogFormat  = "console"
	defaultLogLevel   = "info"

	// ProviderOpenRouter selects the OpenAI-compatible chat completions client.
	ProviderOpenRouter = "openrouter"
	// ProviderAnthropic selects the Anthropic Messages client.
	ProviderAnthropic = "anthropic"

	// LibraryBackendSQLite stores library entries in a local SQLite database.
	LibraryBackendSQLite = "sqlite"
	// LibraryBackendRedis stores library entries in Redis hashes.
	LibraryBackendRedis = "redis"

	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "google/gemini-3-flash-preview"
	defaultLLMReferer           = "https://github.com/brettericmartin/teed"
	defaultLLMTitle             = "Teed Product Identification"
	defaultLLMTimeoutSeconds    = 60
	defaultLLMRequestsPerMinute = 60
	defaultLLMMaxRetries        = 3

	defaultClaudeModel          = "claude-sonnet-4-5"
	defaultClaudeMaxTokens      = 4096
	defaultClaudeTimeoutSeconds = 90

	defaultLibraryPath              = "~/.local/share/teed/library.db"
	defaultLibraryRedisAddr         = "localhost:6379"
	defaultLibraryKeyPrefix         = "teed:library:"
	defaultLibraryMinSaveConfidence = 0.7

	defaultEvidenceMaxItems        = 10
	defaultEvidenceMaxPayloadBytes = 10 * 1024 * 1024
	defaultEvidenceMaxTextChars    = 20000

	defaultFetchTimeoutSeconds = 8
	defaultFetchRetries        = 2
	defaultEarlyExitConfidence = 0.85
	defaultMaxRefinements      = 3
	defaultUserAgent           = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultMaxPageBytes        = 100000

	defaultMaxFrames           = 5
	defaultCorroborationBonus  = 0.10
	defaultSimilarityThreshold = 0.8

	defaultEnrichConcurrency = 4

	defaultCompletenessSmoothing = 1.0
	defaultUnknownCensusConf     = 0.5

	defaultAcceptThreshold = 0.75
	defaultReviewThreshold = 0.4
	defaultVisualWeight    = 0.3

	defaultLearningPath        = "~/.local/share/teed/corrections.db"
	defaultMinFinalConfidence  = 0.4
	defaultMinCorrectedLength  = 3
	defaultMinProductNameAlnum = 5
	defaultBiasMinOccurrences  = 2

	defaultServerBind          = "127.0.0.1:7390"
	defaultServerMode          = "release"
	defaultServerStatsSchedule = "@hourly"
	defaultServerLockPath      = "~/.local/share/teed/serve.lock"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		LLM: LLM{
			Provider:          ProviderOpenRouter,
			BaseURL:           defaultLLMBaseURL,
			Model:             defaultLLMModel,
			Referer:           defaultLLMReferer,
			Title:             defaultLLMTitle,
			TimeoutSeconds:    defaultLLMTimeoutSeconds,
			RequestsPerMinute: defaultLLMRequestsPerMinute,
			MaxRetries:        defaultLLMMaxRetries,
		},
		Claude: Claude{
			Model:          defaultClaudeModel,
			MaxTokens:      defaultClaudeMaxTokens,
			TimeoutSeconds: defaultClaudeTimeoutSeconds,
		},
		Library: Library{
			Backend:           LibraryBackendSQLite,
			Path:              defaultLibraryPath,
			RedisAddr:         defaultLibraryRedisAddr,
			KeyPrefix:         defaultLibraryKeyPrefix,
			MinSaveConfidence: defaultLibraryMinSaveConfidence,
		},
		Evidence: Evidence{
			MaxItems:        defaultEvidenceMaxItems,
			MaxPayloadBytes: defaultEvidenceMaxPayloadBytes,
			MaxTextChars:    defaultEvidenceMaxTextChars,
		},
		Identify: Identify{
			FetchTimeoutSeconds: defaultFetchTimeoutSeconds,
			FetchRetries:        defaultFetchRetries,
			EarlyExitConfidence: defaultEarlyExitConfidence,
			MaxRefinements:      defaultMaxRefinements,
			UserAgent:           defaultUserAgent,
			MaxPageBytes:        defaultMaxPageBytes,
		},
		Aggregate: Aggregate{
			MaxFrames:           defaultMaxFrames,
			CorroborationBonus:  defaultCorroborationBonus,
			SimilarityThreshold: defaultSimilarityThreshold,
		},
		Enrich: Enrich{
			Enabled:     true,
			Concurrency: defaultEnrichConcurrency,
			YearAware:   true,
		},
		Completeness: Completeness{
			Smoothing:               defaultCompletenessSmoothing,
			UnknownCensusConfidence: defaultUnknownCensusConf,
		},
		Validation: Validation{
			AcceptThreshold: defaultAcceptThreshold,
			ReviewThreshold: defaultReviewThreshold,
			VisualWeight:    defaultVisualWeight,
		},
		Learning: Learning{
			Enabled:             true,
			Path:                defaultLearningPath,
			MinFinalConfidence:  defaultMinFinalConfidence,
			MinCorrectedLength:  defaultMinCorrectedLength,
			MinProductNameAlnum: defaultMinProductNameAlnum,
			BiasMinOccurrences:  defaultBiasMinOccurrences,
		},
		Server: Server{
			Bind:          defaultServerBind,
			Mode:          defaultServerMode,
			StatsSchedule: defaultServerStatsSchedule,
			LockPath:      defaultServerLockPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
