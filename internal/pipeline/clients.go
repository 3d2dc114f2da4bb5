package pipeline

import (
	"log/slog"

	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/inference"
	"github.com/brettericmartin/teed-sub011/internal/services/claude"
	"github.com/brettericmartin/teed-sub011/internal/services/llm"
)

// NewInferenceClient builds the configured provider client behind the request
// pacer. It returns nil when the provider has no credentials, which makes
// every inference call fail with a configuration error.
func NewInferenceClient(cfg *config.Config, logger *slog.Logger) inference.Client {
	if cfg == nil || !cfg.InferenceConfigured() {
		return nil
	}
	var client inference.Client
	switch cfg.LLM.Provider {
	case config.ProviderAnthropic:
		client = claude.NewClient(claude.Config{
			APIKey:         cfg.Claude.APIKey,
			Model:          cfg.Claude.Model,
			MaxTokens:      cfg.Claude.MaxTokens,
			TimeoutSeconds: cfg.Claude.TimeoutSeconds,
			MaxRetries:     cfg.LLM.MaxRetries,
		}, logger)
	default:
		settings := cfg.GetLLM()
		var opts []llm.Option
		if settings.MaxRetries > 0 {
			opts = append(opts, llm.WithRetryMaxAttempts(settings.MaxRetries))
		}
		client = llm.NewClient(llm.Config{
			APIKey:         settings.APIKey,
			BaseURL:        settings.BaseURL,
			Model:          settings.Model,
			VisionModel:    settings.VisionModel,
			Referer:        settings.Referer,
			Title:          settings.Title,
			TimeoutSeconds: settings.TimeoutSeconds,
		}, opts...)
	}
	return inference.NewRateLimited(client, cfg.LLM.RequestsPerMinute)
}
