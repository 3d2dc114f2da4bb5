package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable. Provider credentials are
// checked separately by RequireInference so offline commands keep working.
func (c *Config) Validate() error {
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateEvidence(); err != nil {
		return err
	}
	if err := c.validateThresholds(); err != nil {
		return err
	}
	if err := c.validateLearning(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProviders() error {
	switch c.LLM.Provider {
	case ProviderOpenRouter, ProviderAnthropic:
	default:
		return fmt.Errorf("llm.provider must be %q or %q", ProviderOpenRouter, ProviderAnthropic)
	}
	if c.LLM.RequestsPerMinute < 0 {
		return errors.New("llm.requests_per_minute must be >= 0 (0 disables pacing)")
	}
	return nil
}

func (c *Config) validateLibrary() error {
	switch c.Library.Backend {
	case LibraryBackendSQLite:
		if c.Library.Path == "" {
			return errors.New("library.path must be set when library.backend is sqlite")
		}
	case LibraryBackendRedis:
		if c.Library.RedisAddr == "" {
			return errors.New("library.redis_addr must be set when library.backend is redis")
		}
	default:
		return fmt.Errorf("library.backend must be %q or %q", LibraryBackendSQLite, LibraryBackendRedis)
	}
	return ensureUnitInterval(map[string]float64{
		"library.min_save_confidence": c.Library.MinSaveConfidence,
	})
}

func (c *Config) validateEvidence() error {
	if err := ensurePositiveMap(map[string]int{
		"evidence.max_items":              c.Evidence.MaxItems,
		"evidence.max_text_chars":         c.Evidence.MaxTextChars,
		"identify.fetch_timeout_seconds":  c.Identify.FetchTimeoutSeconds,
		"aggregate.max_frames":            c.Aggregate.MaxFrames,
		"enrich.concurrency":              c.Enrich.Concurrency,
		"learning.min_corrected_length":   c.Learning.MinCorrectedLength,
		"learning.min_product_name_alnum": c.Learning.MinProductNameAlnum,
		"learning.bias_min_occurrences":   c.Learning.BiasMinOccurrences,
	}); err != nil {
		return err
	}
	if c.Evidence.MaxPayloadBytes <= 0 {
		return errors.New("evidence.max_payload_bytes must be positive")
	}
	if c.Identify.MaxRefinements < 0 {
		return errors.New("identify.max_refinements must be >= 0")
	}
	return nil
}

func (c *Config) validateThresholds() error {
	if err := ensureUnitInterval(map[string]float64{
		"identify.early_exit_confidence":         c.Identify.EarlyExitConfidence,
		"aggregate.corroboration_bonus":          c.Aggregate.CorroborationBonus,
		"aggregate.similarity_threshold":         c.Aggregate.SimilarityThreshold,
		"completeness.unknown_census_confidence": c.Completeness.UnknownCensusConfidence,
		"validation.accept_threshold":            c.Validation.AcceptThreshold,
		"validation.review_threshold":            c.Validation.ReviewThreshold,
		"validation.visual_weight":               c.Validation.VisualWeight,
		"learning.min_final_confidence":          c.Learning.MinFinalConfidence,
	}); err != nil {
		return err
	}
	if c.Completeness.Smoothing < 0 {
		return errors.New("completeness.smoothing must be >= 0")
	}
	if c.Validation.ReviewThreshold > c.Validation.AcceptThreshold {
		return errors.New("validation.review_threshold must not exceed validation.accept_threshold")
	}
	return nil
}

func (c *Config) validateLearning() error {
	if c.Learning.Enabled && c.Learning.Path == "" {
		return errors.New("learning.path must be set when learning.enabled is true")
	}
	return nil
}

func (c *Config) validateServer() error {
	switch c.Server.Mode {
	case "release", "debug", "test":
	default:
		return errors.New("server.mode must be release, debug, or test")
	}
	if c.Server.StatsSchedule != "" {
		if _, err := cron.ParseStandard(c.Server.StatsSchedule); err != nil {
			return fmt.Errorf("server.stats_schedule: %w", err)
		}
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

func ensureUnitInterval(values map[string]float64) error {
	for key, value := range values {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", key)
		}
	}
	return nil
}
