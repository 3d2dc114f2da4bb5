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

// Paths contains data and log directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// LLM contains the OpenAI-compatible inference connection used for text and
// vision calls. Provider selects between this client and [claude].
type LLM struct {
	Provider          string `toml:"provider"`
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	VisionModel       string `toml:"vision_model"`
	Referer           string `toml:"referer"`
	Title             string `toml:"title"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	MaxRetries        int    `toml:"max_retries"`
}

// Claude contains settings for the Anthropic Messages provider.
type Claude struct {
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	MaxTokens      int    `toml:"max_tokens"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Library contains configuration for the product library cache.
type Library struct {
	Backend           string  `toml:"backend"`
	Path              string  `toml:"path"`
	RedisAddr         string  `toml:"redis_addr"`
	RedisPassword     string  `toml:"redis_password"`
	RedisDB           int     `toml:"redis_db"`
	KeyPrefix         string  `toml:"key_prefix"`
	MinSaveConfidence float64 `toml:"min_save_confidence"`
}

// Evidence bounds the input accepted by the normalizer.
type Evidence struct {
	MaxItems        int   `toml:"max_items"`
	MaxPayloadBytes int64 `toml:"max_payload_bytes"`
	MaxTextChars    int   `toml:"max_text_chars"`
}

// Identify contains product identifier tuning.
type Identify struct {
	FetchTimeoutSeconds int     `toml:"fetch_timeout_seconds"`
	FetchRetries        int     `toml:"fetch_retries"`
	EarlyExitConfidence float64 `toml:"early_exit_confidence"`
	MaxRefinements      int     `toml:"max_refinements"`
	UserAgent           string  `toml:"user_agent"`
	MaxPageBytes        int64   `toml:"max_page_bytes"`
	BrandCatalogPath    string  `toml:"brand_catalog_path"`
}

// Aggregate contains multi-source aggregation tuning.
type Aggregate struct {
	MaxFrames           int     `toml:"max_frames"`
	CorroborationBonus  float64 `toml:"corroboration_bonus"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
}

// Enrich contains enrichment engine settings.
type Enrich struct {
	Enabled     bool `toml:"enabled"`
	Concurrency int  `toml:"concurrency"`
	YearAware   bool `toml:"year_aware"`
}

// Completeness contains census cross-check settings.
type Completeness struct {
	Smoothing               float64 `toml:"smoothing"`
	UnknownCensusConfidence float64 `toml:"unknown_census_confidence"`
}

// Validation contains per-product recommendation thresholds.
type Validation struct {
	AcceptThreshold float64 `toml:"accept_threshold"`
	ReviewThreshold float64 `toml:"review_threshold"`
	VisualWeight    float64 `toml:"visual_weight"`
}

// Learning contains correction quality gate and bias settings.
type Learning struct {
	Enabled             bool    `toml:"enabled"`
	Path                string  `toml:"path"`
	MinFinalConfidence  float64 `toml:"min_final_confidence"`
	MinCorrectedLength  int     `toml:"min_corrected_length"`
	MinProductNameAlnum int     `toml:"min_product_name_alnum"`
	BiasMinOccurrences  int     `toml:"bias_min_occurrences"`
}

// Server contains settings for the HTTP surface started by `teed serve`.
type Server struct {
	Bind           string   `toml:"bind"`
	AllowedOrigins []string `toml:"allowed_origins"`
	Mode           string   `toml:"mode"`
	StatsSchedule  string   `toml:"stats_schedule"`
	LockPath       string   `toml:"lock_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for teed.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - LLM / Claude: inference providers
//   - Library: product library cache backend
//   - Evidence: input limits
//   - Identify, Aggregate, Enrich, Completeness, Validation: pipeline tuning
//   - Learning: correction quality gate and persistence
//   - Server: HTTP surface
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	LLM          LLM          `toml:"llm"`
	Claude       Claude       `toml:"claude"`
	Library      Library      `toml:"library"`
	Evidence     Evidence     `toml:"evidence"`
	Identify     Identify     `toml:"identify"`
	Aggregate    Aggregate    `toml:"aggregate"`
	Enrich       Enrich       `toml:"enrich"`
	Completeness Completeness `toml:"completeness"`
	Validation   Validation   `toml:"validation"`
	Learning     Learning     `toml:"learning"`
	Server       Server       `toml:"server"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("teed.toml")
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

// EnsureDirectories creates the data and log directories plus the parent
// directories of the SQLite databases.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Library.Backend == LibraryBackendSQLite {
		dirs = append(dirs, filepath.Dir(c.Library.Path))
	}
	if c.Learning.Enabled {
		dirs = append(dirs, filepath.Dir(c.Learning.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
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
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the OpenAI-compatible connection settings.
type LLMConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	VisionModel       string
	Referer           string
	Title             string
	TimeoutSeconds    int
	RequestsPerMinute int
	MaxRetries        int
}

// GetLLM returns the OpenAI-compatible connection settings.
func (c *Config) GetLLM() LLMConfig {
	vision := strings.TrimSpace(c.LLM.VisionModel)
	if vision == "" {
		vision = strings.TrimSpace(c.LLM.Model)
	}
	return LLMConfig{
		APIKey:            strings.TrimSpace(c.LLM.APIKey),
		BaseURL:           strings.TrimSpace(c.LLM.BaseURL),
		Model:             strings.TrimSpace(c.LLM.Model),
		VisionModel:       vision,
		Referer:           strings.TrimSpace(c.LLM.Referer),
		Title:             strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds:    c.LLM.TimeoutSeconds,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
		MaxRetries:        c.LLM.MaxRetries,
	}
}

// InferenceConfigured reports whether the selected provider has credentials.
func (c *Config) InferenceConfigured() bool {
	switch c.LLM.Provider {
	case ProviderAnthropic:
		return strings.TrimSpace(c.Claude.APIKey) != ""
	default:
		return strings.TrimSpace(c.LLM.APIKey) != ""
	}
}

// RequireInference returns an actionable error when no provider credentials are set.
func (c *Config) RequireInference() error {
	if c.InferenceConfigured() {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	if c.LLM.Provider == ProviderAnthropic {
		return fmt.Errorf("claude.api_key is required. Set ANTHROPIC_API_KEY env var or edit %s (create with 'teed config init')", defaultPath)
	}
	return fmt.Errorf("llm.api_key is required. Set OPENROUTER_API_KEY env var or edit %s (create with 'teed config init')", defaultPath)
}

// FetchTimeout returns the page fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Identify.FetchTimeoutSeconds) * time.Second
}
