package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/brettericmartin/teed-sub011/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeysAndExpandsPaths(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "teed")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Library.Path != filepath.Join(wantData, "library.db") {
		t.Fatalf("unexpected library path: %q", cfg.Library.Path)
	}
	if cfg.LLM.APIKey != "or-key" {
		t.Fatalf("expected llm key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Claude.APIKey != "ant-key" {
		t.Fatalf("expected claude key from env, got %q", cfg.Claude.APIKey)
	}
	if cfg.Identify.EarlyExitConfidence != 0.85 {
		t.Fatalf("unexpected early exit default: %v", cfg.Identify.EarlyExitConfidence)
	}
	if cfg.Identify.FetchTimeoutSeconds != 8 {
		t.Fatalf("unexpected fetch timeout default: %d", cfg.Identify.FetchTimeoutSeconds)
	}
	if cfg.Evidence.MaxItems != 10 || cfg.Evidence.MaxPayloadBytes != 10*1024*1024 {
		t.Fatalf("unexpected evidence limits: %+v", cfg.Evidence)
	}
	if cfg.Aggregate.MaxFrames != 5 {
		t.Fatalf("unexpected max frames: %d", cfg.Aggregate.MaxFrames)
	}
	if cfg.Learning.MinFinalConfidence != 0.4 || cfg.Learning.MinCorrectedLength != 3 || cfg.Learning.MinProductNameAlnum != 5 {
		t.Fatalf("unexpected learning gate defaults: %+v", cfg.Learning)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "teed.toml")

	type payload struct {
		LLM struct {
			APIKey string `toml:"api_key"`
			Model  string `toml:"model"`
		} `toml:"llm"`
		Identify struct {
			EarlyExitConfidence float64 `toml:"early_exit_confidence"`
		} `toml:"identify"`
		Library struct {
			Path string `toml:"path"`
		} `toml:"library"`
	}
	custom := payload{}
	custom.LLM.APIKey = "abc123"
	custom.LLM.Model = "vendor/model-x"
	custom.Identify.EarlyExitConfidence = 0.9
	custom.Library.Path = filepath.Join(tempDir, "lib.db")

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.LLM.APIKey != "abc123" || cfg.LLM.Model != "vendor/model-x" {
		t.Fatalf("unexpected llm settings: %+v", cfg.LLM)
	}
	if got := cfg.GetLLM().VisionModel; got != "vendor/model-x" {
		t.Fatalf("expected vision model to fall back to model, got %q", got)
	}
	if cfg.Identify.EarlyExitConfidence != 0.9 {
		t.Fatalf("unexpected early exit: %v", cfg.Identify.EarlyExitConfidence)
	}
	if cfg.Library.Path != custom.Library.Path {
		t.Fatalf("unexpected library path: %q", cfg.Library.Path)
	}
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"early exit", func(c *config.Config) { c.Identify.EarlyExitConfidence = 1.5 }, "identify.early_exit_confidence"},
		{"backend", func(c *config.Config) { c.Library.Backend = "postgres" }, "library.backend"},
		{"provider", func(c *config.Config) { c.LLM.Provider = "local" }, "llm.provider"},
		{"max items", func(c *config.Config) { c.Evidence.MaxItems = 0 }, "evidence.max_items"},
		{"smoothing", func(c *config.Config) { c.Completeness.Smoothing = -1 }, "completeness.smoothing"},
		{"thresholds", func(c *config.Config) {
			c.Validation.ReviewThreshold = 0.9
			c.Validation.AcceptThreshold = 0.5
		}, "validation.review_threshold"},
		{"schedule", func(c *config.Config) { c.Server.StatsSchedule = "every tuesday" }, "server.stats_schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Library.Path = filepath.Join(t.TempDir(), "library.db")
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q in %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestRequireInferenceByProvider(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireInference(); err == nil || !strings.Contains(err.Error(), "llm.api_key") {
		t.Fatalf("expected llm.api_key error, got %v", err)
	}
	cfg.LLM.Provider = config.ProviderAnthropic
	if err := cfg.RequireInference(); err == nil || !strings.Contains(err.Error(), "claude.api_key") {
		t.Fatalf("expected claude.api_key error, got %v", err)
	}
	cfg.Claude.APIKey = "k"
	if err := cfg.RequireInference(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Library.Backend != config.LibraryBackendSQLite {
		t.Fatalf("unexpected backend: %q", cfg.Library.Backend)
	}
}
