package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/brettericmartin/teed-sub011/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.LLM.APIKey = "test"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Library.Path = filepath.Join(base, "data", "library.db")
	cfgVal.Learning.Path = filepath.Join(base, "data", "corrections.db")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Server.LockPath = filepath.Join(base, "serve.lock")
	cfgVal.Identify.FetchTimeoutSeconds = 2
	cfgVal.Identify.FetchRetries = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithoutInference clears provider credentials.
func WithoutInference() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = ""
		b.cfg.Claude.APIKey = ""
	}
}

// WithLearningDisabled turns off correction persistence.
func WithLearningDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Learning.Enabled = false
	}
}

// WithEnrichmentDisabled skips the enrichment stage.
func WithEnrichmentDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Enrich.Enabled = false
	}
}

// WithConfig applies an arbitrary mutation.
func WithConfig(fn func(cfg *config.Config)) ConfigOption {
	return func(b *configBuilder) {
		fn(b.cfg)
	}
}
