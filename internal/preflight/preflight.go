package preflight

import (
	"context"

	"github.com/brettericmartin/teed-sub011/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Options selects optional checks.
type Options struct {
	// Network enables checks that call the inference provider.
	Network bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckLibrary(ctx, cfg.Library),
	}
	if cfg.Learning.Enabled {
		results = append(results, CheckCorrections(ctx, cfg.Learning.Path))
	}
	results = append(results, CheckCatalog(cfg.Identify.BrandCatalogPath))
	results = append(results, CheckInference(ctx, cfg, opts.Network))
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
