package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/identify"
	"github.com/brettericmartin/teed-sub011/internal/learning"
	"github.com/brettericmartin/teed-sub011/internal/library"
	"github.com/brettericmartin/teed-sub011/internal/services/llm"
)

const storeCheckTimeout = 5 * time.Second

// CheckLLM verifies that the OpenAI-compatible API is reachable and the key is
// valid. It uses a 30-second timeout and a single attempt.
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckInference reports whether the selected provider is usable. Without
// network it only checks credentials.
func CheckInference(ctx context.Context, cfg *config.Config, network bool) Result {
	name := "Inference (" + cfg.LLM.Provider + ")"
	if !cfg.InferenceConfigured() {
		return Result{Name: name, Detail: cfg.RequireInference().Error()}
	}
	if cfg.LLM.Provider == config.ProviderAnthropic {
		return Result{Name: name, Passed: true, Detail: "API key set (" + cfg.Claude.Model + ")"}
	}
	if !network {
		return Result{Name: name, Passed: true, Detail: "API key set (" + cfg.LLM.Model + ")"}
	}
	return CheckLLM(ctx, name, cfg.GetLLM())
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckLibrary opens the configured library backend and reads its stats.
func CheckLibrary(ctx context.Context, cfg config.Library) Result {
	name := "Library (" + cfg.Backend + ")"
	checkCtx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()

	store, err := library.Open(checkCtx, cfg, nil)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()
	stats, err := store.Stats(checkCtx, time.Now())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d entries, %d high confidence", stats.TotalEntries, stats.HighConfidence)}
}

// CheckCorrections opens the correction store.
func CheckCorrections(ctx context.Context, path string) Result {
	const name = "Corrections"
	checkCtx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()

	store, err := learning.OpenStore(checkCtx, path, nil)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()
	stats, err := store.Stats(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d corrections", stats.Total)}
}

// CheckCatalog loads the brand catalog with its optional override file.
func CheckCatalog(overridePath string) Result {
	const name = "Brand catalog"
	catalog, err := identify.LoadCatalog(overridePath)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	detail := fmt.Sprintf("%d domains", catalog.Len())
	if overridePath != "" {
		detail += " (override " + overridePath + ")"
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// summarizeLLMError produces a human-readable summary for health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
