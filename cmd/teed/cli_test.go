package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/learning"
	"github.com/brettericmartin/teed-sub011/internal/library"
	"github.com/brettericmartin/teed-sub011/internal/preflight"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "teed.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	if _, _, _, err := config.Load(target); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithConfig(func(cfg *config.Config) {
		cfg.LLM.APIKey = "sk-unit-secret"
	}))

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "sk-unit-secret") {
		t.Fatalf("secret leaked into output:\n%s", out)
	}
	requireContains(t, out, redacted)
	requireContains(t, out, "[library]")

	out, _, err = runCLI(t, []string{"config", "show", "--show-secrets"}, env.configPath)
	if err != nil {
		t.Fatalf("config show --show-secrets: %v", err)
	}
	requireContains(t, out, "sk-unit-secret")
}

func TestLibraryCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenLibrary(t, env.cfg)
	now := time.Now()
	seed := library.Entry{
		Key:              "url:abc123",
		Kind:             "url",
		Query:            "https://www.titleist.com/golf-clubs/drivers/gt2",
		Domain:           "titleist.com",
		Brand:            "Titleist",
		Name:             "GT2 Driver",
		Category:         "golf",
		Confidence:       0.95,
		ScrapeSuccessful: true,
		Candidates: []product.Candidate{
			{Name: "GT2 Driver", Brand: "Titleist", Category: "golf", Confidence: 0.95, Source: product.SourceURL},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Upsert(context.Background(), seed); err != nil {
		t.Fatalf("seed library: %v", err)
	}

	out, _, err := runCLI(t, []string{"library", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("library list: %v", err)
	}
	var entries []library.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("library list output is not JSON: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].Key != seed.Key {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	out, _, err = runCLI(t, []string{"library", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("library stats: %v", err)
	}
	var stats library.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("library stats output is not JSON: %v\n%s", err, out)
	}
	if stats.TotalEntries != 1 || stats.HighConfidence != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(stats.TopDomains) != 1 || stats.TopDomains[0].Domain != "titleist.com" {
		t.Fatalf("unexpected top domains: %+v", stats.TopDomains)
	}

	out, _, err = runCLI(t, []string{"library", "show", seed.Key}, env.configPath)
	if err != nil {
		t.Fatalf("library show: %v", err)
	}
	requireContains(t, out, "GT2 Driver")

	out, _, err = runCLI(t, []string{"library", "remove", seed.Key}, env.configPath)
	if err != nil {
		t.Fatalf("library remove: %v", err)
	}
	requireContains(t, out, "Removed url:abc123")

	if _, _, err := runCLI(t, []string{"library", "show", seed.Key}, env.configPath); err == nil {
		t.Fatal("expected show of removed entry to fail")
	}
	if _, _, err := runCLI(t, []string{"library", "clear"}, env.configPath); err == nil {
		t.Fatal("expected clear without --force to fail")
	}
}

func TestCorrectCommandStoresAcceptedCorrection(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutInference())

	out, _, err := runCLI(t, []string{
		"correct",
		"--type", "name",
		"--original", "Stealth 2 Driver",
		"--corrected", "Stealth 2 Plus Driver",
		"--json",
	}, env.configPath)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	var result learning.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("correct output is not JSON: %v\n%s", err, out)
	}
	if !result.Learned || result.ID == "" {
		t.Fatalf("expected correction to be learned, got %+v", result)
	}

	out, _, err = runCLI(t, []string{"correct", "--type", "brand", "--corrected", "ab"}, env.configPath)
	if err != nil {
		t.Fatalf("correct short value: %v", err)
	}
	requireContains(t, out, "Correction not learned")

	out, _, err = runCLI(t, []string{
		"correct", "--type", "brand", "--original", "Calloway", "--corrected", "Callaway",
		"--final-confidence", "0.2",
	}, env.configPath)
	if err != nil {
		t.Fatalf("correct low confidence: %v", err)
	}
	requireContains(t, out, "Correction not learned")

	out, _, err = runCLI(t, []string{"corrections", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("corrections list: %v", err)
	}
	var stored []product.Correction
	if err := json.Unmarshal([]byte(out), &stored); err != nil {
		t.Fatalf("corrections list output is not JSON: %v\n%s", err, out)
	}
	if len(stored) != 1 {
		t.Fatalf("expected one stored correction, got %d", len(stored))
	}
	if stored[0].Type != product.CorrectionProductName || stored[0].CorrectedValue != "Stealth 2 Plus Driver" {
		t.Fatalf("unexpected stored correction: %+v", stored[0])
	}

	out, _, err = runCLI(t, []string{"corrections", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("corrections stats: %v", err)
	}
	var stats learning.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("corrections stats output is not JSON: %v\n%s", err, out)
	}
	if stats.Total != 1 || stats.ByType[string(product.CorrectionProductName)] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCorrectionsRequireLearning(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithLearningDisabled())
	if _, _, err := runCLI(t, []string{"corrections", "list"}, env.configPath); err == nil {
		t.Fatal("expected corrections list to fail when learning is disabled")
	}
}

func TestIdentifyRequiresEvidence(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"identify"}, env.configPath)
	if err == nil {
		t.Fatal("expected identify without evidence to fail")
	}
	requireContains(t, err.Error(), "provide at least one")

	_, _, err = runCLI(t, []string{"identify", "--image", filepath.Join(env.baseDir, "missing.jpg")}, env.configPath)
	if err == nil {
		t.Fatal("expected identify with a missing image to fail")
	}
	requireContains(t, err.Error(), "read image")
}

func TestExtractRequiresContent(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"extract", "--title", "What's in my bag"}, env.configPath)
	if err == nil {
		t.Fatal("expected extract without content to fail")
	}
	requireContains(t, err.Error(), "provide a description")
}

func TestServeRefusesSecondInstance(t *testing.T) {
	env := setupCLITestEnv(t)

	held := flock.New(env.cfg.Server.LockPath)
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("pre-acquire lock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	_, _, err = runCLI(t, []string{"serve"}, env.configPath)
	if err == nil {
		t.Fatal("expected serve to fail while the lock is held")
	}
	requireContains(t, err.Error(), "already running")
}

func TestMaxRequestBytes(t *testing.T) {
	got := maxRequestBytes(config.Evidence{MaxItems: 3, MaxPayloadBytes: 3000})
	if want := int64(3*3000*4/3 + requestOverhead); got != want {
		t.Fatalf("maxRequestBytes = %d, want %d", got, want)
	}
	if got := maxRequestBytes(config.Evidence{}); got != 0 {
		t.Fatalf("expected zero limit for empty config, got %d", got)
	}
}

func TestRenderTableAlignsColumns(t *testing.T) {
	out := renderTable([]string{"Name", "Count"}, [][]string{{"a", "1"}, {"b"}}, []columnAlignment{alignLeft, alignRight})
	// Headers are upper-cased by the table style.
	requireContains(t, out, "NAME")
	requireContains(t, out, "COUNT")
	requireContains(t, out, "│ a    │     1 │")
	if lines := strings.Count(out, "\n"); lines < 4 {
		t.Fatalf("expected a bordered table, got:\n%s", out)
	}
}

func TestCheckCommandReportsEachCheck(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	var results []preflight.Result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("check output is not JSON: %v\n%s", err, out)
	}
	if len(results) == 0 || !preflight.Passed(results) {
		t.Fatalf("unexpected results: %+v", results)
	}

	env = setupCLITestEnv(t, testsupport.WithoutInference())
	if _, _, err := runCLI(t, []string{"check"}, env.configPath); err == nil {
		t.Fatal("expected check to fail without inference credentials")
	}
}
