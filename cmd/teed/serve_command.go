package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/httpapi"
	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/pipeline"
)

// requestOverhead covers JSON framing and text fields on top of image payloads.
const requestOverhead = 1 << 20

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if b := strings.TrimSpace(bind); b != "" {
				cfg.Server.Bind = b
			}

			lock, err := acquireServerLock(cfg.Server.LockPath)
			if err != nil {
				return err
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					logger.Warn("failed to release server lock", logging.Error(err))
				}
			}()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return ctx.withPipeline(runCtx, func(p *pipeline.Pipeline) error {
				return serve(runCtx, cfg, p, logger)
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides server.bind)")
	return cmd
}

func acquireServerLock(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another teed server is already running (lock %s)", path)
	}
	return lock, nil
}

func serve(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) error {
	scheduler, err := startLibraryReport(cfg.Server.StatsSchedule, p, logger)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() { <-scheduler.Stop().Done() }()
	}

	listener, err := net.Listen("tcp", cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Bind, err)
	}
	router := httpapi.NewRouter(httpapi.Options{
		Mode:           cfg.Server.Mode,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxBodyBytes:   maxRequestBytes(cfg.Evidence),
		Version:        version,
	}, p, logger)

	err = httpapi.Serve(ctx, listener, router, logger)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// maxRequestBytes bounds a request body: every item at the payload cap,
// base64 encoded, plus overhead.
func maxRequestBytes(cfg config.Evidence) int64 {
	if cfg.MaxPayloadBytes <= 0 || cfg.MaxItems <= 0 {
		return 0
	}
	return cfg.MaxPayloadBytes*int64(cfg.MaxItems)*4/3 + requestOverhead
}

// startLibraryReport logs library stats on schedule. An empty schedule
// disables the report.
func startLibraryReport(schedule string, p *pipeline.Pipeline, logger *slog.Logger) (*cron.Cron, error) {
	if strings.TrimSpace(schedule) == "" {
		return nil, nil
	}
	logger = logging.NewComponentLogger(logger, "library-report")
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { logLibraryReport(p, logger) }); err != nil {
		return nil, fmt.Errorf("schedule library report: %w", err)
	}
	c.Start()
	logger.Info("library report scheduled", logging.String("schedule", schedule))
	return c, nil
}

func logLibraryReport(p *pipeline.Pipeline, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	stats, err := p.LibraryStats(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "library report failed", "library_report_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "scheduled library stats were not logged"),
		)
		return
	}
	top := make([]string, 0, len(stats.TopDomains))
	for _, domain := range stats.TopDomains {
		top = append(top, fmt.Sprintf("%s=%d", domain.Domain, domain.Count))
	}
	logger.Info("library report",
		logging.Int("entries", stats.TotalEntries),
		logging.Int("high_confidence", stats.HighConfidence),
		logging.Int("scrape_failures", stats.ScrapeFailures),
		logging.Int64("total_hits", stats.TotalHits),
		logging.Int("recent_hits", stats.RecentHits),
		logging.String("top_domains", strings.Join(top, ",")),
	)
}
