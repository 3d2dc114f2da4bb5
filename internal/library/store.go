package library

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

const stage = "library"

// RecentWindow is the lookback used for Stats.RecentHits.
const RecentWindow = 24 * time.Hour

// Store is the library persistence contract shared by all backends.
type Store interface {
	// Lookup returns an entry eligible to serve as a cache hit: the last scrape
	// succeeded and the cached confidence is at least minConfidence.
	Lookup(ctx context.Context, key string, minConfidence float64) (Entry, bool, error)
	// Get returns an entry regardless of eligibility.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Upsert inserts or replaces the resolution for entry.Key. Hit count and
	// creation time of an existing entry are preserved. A failed scrape never
	// replaces an entry whose scrape succeeded.
	Upsert(ctx context.Context, entry Entry) error
	// RecordHit increments the hit count by one and stamps the hit time.
	RecordHit(ctx context.Context, key string, at time.Time) (Entry, error)
	List(ctx context.Context, limit int) ([]Entry, error)
	Remove(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) (int, error)
	Stats(ctx context.Context, now time.Time) (Stats, error)
	Close() error
}

// Open constructs the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.Library, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case config.LibraryBackendRedis:
		return OpenRedis(ctx, RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		}, logger)
	case config.LibraryBackendSQLite, "":
		return OpenSQLite(ctx, cfg.Path, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, stage, "open",
			fmt.Sprintf("unknown library backend %q", cfg.Backend), nil)
	}
}

func persistenceError(operation string, err error) error {
	return services.Wrap(services.ErrPersistence, stage, operation, "", err)
}

func notFound(operation, key string) error {
	return services.Wrap(services.ErrNotFound, stage, operation, fmt.Sprintf("no library entry for %q", key), nil)
}
