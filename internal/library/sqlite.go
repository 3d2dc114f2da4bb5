package library

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/sqlitestore"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current library schema version. Bump this when the schema changes.
const schemaVersion = 1

const entryColumns = `key, kind, query, domain, brand, name, category, confidence,
scrape_successful, candidates, hit_count, last_hit_at, created_at, updated_at`

// SQLiteStore persists entries in a local SQLite database.
type SQLiteStore struct {
	db     *sqlitestore.DB
	logger *slog.Logger
}

// OpenSQLite opens or creates the library database at path.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sqlitestore.Open(ctx, path, sqlitestore.Schema{
		Name:    "library",
		SQL:     schemaSQL,
		Version: schemaVersion,
	})
	if err != nil {
		return nil, persistenceError("open", err)
	}
	return &SQLiteStore{db: db, logger: logging.NewComponentLogger(logger, "library")}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Lookup(ctx context.Context, key string, minConfidence float64) (Entry, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Entry{}, false, nil
	}
	row := s.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM library_entries
		 WHERE key = ? AND scrape_successful = 1 AND confidence >= ?`,
		key, minConfidence,
	)
	return s.scanOne(row, "lookup")
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Entry{}, false, nil
	}
	row := s.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM library_entries WHERE key = ?`, key)
	return s.scanOne(row, "get")
}

func (s *SQLiteStore) Upsert(ctx context.Context, entry Entry) error {
	entry.Key = strings.TrimSpace(entry.Key)
	if entry.Key == "" {
		return persistenceError("upsert", errors.New("entry key cannot be empty"))
	}
	payload, err := json.Marshal(entry.Candidates)
	if err != nil {
		return persistenceError("upsert", err)
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = now
	}
	res, err := s.db.Exec(ctx,
		`INSERT INTO library_entries (`+entryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   kind = excluded.kind,
		   query = excluded.query,
		   domain = excluded.domain,
		   brand = excluded.brand,
		   name = excluded.name,
		   category = excluded.category,
		   confidence = excluded.confidence,
		   scrape_successful = excluded.scrape_successful,
		   candidates = excluded.candidates,
		   updated_at = excluded.updated_at
		 WHERE excluded.scrape_successful = 1 OR library_entries.scrape_successful = 0`,
		entry.Key,
		entry.Kind,
		entry.Query,
		entry.Domain,
		entry.Brand,
		entry.Name,
		entry.Category,
		product.ClampConfidence(entry.Confidence),
		boolToInt(entry.ScrapeSuccessful),
		string(payload),
		sqlitestore.UnixMillis(entry.CreatedAt),
		sqlitestore.UnixMillis(entry.UpdatedAt),
	)
	if err != nil {
		return persistenceError("upsert", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		s.logger.Debug("library entry kept; failed scrape does not replace a successful one",
			logging.String("key", entry.Key),
		)
		return nil
	}
	s.logger.Debug("library entry stored",
		logging.String("key", entry.Key),
		logging.String("name", entry.Name),
		logging.Float64("confidence", entry.Confidence),
		logging.Bool("scrape_successful", entry.ScrapeSuccessful),
	)
	return nil
}

func (s *SQLiteStore) RecordHit(ctx context.Context, key string, at time.Time) (Entry, error) {
	key = strings.TrimSpace(key)
	res, err := s.db.Exec(ctx,
		`UPDATE library_entries SET hit_count = hit_count + 1, last_hit_at = ? WHERE key = ?`,
		sqlitestore.UnixMillis(at), key,
	)
	if err != nil {
		return Entry{}, persistenceError("record hit", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return Entry{}, notFound("record hit", key)
	}
	entry, ok, err := s.Get(ctx, key)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, notFound("record hit", key)
	}
	return entry, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM library_entries ORDER BY updated_at DESC, key`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("list", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, persistenceError("list", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("list", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) (bool, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM library_entries WHERE key = ?`, strings.TrimSpace(key))
	if err != nil {
		return false, persistenceError("remove", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, persistenceError("remove", err)
	}
	return affected > 0, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM library_entries`)
	if err != nil {
		return 0, persistenceError("clear", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, persistenceError("clear", err)
	}
	return int(affected), nil
}

func (s *SQLiteStore) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var stats Stats
	since := sqlitestore.UnixMillis(now.Add(-RecentWindow))
	err := s.db.QueryRow(ctx,
		`SELECT
		   COUNT(*),
		   COALESCE(SUM(CASE WHEN confidence >= ? THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN scrape_successful = 0 THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(hit_count), 0),
		   COALESCE(SUM(CASE WHEN last_hit_at >= ? THEN 1 ELSE 0 END), 0)
		 FROM library_entries`,
		HighConfidenceThreshold, since,
	).Scan(&stats.TotalEntries, &stats.HighConfidence, &stats.ScrapeFailures, &stats.TotalHits, &stats.RecentHits)
	if err != nil {
		return Stats{}, persistenceError("stats", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT domain, COUNT(*) AS n FROM library_entries
		 WHERE domain != ''
		 GROUP BY domain
		 ORDER BY n DESC, domain
		 LIMIT ?`,
		topDomainLimit,
	)
	if err != nil {
		return Stats{}, persistenceError("stats", err)
	}
	defer rows.Close()
	stats.TopDomains = []DomainCount{}
	for rows.Next() {
		var dc DomainCount
		if err := rows.Scan(&dc.Domain, &dc.Count); err != nil {
			return Stats{}, persistenceError("stats", err)
		}
		stats.TopDomains = append(stats.TopDomains, dc)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, persistenceError("stats", err)
	}
	return stats, nil
}

func (s *SQLiteStore) scanOne(row *sql.Row, operation string) (Entry, bool, error) {
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, persistenceError(operation, err)
	}
	return entry, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(scanner rowScanner) (Entry, error) {
	var (
		entry     Entry
		scrapeOK  int
		payload   string
		lastHitAt int64
		createdAt int64
		updatedAt int64
	)
	if err := scanner.Scan(
		&entry.Key,
		&entry.Kind,
		&entry.Query,
		&entry.Domain,
		&entry.Brand,
		&entry.Name,
		&entry.Category,
		&entry.Confidence,
		&scrapeOK,
		&payload,
		&entry.HitCount,
		&lastHitAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return Entry{}, err
	}
	entry.ScrapeSuccessful = scrapeOK != 0
	entry.LastHitAt = sqlitestore.FromUnixMillis(lastHitAt)
	entry.CreatedAt = sqlitestore.FromUnixMillis(createdAt)
	entry.UpdatedAt = sqlitestore.FromUnixMillis(updatedAt)
	if strings.TrimSpace(payload) != "" {
		if err := json.Unmarshal([]byte(payload), &entry.Candidates); err != nil {
			return Entry{}, err
		}
	}
	return entry, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
