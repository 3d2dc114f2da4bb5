package learning

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
	"github.com/brettericmartin/teed-sub011/internal/sqlitestore"
	"github.com/brettericmartin/teed-sub011/internal/textutil"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

const stage = "learning"

const correctionColumns = `id, correction_type, stage, original_value, corrected_value, product_id, object_id, created_at`

// Stats summarizes the correction log.
type Stats struct {
	Total   int            `json:"total"`
	ByType  map[string]int `json:"byType"`
	ByStage map[string]int `json:"byStage"`
	Latest  time.Time      `json:"latest,omitempty"`
}

// Store persists accepted corrections in SQLite.
type Store struct {
	db     *sqlitestore.DB
	logger *slog.Logger
}

// OpenStore opens or creates the correction database at path.
func OpenStore(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sqlitestore.Open(ctx, path, sqlitestore.Schema{
		Name:    "corrections",
		SQL:     schemaSQL,
		Version: schemaVersion,
	})
	if err != nil {
		return nil, persistenceError("open", err)
	}
	return &Store{db: db, logger: logging.NewComponentLogger(logger, "corrections")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// Insert stores c. A missing ID or timestamp is filled in.
func (s *Store) Insert(ctx context.Context, c product.Correction) error {
	corrected := strings.TrimSpace(c.CorrectedValue)
	if corrected == "" {
		return persistenceError("insert", errors.New("corrected value cannot be empty"))
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	original := strings.TrimSpace(c.OriginalValue)
	_, err := s.db.Exec(ctx,
		`INSERT INTO corrections (id, correction_type, stage, original_value, original_key,
		   corrected_value, product_id, object_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		string(c.Type),
		strings.TrimSpace(c.Stage),
		original,
		textutil.NormalizeName(original),
		corrected,
		strings.TrimSpace(c.ProductID),
		strings.TrimSpace(c.ObjectID),
		sqlitestore.UnixMillis(c.CreatedAt),
	)
	if err != nil {
		return persistenceError("insert", err)
	}
	s.logger.Debug("correction stored",
		logging.String("correction_id", c.ID),
		logging.String("correction_type", string(c.Type)),
		logging.String("stage", c.Stage),
	)
	return nil
}

// Recent returns the newest corrections first. A non-positive limit returns
// everything.
func (s *Store) Recent(ctx context.Context, limit int) ([]product.Correction, error) {
	query := `SELECT ` + correctionColumns + ` FROM corrections ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("recent", err)
	}
	defer rows.Close()

	var out []product.Correction
	for rows.Next() {
		var (
			c         product.Correction
			typ       string
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &typ, &c.Stage, &c.OriginalValue, &c.CorrectedValue,
			&c.ProductID, &c.ObjectID, &createdAt); err != nil {
			return nil, persistenceError("recent", err)
		}
		c.Type = product.CorrectionType(typ)
		c.CreatedAt = sqlitestore.FromUnixMillis(createdAt)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("recent", err)
	}
	return out, nil
}

// Stats counts corrections by type and stage.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByType: map[string]int{}, ByStage: map[string]int{}}
	var latest int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(MAX(created_at), 0) FROM corrections`).
		Scan(&stats.Total, &latest)
	if err != nil {
		return Stats{}, persistenceError("stats", err)
	}
	if latest > 0 {
		stats.Latest = sqlitestore.FromUnixMillis(latest)
	}
	if err := s.countInto(ctx, "correction_type", stats.ByType); err != nil {
		return Stats{}, err
	}
	if err := s.countInto(ctx, "stage", stats.ByStage); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (s *Store) countInto(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.Query(ctx, `SELECT `+column+`, COUNT(*) FROM corrections GROUP BY `+column)
	if err != nil {
		return persistenceError("stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return persistenceError("stats", err)
		}
		into[key] = count
	}
	if err := rows.Err(); err != nil {
		return persistenceError("stats", err)
	}
	return nil
}

// TopCorrection returns the most frequent corrected value recorded for
// original under typ, with its count. Ties go to the most recent value.
func (s *Store) TopCorrection(ctx context.Context, typ product.CorrectionType, original string) (string, int, error) {
	key := textutil.NormalizeName(original)
	if key == "" {
		return "", 0, nil
	}
	var (
		value string
		count int
	)
	err := s.db.QueryRow(ctx,
		`SELECT corrected_value, COUNT(*) AS n FROM corrections
		 WHERE correction_type = ? AND original_key = ?
		 GROUP BY corrected_value
		 ORDER BY n DESC, MAX(created_at) DESC
		 LIMIT 1`,
		string(typ), key,
	).Scan(&value, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, persistenceError("top correction", err)
	}
	return value, count, nil
}

func persistenceError(operation string, err error) error {
	return services.Wrap(services.ErrPersistence, stage, operation, "", err)
}
