package library

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
	"github.com/brettericmartin/teed-sub011/internal/sqlitestore"
)

const (
	redisIndexSuffix    = "index"
	redisEntryInfix     = "entry:"
	redisWatchRetries   = 3
	redisConnectTimeout = 5 * time.Second
)

var errKeepExisting = errors.New("keep existing entry")

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps each entry in a hash and orders keys in a sorted set
// scored by update time.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// OpenRedis connects to Redis and verifies the connection with PING.
func OpenRedis(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, persistenceError("connect", err)
	}
	return NewRedisStore(client, opts.KeyPrefix, logger), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = "teed:library:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logging.NewComponentLogger(logger, "library"),
	}
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) entryKey(key string) string { return s.prefix + redisEntryInfix + key }

func (s *RedisStore) indexKey() string { return s.prefix + redisIndexSuffix }

func (s *RedisStore) Lookup(ctx context.Context, key string, minConfidence float64) (Entry, bool, error) {
	entry, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	if !entry.ScrapeSuccessful || entry.Confidence < minConfidence {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Entry{}, false, nil
	}
	fields, err := s.client.HGetAll(ctx, s.entryKey(key)).Result()
	if err != nil {
		return Entry{}, false, persistenceError("get", err)
	}
	if len(fields) == 0 {
		return Entry{}, false, nil
	}
	entry, err := entryFromHash(fields)
	if err != nil {
		return Entry{}, false, persistenceError("get", err)
	}
	return entry, true, nil
}

func (s *RedisStore) Upsert(ctx context.Context, entry Entry) error {
	entry.Key = strings.TrimSpace(entry.Key)
	if entry.Key == "" {
		return persistenceError("upsert", errors.New("entry key cannot be empty"))
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = now
	}
	fields, err := entryToHash(entry)
	if err != nil {
		return persistenceError("upsert", err)
	}
	hashKey := s.entryKey(entry.Key)
	createdAt := fields["created_at"]
	delete(fields, "created_at")
	delete(fields, "hit_count")
	delete(fields, "last_hit_at")
	txf := func(tx *redis.Tx) error {
		if !entry.ScrapeSuccessful {
			current, err := tx.HGet(ctx, hashKey, "scrape_successful").Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if ok, _ := strconv.ParseBool(current); ok {
				return errKeepExisting
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSetNX(ctx, hashKey, "created_at", createdAt)
			pipe.HSetNX(ctx, hashKey, "hit_count", "0")
			pipe.HSetNX(ctx, hashKey, "last_hit_at", "0")
			pipe.HSet(ctx, hashKey, fields)
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(entry.UpdatedAt.UnixMilli()), Member: entry.Key})
			return nil
		})
		return err
	}
	for attempt := 0; attempt < redisWatchRetries; attempt++ {
		err = s.client.Watch(ctx, txf, hashKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, errKeepExisting) {
		s.logger.Debug("library entry kept; failed scrape does not replace a successful one",
			logging.String("key", entry.Key),
		)
		return nil
	}
	if err != nil {
		return persistenceError("upsert", err)
	}
	s.logger.Debug("library entry stored",
		logging.String("key", entry.Key),
		logging.String("name", entry.Name),
		logging.Float64("confidence", entry.Confidence),
		logging.Bool("scrape_successful", entry.ScrapeSuccessful),
	)
	return nil
}

func (s *RedisStore) RecordHit(ctx context.Context, key string, at time.Time) (Entry, error) {
	key = strings.TrimSpace(key)
	hashKey := s.entryKey(key)
	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, hashKey).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return services.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HIncrBy(ctx, hashKey, "hit_count", 1)
			pipe.HSet(ctx, hashKey, "last_hit_at", strconv.FormatInt(at.UTC().UnixMilli(), 10))
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < redisWatchRetries; attempt++ {
		err = s.client.Watch(ctx, txf, hashKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, services.ErrNotFound) {
		return Entry{}, notFound("record hit", key)
	}
	if err != nil {
		return Entry{}, persistenceError("record hit", err)
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

func (s *RedisStore) List(ctx context.Context, limit int) ([]Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	keys, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, persistenceError("list", err)
	}
	return s.loadEntries(ctx, keys)
}

func (s *RedisStore) loadEntries(ctx context.Context, keys []string) ([]Entry, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, s.entryKey(key))
		}
		return nil
	})
	if err != nil {
		return nil, persistenceError("list", err)
	}
	entries := make([]Entry, 0, len(keys))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, persistenceError("list", err)
		}
		if len(fields) == 0 {
			continue
		}
		entry, err := entryFromHash(fields)
		if err != nil {
			logging.WarnWithContext(s.logger, "skipping unreadable library entry", "library_entry_corrupt",
				logging.String("key", keys[i]),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the entry with 'teed library remove'"),
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.entryKey(key))
		pipe.ZRem(ctx, s.indexKey(), key)
		return nil
	})
	if err != nil {
		return false, persistenceError("remove", err)
	}
	return del.Val() > 0, nil
}

func (s *RedisStore) Clear(ctx context.Context) (int, error) {
	keys, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, persistenceError("clear", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	hashKeys := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		hashKeys = append(hashKeys, s.entryKey(key))
	}
	hashKeys = append(hashKeys, s.indexKey())
	if err := s.client.Del(ctx, hashKeys...).Err(); err != nil {
		return 0, persistenceError("clear", err)
	}
	return len(keys), nil
}

func (s *RedisStore) Stats(ctx context.Context, now time.Time) (Stats, error) {
	keys, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return Stats{}, persistenceError("stats", err)
	}
	entries, err := s.loadEntries(ctx, keys)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(entries, now.Add(-RecentWindow)), nil
}

func entryToHash(entry Entry) (map[string]any, error) {
	payload, err := json.Marshal(entry.Candidates)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"key":               entry.Key,
		"kind":              entry.Kind,
		"query":             entry.Query,
		"domain":            entry.Domain,
		"brand":             entry.Brand,
		"name":              entry.Name,
		"category":          entry.Category,
		"confidence":        strconv.FormatFloat(product.ClampConfidence(entry.Confidence), 'f', -1, 64),
		"scrape_successful": strconv.FormatBool(entry.ScrapeSuccessful),
		"candidates":        string(payload),
		"hit_count":         strconv.FormatInt(entry.HitCount, 10),
		"last_hit_at":       strconv.FormatInt(sqlitestore.UnixMillis(entry.LastHitAt), 10),
		"created_at":        strconv.FormatInt(sqlitestore.UnixMillis(entry.CreatedAt), 10),
		"updated_at":        strconv.FormatInt(sqlitestore.UnixMillis(entry.UpdatedAt), 10),
	}, nil
}

func entryFromHash(fields map[string]string) (Entry, error) {
	entry := Entry{
		Key:      fields["key"],
		Kind:     fields["kind"],
		Query:    fields["query"],
		Domain:   fields["domain"],
		Brand:    fields["brand"],
		Name:     fields["name"],
		Category: fields["category"],
	}
	var err error
	if entry.Confidence, err = parseFloatField(fields, "confidence"); err != nil {
		return Entry{}, err
	}
	entry.ScrapeSuccessful, _ = strconv.ParseBool(fields["scrape_successful"])
	if entry.HitCount, err = parseIntField(fields, "hit_count"); err != nil {
		return Entry{}, err
	}
	for field, target := range map[string]*time.Time{
		"last_hit_at": &entry.LastHitAt,
		"created_at":  &entry.CreatedAt,
		"updated_at":  &entry.UpdatedAt,
	} {
		ms, err := parseIntField(fields, field)
		if err != nil {
			return Entry{}, err
		}
		*target = sqlitestore.FromUnixMillis(ms)
	}
	if payload := strings.TrimSpace(fields["candidates"]); payload != "" {
		if err := json.Unmarshal([]byte(payload), &entry.Candidates); err != nil {
			return Entry{}, err
		}
	}
	return entry, nil
}

func parseFloatField(fields map[string]string, name string) (float64, error) {
	raw := strings.TrimSpace(fields[name])
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func parseIntField(fields map[string]string, name string) (int64, error) {
	raw := strings.TrimSpace(fields[name])
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
