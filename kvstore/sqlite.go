package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/realmorph/datakit/logger"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// sqliteStore is a Store backed by a local SQLite database.
// Expiry is tracked in an expire_at column (unix millis, 0 = no TTL) and
// enforced lazily on read.
type sqliteStore struct {
	logger logger.Logger
	db     *sql.DB
	table  string
	now    func() time.Time
}

// NewSQLite creates a SQLite-backed Store, creating the key-value table if
// it does not exist.
func NewSQLite(log logger.Logger, cfg *SQLiteConfig) (Store, error) {
	if cfg == nil {
		cfg = DefaultSQLiteConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ErrConnection(err)
	}

	// SQLite handles a single writer; more connections just contend
	db.SetMaxOpenConns(1)

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expire_at INTEGER NOT NULL DEFAULT 0
	);`, cfg.Table)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, ErrConnection(err)
	}

	log.Debug("sqlite store opened", zap.String("path", cfg.Path), zap.String("table", cfg.Table))

	return &sqliteStore{
		logger: log,
		db:     db,
		table:  cfg.Table,
		now:    time.Now,
	}, nil
}

func (s *sqliteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value    []byte
		expireAt int64
	)
	query := fmt.Sprintf("SELECT value, expire_at FROM %s WHERE key = ?", s.table)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value, &expireAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ErrRead(key, err)
	}

	if expireAt > 0 && expireAt <= s.now().UnixMilli() {
		if err := s.Remove(ctx, key); err != nil {
			s.logger.Warn("failed to delete expired entry", zap.String("key", key), zap.Error(err))
		}
		return nil, false, nil
	}
	return value, true, nil
}

func (s *sqliteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expireAt int64
	if ttl > 0 {
		expireAt = s.now().Add(ttl).UnixMilli()
	}
	query := fmt.Sprintf(`
	INSERT INTO %s (key, value, expire_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, expire_at = excluded.expire_at`, s.table)
	if _, err := s.db.ExecContext(ctx, query, key, value, expireAt); err != nil {
		return ErrWrite(key, err)
	}
	return nil
}

func (s *sqliteStore) Remove(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE key = ?", s.table)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return ErrWrite(key, err)
	}
	return nil
}

func (s *sqliteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT key FROM %s WHERE key LIKE ? ESCAPE '\\' AND (expire_at = 0 OR expire_at > ?)",
		s.table,
	)
	rows, err := s.db.QueryContext(ctx, query, likePrefix(prefix), s.now().UnixMilli())
	if err != nil {
		return nil, ErrRead(prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, ErrRead(prefix, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *sqliteStore) Clear(ctx context.Context, prefix string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE key LIKE ? ESCAPE '\\'", s.table)
	if _, err := s.db.ExecContext(ctx, query, likePrefix(prefix)); err != nil {
		return ErrWrite(prefix, err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// likePrefix escapes LIKE metacharacters so a key prefix matches literally.
func likePrefix(prefix string) string {
	escaped := make([]byte, 0, len(prefix)+2)
	for i := 0; i < len(prefix); i++ {
		switch prefix[i] {
		case '%', '_', '\\':
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, prefix[i])
	}
	return string(escaped) + "%"
}
