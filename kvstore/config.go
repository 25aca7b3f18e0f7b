package kvstore

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds configuration for the Redis-backed store
type RedisConfig struct {
	// Addr is the host:port of the Redis server (required)
	Addr string `mapstructure:"addr"`
	// Username for Redis ACL authentication
	Username string `mapstructure:"username"`
	// Password for authentication
	Password string `mapstructure:"password"`
	// DB is the Redis database index
	// default: 0
	DB int `mapstructure:"db"`
	// PoolSize is the maximum number of socket connections
	// default: 10
	PoolSize int `mapstructure:"pool_size"`
	// DialTimeout is the timeout for establishing new connections
	// default: 5 * time.Second
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// DefaultRedisConfig returns the default configuration for the Redis store
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
	}
}

// MergeDefaults fills zero fields with default values and returns the config
func (c *RedisConfig) MergeDefaults() *RedisConfig {
	defaults := DefaultRedisConfig()
	if c.PoolSize == 0 {
		c.PoolSize = defaults.PoolSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	return c
}

// Validate validates the configuration
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return ErrInvalidConfig("addr is required")
	}
	if c.DB < 0 {
		return ErrInvalidConfig("db must be >= 0")
	}
	if c.PoolSize < 0 {
		return ErrInvalidConfig("pool_size must be >= 0")
	}
	if c.DialTimeout < 0 {
		return ErrInvalidConfig("dial_timeout must be >= 0")
	}
	return nil
}

// Options converts the config into go-redis client options
func (c *RedisConfig) Options() *redis.Options {
	return &redis.Options{
		Addr:        c.Addr,
		Username:    c.Username,
		Password:    c.Password,
		DB:          c.DB,
		PoolSize:    c.PoolSize,
		DialTimeout: c.DialTimeout,
	}
}

// SQLiteConfig holds configuration for the SQLite-backed store
type SQLiteConfig struct {
	// Path is the database file path (required)
	// ":memory:" opens a private in-memory database
	Path string `mapstructure:"path"`
	// Table is the key-value table name
	// default: "kv"
	Table string `mapstructure:"table"`
	// BusyTimeout is how long a locked database is retried before failing
	// default: 5 * time.Second
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// DefaultSQLiteConfig returns the default configuration for the SQLite store
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Table:       "kv",
		BusyTimeout: 5 * time.Second,
	}
}

// MergeDefaults fills zero fields with default values and returns the config
func (c *SQLiteConfig) MergeDefaults() *SQLiteConfig {
	defaults := DefaultSQLiteConfig()
	if c.Table == "" {
		c.Table = defaults.Table
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaults.BusyTimeout
	}
	return c
}

// Validate validates the configuration
func (c *SQLiteConfig) Validate() error {
	if c.Path == "" {
		return ErrInvalidConfig("path is required")
	}
	if c.BusyTimeout < 0 {
		return ErrInvalidConfig("busy_timeout must be >= 0")
	}
	return nil
}
