package docstore

import "time"

// SQLiteConfig holds configuration for the SQLite-backed document store
type SQLiteConfig struct {
	// Path is the database file path (required)
	// ":memory:" opens a private in-memory database
	Path string `mapstructure:"path"`
	// Table is the documents table name
	// default: "documents"
	Table string `mapstructure:"table"`
	// BusyTimeout is how long a locked database is retried before failing
	// default: 5 * time.Second
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// DefaultSQLiteConfig returns the default configuration for the SQLite store
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Table:       "documents",
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

// GormConfig holds configuration for the gorm-backed document store
type GormConfig struct {
	// Table is the documents table name
	// default: "documents"
	Table string `mapstructure:"table"`
}

// DefaultGormConfig returns the default configuration for the gorm store
func DefaultGormConfig() *GormConfig {
	return &GormConfig{Table: "documents"}
}

// MergeDefaults fills zero fields with default values and returns the config
func (c *GormConfig) MergeDefaults() *GormConfig {
	defaults := DefaultGormConfig()
	if c.Table == "" {
		c.Table = defaults.Table
	}
	return c
}
