// Package db provides a managed gorm database connection.
//
// It wires the kit logger into gorm's logging interface and applies
// connection-pool settings from configuration. The docstore package builds
// its MySQL backend on top of it.
package db

import (
	"context"

	"gorm.io/gorm"
)

// Database is the interface for a managed database connection
type Database interface {
	// DB returns the underlying gorm handle
	DB() (*gorm.DB, error)

	// Ping verifies the connection is alive
	Ping(ctx context.Context) error

	// Close closes the underlying connection pool
	Close() error
}
