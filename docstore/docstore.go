// Package docstore provides a document-store abstraction used by the
// document adapter.
//
// A Store keeps schemaless JSON documents grouped into named collections.
// The docstore package follows the kit conventions:
// - Interface-driven design for testability
// - Uses logger.Logger interface for unified logging
// - Configuration with validation and defaults
// - Structured error handling
//
// Available implementations:
// - Memory: in-process map (tests, prototyping)
// - SQLite: local single-file database
// - Gorm: MySQL through the db package
package docstore

import "context"

// Document is a schemaless record.
type Document = map[string]any

// OpType identifies a write operation in a batch.
type OpType string

const (
	OpInsert OpType = "insert"
	OpUpdate OpType = "update"
	OpPatch  OpType = "patch"
	OpDelete OpType = "delete"
)

// WriteOp is a single entry of a batch write.
type WriteOp struct {
	Type OpType
	ID   string
	Data Document
}

// Query describes a filtered, ordered, windowed read of a collection.
type Query struct {
	// Filters are equality constraints on top-level fields
	Filters map[string]any
	// SearchField/SearchTerm select documents whose field contains the term
	// (case-insensitive substring match on the string form of the value)
	SearchField string
	SearchTerm  string
	// OrderBy names the sort field; Descending flips the direction
	OrderBy    string
	Descending bool
	// Limit and Offset window the result; zero Limit means no limit
	Limit  int
	Offset int
}

// Store is a collection-oriented document store.
type Store interface {
	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Query returns the documents matching q, in query order.
	Query(ctx context.Context, collection string, q Query) ([]Document, error)

	// Count returns the number of documents matching q, ignoring Limit/Offset.
	Count(ctx context.Context, collection string, q Query) (int64, error)

	// Insert stores a new document under id. Inserting an existing id
	// replaces the document.
	Insert(ctx context.Context, collection, id string, doc Document) error

	// Update replaces the document with the given id, or ErrNotFound.
	Update(ctx context.Context, collection, id string, doc Document) error

	// Patch merges fields into the document with the given id, or ErrNotFound.
	Patch(ctx context.Context, collection, id string, fields Document) error

	// Delete removes the document with the given id, or ErrNotFound.
	Delete(ctx context.Context, collection, id string) error

	// BatchWrite applies a group of write operations atomically where the
	// backend supports it.
	BatchWrite(ctx context.Context, collection string, ops []WriteOp) error

	// Close releases any resources held by the store.
	Close() error
}
