// Package adapter provides a uniform CRUD and batch facade over pluggable
// data backends.
//
// The adapter package follows the kit conventions:
// - Interface-driven design for testability
// - Uses logger.Logger interface for unified logging
// - Uses routine package for safe goroutine execution
// - Configuration with validation and defaults
// - Structured error handling
//
// Available adapters:
// - Rest: talks JSON over HTTP to a REST backend
// - Document: talks to a docstore.Store
// - Cacheable: decorator adding a policy-driven in-memory cache to any adapter
//
// Every adapter returns the same Response envelope, caches reads in durable
// key-value storage, and defers writes to a persisted offline queue while
// connectivity is down. Queued writes are replayed in FIFO order when the
// connectivity monitor reports the backend reachable again.
package adapter

import "context"

// Document is a schemaless record exchanged with a backend.
type Document = map[string]any

// Operation identifies an adapter method for cache keys and policies.
type Operation string

const (
	OpGet         Operation = "get"
	OpList        Operation = "list"
	OpCreate      Operation = "create"
	OpUpdate      Operation = "update"
	OpPatch       Operation = "patch"
	OpRemove      Operation = "remove"
	OpBatchGet    Operation = "batchGet"
	OpBatchCreate Operation = "batchCreate"
	OpBatchUpdate Operation = "batchUpdate"
	OpBatchRemove Operation = "batchRemove"
)

// DataAdapter is the contract every backend adapter satisfies.
//
// Read operations never surface a missing resource as an error: a Get for an
// absent id yields a success envelope with nil Data and status 404. Mutating
// operations issued while the backend is unreachable and offline mode is
// enabled are queued and acknowledged with status 202.
type DataAdapter interface {
	// Get fetches a single resource.
	Get(ctx context.Context, endpoint, id string, opts *RequestOptions) (*Response, error)

	// List fetches a collection, applying filter, sort and pagination params.
	// Meta.Pagination is populated when params request a page.
	List(ctx context.Context, endpoint string, params *QueryParams, opts *RequestOptions) (*Response, error)

	// Create stores a new resource. The returned document carries server
	// timestamps (createdAt, updatedAt).
	Create(ctx context.Context, endpoint string, data Document, opts *RequestOptions) (*Response, error)

	// Update replaces an existing resource.
	Update(ctx context.Context, endpoint, id string, data Document, opts *RequestOptions) (*Response, error)

	// Patch merges fields into an existing resource.
	Patch(ctx context.Context, endpoint, id string, data Document, opts *RequestOptions) (*Response, error)

	// Remove deletes a resource.
	Remove(ctx context.Context, endpoint, id string, opts *RequestOptions) (*Response, error)

	// BatchGet fetches several resources, preserving the order of ids.
	BatchGet(ctx context.Context, endpoint string, ids []string, opts *RequestOptions) (*Response, error)

	// BatchCreate stores several resources at once.
	BatchCreate(ctx context.Context, endpoint string, items []Document, opts *RequestOptions) (*Response, error)

	// BatchUpdate replaces several resources at once. Each item must carry
	// an "id" field.
	BatchUpdate(ctx context.Context, endpoint string, items []Document, opts *RequestOptions) (*Response, error)

	// BatchRemove deletes several resources at once.
	BatchRemove(ctx context.Context, endpoint string, ids []string, opts *RequestOptions) (*Response, error)

	// ClearCache drops cached responses, scoped to endpoint when non-empty.
	// A no-op is a valid implementation.
	ClearCache(ctx context.Context, endpoint string) error

	// InvalidateCache drops cached responses for one endpoint, and for one
	// resource when id is non-empty. A no-op is a valid implementation.
	InvalidateCache(ctx context.Context, endpoint, id string) error

	// IsOnline reports the connectivity signal's current state.
	IsOnline() bool

	// SyncOffline replays the pending offline operations in FIFO order.
	// It returns the number of operations replayed successfully; replay
	// failures are re-queued, not returned.
	SyncOffline(ctx context.Context) (int, error)

	// EnableOfflineMode controls whether offline writes are queued (true)
	// or attempted immediately and allowed to fail (false).
	EnableOfflineMode(enabled bool)

	// Configure merges new configuration; it affects subsequent calls only.
	Configure(cfg *Config) error

	// Close releases background resources held by the adapter.
	Close() error
}
