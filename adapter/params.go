package adapter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CacheMode controls how a single call interacts with response caches.
type CacheMode string

const (
	// CacheDefault consults the cache and stores fresh responses
	CacheDefault CacheMode = "default"
	// CacheBypass skips the cache for both read and write
	CacheBypass CacheMode = "no-cache"
	// CacheReload skips the cache read but stores the fresh response
	CacheReload CacheMode = "reload"
	// CacheForce serves a cached value regardless of freshness when present
	CacheForce CacheMode = "force-cache"
	// CacheOnly never issues a backend call; a miss is a failure
	CacheOnly CacheMode = "only-if-cached"
)

// bypassesRead reports whether a cached value must not be served.
func (m CacheMode) bypassesRead() bool {
	return m == CacheBypass || m == CacheReload
}

// bypassesWrite reports whether a fresh response must not be cached.
func (m CacheMode) bypassesWrite() bool {
	return m == CacheBypass
}

// RequestOptions are per-call overrides. They are never persisted; queued
// offline operations are replayed without them.
type RequestOptions struct {
	// Headers are merged over the adapter's configured headers
	Headers map[string]string
	// Query adds raw query string values to the request
	Query url.Values
	// Cache controls cache interaction for this call
	Cache CacheMode
	// Timeout overrides the adapter's per-request timeout
	Timeout time.Duration
	// Credentials selects the credentials mode forwarded to the backend
	Credentials string
}

func (o *RequestOptions) cacheMode() CacheMode {
	if o == nil || o.Cache == "" {
		return CacheDefault
	}
	return o.Cache
}

func (o *RequestOptions) timeout(fallback time.Duration) time.Duration {
	if o == nil || o.Timeout <= 0 {
		return fallback
	}
	return o.Timeout
}

// SortDirection orders list results.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// QueryParams shape a List request: pagination, filtering and field
// selection. A nil *QueryParams means "everything, backend order".
type QueryParams struct {
	// Pagination
	Page     int `json:"page,omitempty"`
	PageSize int `json:"pageSize,omitempty"`
	Offset   int `json:"offset,omitempty"`
	Limit    int `json:"limit,omitempty"`

	// Filtering
	Filters       map[string]any `json:"filters,omitempty"`
	Search        string         `json:"search,omitempty"`
	Sort          string         `json:"sort,omitempty"`
	SortDirection SortDirection  `json:"sortDirection,omitempty"`

	// Field shaping
	Select  []string `json:"select,omitempty"`
	Include []string `json:"include,omitempty"`
	Fields  []string `json:"fields,omitempty"`
	Expand  []string `json:"expand,omitempty"`
	GroupBy string   `json:"groupBy,omitempty"`
}

// paged reports whether explicit page-based pagination was requested.
// Only then does a List response carry Meta.Pagination, since computing the
// total can cost an extra backend round trip.
func (p *QueryParams) paged() bool {
	return p != nil && (p.Page > 0 || p.PageSize > 0)
}

// effectiveWindow resolves the page/offset/limit fields into a single
// offset+limit window.
func (p *QueryParams) effectiveWindow() (offset, limit int) {
	if p == nil {
		return 0, 0
	}
	offset, limit = p.Offset, p.Limit
	if p.paged() {
		page := p.Page
		if page < 1 {
			page = 1
		}
		size := p.PageSize
		if size <= 0 {
			size = defaultPageSize
		}
		offset = (page - 1) * size
		limit = size
	}
	return offset, limit
}

// encode renders the params as a query string for REST backends.
func (p *QueryParams) encode(extra url.Values) url.Values {
	values := url.Values{}
	for key, vals := range extra {
		for _, v := range vals {
			values.Add(key, v)
		}
	}
	if p == nil {
		return values
	}

	setInt := func(key string, v int) {
		if v > 0 {
			values.Set(key, strconv.Itoa(v))
		}
	}
	setInt("page", p.Page)
	setInt("pageSize", p.PageSize)
	setInt("offset", p.Offset)
	setInt("limit", p.Limit)

	for field, val := range p.Filters {
		values.Set("filter["+field+"]", toString(val))
	}
	if p.Search != "" {
		values.Set("search", p.Search)
	}
	if p.Sort != "" {
		values.Set("sort", p.Sort)
		if p.SortDirection != "" {
			values.Set("sortDirection", string(p.SortDirection))
		}
	}

	setList := func(key string, items []string) {
		if len(items) > 0 {
			values.Set(key, strings.Join(items, ","))
		}
	}
	setList("select", p.Select)
	setList("include", p.Include)
	setList("fields", p.Fields)
	setList("expand", p.Expand)
	if p.GroupBy != "" {
		values.Set("groupBy", p.GroupBy)
	}
	return values
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
