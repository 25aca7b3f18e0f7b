package adapter

import (
	"context"
	"time"

	"github.com/maypok86/otter"
	"github.com/realmorph/datakit/logger"
)

// defaultCacheCapacity bounds the decorator's in-memory cache.
const defaultCacheCapacity = 10_000

// Rule decides whether one operation's responses are cached. A nil When
// caches unconditionally.
type Rule struct {
	Cache bool
	When  func(endpoint string) bool
}

func (r Rule) applies(endpoint string) bool {
	if !r.Cache {
		return false
	}
	if r.When != nil {
		return r.When(endpoint)
	}
	return true
}

// CacheableConfig tunes the caching decorator.
type CacheableConfig struct {
	// TTL is the lifetime of a cached response
	TTL time.Duration `mapstructure:"ttl"`
	// Capacity bounds the number of cached responses
	Capacity int `mapstructure:"capacity"`
	// Rules overrides the per-operation cache policy; unset operations
	// fall back to the defaults (reads cached, mutations never)
	Rules map[Operation]Rule `mapstructure:"-"`
}

func (c *CacheableConfig) mergeDefaults() *CacheableConfig {
	out := CacheableConfig{}
	if c != nil {
		out = *c
	}
	if out.TTL <= 0 {
		out.TTL = 5 * time.Minute
	}
	if out.Capacity <= 0 {
		out.Capacity = defaultCacheCapacity
	}
	return &out
}

func defaultRules() map[Operation]Rule {
	return map[Operation]Rule{
		OpGet:      {Cache: true},
		OpList:     {Cache: true},
		OpBatchGet: {Cache: true},
	}
}

// cacheableAdapter decorates another adapter with a short-lived in-memory
// response cache. Any successful mutation through the decorator clears the
// whole cache; cross-endpoint relations make finer invalidation unsafe.
type cacheableAdapter struct {
	DataAdapter

	logger logger.Logger
	cache  otter.CacheWithVariableTTL[string, *Response]
	rules  map[Operation]Rule
	ttl    time.Duration
	ns     string
}

// NewCacheable wraps inner with response caching for read operations.
func NewCacheable(log logger.Logger, inner DataAdapter, cfg *CacheableConfig) (DataAdapter, error) {
	cfg = cfg.mergeDefaults()

	cache, err := otter.MustBuilder[string, *Response](cfg.Capacity).
		WithVariableTTL().
		Build()
	if err != nil {
		return nil, ErrInvalidConfig(err.Error())
	}

	rules := defaultRules()
	for op, rule := range cfg.Rules {
		rules[op] = rule
	}

	return &cacheableAdapter{
		DataAdapter: inner,
		logger:      log,
		cache:       cache,
		rules:       rules,
		ttl:         cfg.TTL,
		ns:          "cacheable",
	}, nil
}

func (a *cacheableAdapter) cacheable(op Operation, endpoint string, opts *RequestOptions) bool {
	if opts.cacheMode().bypassesRead() {
		return false
	}
	return a.rules[op].applies(endpoint)
}

func (a *cacheableAdapter) Get(ctx context.Context, endpoint, id string, opts *RequestOptions) (*Response, error) {
	if !a.cacheable(OpGet, endpoint, opts) {
		return a.DataAdapter.Get(ctx, endpoint, id, opts)
	}
	key := cacheKey(a.ns, endpoint, OpGet, id)
	if resp, ok := a.cache.Get(key); ok {
		return resp, nil
	}
	resp, err := a.DataAdapter.Get(ctx, endpoint, id, opts)
	if err != nil {
		return nil, err
	}
	if !resp.NotFound() && !opts.cacheMode().bypassesWrite() {
		a.cache.Set(key, resp, a.ttl)
	}
	return resp, nil
}

func (a *cacheableAdapter) List(ctx context.Context, endpoint string, params *QueryParams, opts *RequestOptions) (*Response, error) {
	if !a.cacheable(OpList, endpoint, opts) {
		return a.DataAdapter.List(ctx, endpoint, params, opts)
	}
	key := cacheKey(a.ns, endpoint, OpList, params)
	if resp, ok := a.cache.Get(key); ok {
		return resp, nil
	}
	resp, err := a.DataAdapter.List(ctx, endpoint, params, opts)
	if err != nil {
		return nil, err
	}
	if !opts.cacheMode().bypassesWrite() {
		a.cache.Set(key, resp, a.ttl)
	}
	return resp, nil
}

func (a *cacheableAdapter) BatchGet(ctx context.Context, endpoint string, ids []string, opts *RequestOptions) (*Response, error) {
	if !a.cacheable(OpBatchGet, endpoint, opts) {
		return a.DataAdapter.BatchGet(ctx, endpoint, ids, opts)
	}
	key := cacheKey(a.ns, endpoint, OpBatchGet, ids)
	if resp, ok := a.cache.Get(key); ok {
		return resp, nil
	}
	resp, err := a.DataAdapter.BatchGet(ctx, endpoint, ids, opts)
	if err != nil {
		return nil, err
	}
	if !opts.cacheMode().bypassesWrite() {
		a.cache.Set(key, resp, a.ttl)
		a.seedItems(endpoint, ids, resp)
	}
	return resp, nil
}

// seedItems stores each fetched item under its singular get key, so a
// follow-up Get of a batch member is already warm.
func (a *cacheableAdapter) seedItems(endpoint string, ids []string, resp *Response) {
	var docs []any
	switch items := resp.Data.(type) {
	case []any:
		docs = items
	case []Document:
		docs = make([]any, len(items))
		for i, d := range items {
			docs[i] = d
		}
	default:
		return
	}
	if len(docs) != len(ids) {
		return
	}
	for i, item := range docs {
		if item == nil {
			continue
		}
		single := &Response{Data: item, Meta: resp.Meta}
		a.cache.Set(cacheKey(a.ns, endpoint, OpGet, ids[i]), single, a.ttl)
	}
}

func (a *cacheableAdapter) Create(ctx context.Context, endpoint string, data Document, opts *RequestOptions) (*Response, error) {
	resp, err := a.DataAdapter.Create(ctx, endpoint, data, opts)
	if err == nil {
		a.cache.Clear()
	}
	return resp, err
}

func (a *cacheableAdapter) Update(ctx context.Context, endpoint, id string, data Document, opts *RequestOptions) (*Response, error) {
	resp, err := a.DataAdapter.Update(ctx, endpoint, id, data, opts)
	if err == nil {
		a.cache.Clear()
	}
	return resp, err
}

func (a *cacheableAdapter) Patch(ctx context.Context, endpoint, id string, data Document, opts *RequestOptions) (*Response, error) {
	resp, err := a.DataAdapter.Patch(ctx, endpoint, id, data, opts)
	if err == nil {
		a.cache.Clear()
	}
	return resp, err
}

func (a *cacheableAdapter) Remove(ctx context.Context, endpoint, id string, opts *RequestOptions) (*Response, error) {
	resp, err := a.DataAdapter.Remove(ctx, endpoint, id, opts)
	if err == nil {
		a.cache.Clear()
	}
	return resp, err
}

func (a *cacheableAdapter) BatchCreate(ctx context.Context, endpoint string, items []Document, opts *RequestOptions) (*Response, error) {
	resp, err := a.DataAdapter.BatchCreate(ctx, endpoint, items, opts)
	if err == nil {
		a.cache.Clear()
	}
	return resp, err
}

func (a *cacheableAdapter) BatchUpdate(ctx context.Context, endpoint string, items []Document, opts *RequestOptions) (*Response, error) {
	resp, err := a.DataAdapter.BatchUpdate(ctx, endpoint, items, opts)
	if err == nil {
		a.cache.Clear()
	}
	return resp, err
}

func (a *cacheableAdapter) BatchRemove(ctx context.Context, endpoint string, ids []string, opts *RequestOptions) (*Response, error) {
	resp, err := a.DataAdapter.BatchRemove(ctx, endpoint, ids, opts)
	if err == nil {
		a.cache.Clear()
	}
	return resp, err
}

func (a *cacheableAdapter) ClearCache(ctx context.Context, endpoint string) error {
	a.cache.Clear()
	return a.DataAdapter.ClearCache(ctx, endpoint)
}

func (a *cacheableAdapter) InvalidateCache(ctx context.Context, endpoint, id string) error {
	a.cache.Delete(cacheKey(a.ns, endpoint, OpGet, id))
	return a.DataAdapter.InvalidateCache(ctx, endpoint, id)
}

func (a *cacheableAdapter) Close() error {
	a.cache.Close()
	return a.DataAdapter.Close()
}
