package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/realmorph/datakit/kvstore"
	"github.com/realmorph/datakit/logger"
	"go.uber.org/zap"
)

// cacheEntry is the persisted form of a cached response.
// Expiry is carried inside the entry as well as in the store's own TTL, so
// the staleness check holds even on stores whose TTL granularity is coarse.
type cacheEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Expiry    int64           `json:"expiry"`
}

// responseCache stores Response envelopes in durable key-value storage with
// a fixed TTL. Expired entries are deleted lazily on read.
type responseCache struct {
	logger    logger.Logger
	store     kvstore.Store
	namespace string
	ttl       time.Duration
	now       func() time.Time
}

func newResponseCache(log logger.Logger, store kvstore.Store, namespace string, ttl time.Duration) *responseCache {
	return &responseCache{
		logger:    log,
		store:     store,
		namespace: namespace,
		ttl:       ttl,
		now:       time.Now,
	}
}

// get returns the cached envelope for key, or nil on miss.
// Cache failures degrade to a miss; they never fail the calling operation.
func (c *responseCache) get(ctx context.Context, key string) *Response {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = c.store.Remove(ctx, key)
		return nil
	}

	if entry.Expiry > 0 && c.now().UnixMilli() >= entry.Expiry {
		_ = c.store.Remove(ctx, key)
		return nil
	}

	var resp Response
	if err := json.Unmarshal(entry.Data, &resp); err != nil {
		_ = c.store.Remove(ctx, key)
		return nil
	}
	return &resp
}

// put stores the envelope under key with the cache's TTL.
func (c *responseCache) put(ctx context.Context, key string, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("cache write skipped, response not serializable", zap.String("key", key), zap.Error(err))
		return
	}
	now := c.now()
	entry := cacheEntry{
		Data:      data,
		Timestamp: now.UnixMilli(),
		Expiry:    now.Add(c.ttl).UnixMilli(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// clear drops cached responses, scoped to one endpoint when non-empty.
func (c *responseCache) clear(ctx context.Context, endpoint string) error {
	prefix := namespacePrefix(c.namespace)
	if endpoint != "" {
		prefix = endpointPrefix(c.namespace, endpoint)
	}
	return c.store.Clear(ctx, prefix)
}

// invalidate drops cached responses for one endpoint. With an id it removes
// the single-resource entry and the endpoint's list entries; without one it
// behaves like clear(endpoint).
func (c *responseCache) invalidate(ctx context.Context, endpoint, id string) error {
	if id == "" {
		return c.clear(ctx, endpoint)
	}
	if err := c.store.Remove(ctx, cacheKey(c.namespace, endpoint, OpGet, id)); err != nil {
		return err
	}
	// list results may embed the changed resource; drop them wholesale
	keys, err := c.store.Keys(ctx, cacheKey(c.namespace, endpoint, OpList, nil))
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.store.Remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
