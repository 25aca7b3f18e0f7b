package adapter

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/realmorph/datakit/kvstore"
	"github.com/realmorph/datakit/logger"
)

func newTestCache(t *testing.T) *responseCache {
	t.Helper()
	return newResponseCache(logger.Nop(), kvstore.NewMemory(), "test", time.Minute)
}

func TestResponseCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := cacheKey("test", "contacts", OpGet, "1")

	if got := c.get(ctx, key); got != nil {
		t.Fatalf("empty cache returned %+v", got)
	}

	c.put(ctx, key, &Response{
		Data: Document{"id": "1", "name": "Ada"},
		Meta: Meta{Status: http.StatusOK, Timestamp: 123},
	})

	got := c.get(ctx, key)
	if got == nil {
		t.Fatal("miss after put")
	}
	if got.Meta.Status != http.StatusOK {
		t.Fatalf("status = %d", got.Meta.Status)
	}
	if doc := got.Data.(map[string]any); doc["name"] != "Ada" {
		t.Fatalf("data = %v", got.Data)
	}
}

func TestResponseCacheLazyExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := cacheKey("test", "contacts", OpGet, "1")

	c.put(ctx, key, &Response{Data: Document{"id": "1"}, Meta: Meta{Status: http.StatusOK}})

	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if got := c.get(ctx, key); got != nil {
		t.Fatalf("expired entry served: %+v", got)
	}
}

func TestResponseCacheInvalidateDropsListEntries(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	getKey := cacheKey("test", "contacts", OpGet, "1")
	listKey := cacheKey("test", "contacts", OpList, map[string]any{"city": "London"})
	otherGet := cacheKey("test", "contacts", OpGet, "2")
	otherEndpoint := cacheKey("test", "deals", OpGet, "1")

	resp := &Response{Data: Document{"id": "1"}, Meta: Meta{Status: http.StatusOK}}
	for _, key := range []string{getKey, listKey, otherGet, otherEndpoint} {
		c.put(ctx, key, resp)
	}

	if err := c.invalidate(ctx, "contacts", "1"); err != nil {
		t.Fatal(err)
	}
	if c.get(ctx, getKey) != nil {
		t.Fatal("invalidated get entry survived")
	}
	if c.get(ctx, listKey) != nil {
		t.Fatal("list entries must be dropped with the resource")
	}
	if c.get(ctx, otherGet) == nil {
		t.Fatal("sibling resource entry must survive")
	}
	if c.get(ctx, otherEndpoint) == nil {
		t.Fatal("other endpoint entry must survive")
	}
}

func TestResponseCacheClearScopes(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	contacts := cacheKey("test", "contacts", OpGet, "1")
	deals := cacheKey("test", "deals", OpGet, "1")
	resp := &Response{Data: Document{"id": "1"}, Meta: Meta{Status: http.StatusOK}}
	c.put(ctx, contacts, resp)
	c.put(ctx, deals, resp)

	if err := c.clear(ctx, "contacts"); err != nil {
		t.Fatal(err)
	}
	if c.get(ctx, contacts) != nil {
		t.Fatal("cleared endpoint entry survived")
	}
	if c.get(ctx, deals) == nil {
		t.Fatal("other endpoint cleared")
	}

	if err := c.clear(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if c.get(ctx, deals) != nil {
		t.Fatal("namespace clear left entries")
	}
}

func TestResponseCacheUndecodableEntryIsMiss(t *testing.T) {
	store := kvstore.NewMemory()
	c := newResponseCache(logger.Nop(), store, "test", time.Minute)
	ctx := context.Background()
	key := cacheKey("test", "contacts", OpGet, "1")

	if err := store.Set(ctx, key, []byte("{broken"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if got := c.get(ctx, key); got != nil {
		t.Fatalf("corrupt entry served: %+v", got)
	}
}
