package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/realmorph/datakit/connectivity"
	"github.com/realmorph/datakit/docstore"
	"github.com/realmorph/datakit/kvstore"
	"github.com/realmorph/datakit/logger"
)

func newTestDocument(t *testing.T, online bool) (*documentAdapter, connectivity.Monitor) {
	t.Helper()
	monitor := connectivity.NewMonitor(logger.Nop(), online)
	cfg := &Config{Documents: docstore.NewMemory()}
	a, err := NewDocument(logger.Nop(), cfg, kvstore.NewMemory(), monitor)
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a.(*documentAdapter), monitor
}

func seedContacts(t *testing.T, a *documentAdapter) {
	t.Helper()
	ctx := context.Background()
	contacts := []Document{
		{"id": "c1", "name": "Ada", "city": "London", "score": 10},
		{"id": "c2", "name": "Grace", "city": "New York", "score": 30},
		{"id": "c3", "name": "Adele", "city": "London", "score": 20},
	}
	for _, c := range contacts {
		if _, err := a.Create(ctx, "contacts", c, nil); err != nil {
			t.Fatalf("seed %v: %v", c["id"], err)
		}
	}
}

func TestDocumentCRUD(t *testing.T) {
	a, _ := newTestDocument(t, true)
	ctx := context.Background()

	created, err := a.Create(ctx, "contacts", Document{"name": "Ada"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if created.Meta.Status != http.StatusCreated {
		t.Fatalf("status = %d, want 201", created.Meta.Status)
	}
	doc := created.Data.(Document)
	id := doc["id"].(string)
	if id == "" {
		t.Fatal("no id assigned")
	}
	if doc["createdAt"] == nil || doc["updatedAt"] == nil {
		t.Fatalf("timestamps missing: %v", doc)
	}

	got, err := a.Get(ctx, "contacts", id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Data.(map[string]any)["name"] != "Ada" {
		t.Fatalf("data = %v", got.Data)
	}

	if _, err := a.Patch(ctx, "contacts", id, Document{"city": "London"}, nil); err != nil {
		t.Fatal(err)
	}
	got, err = a.Get(ctx, "contacts", id, nil)
	if err != nil {
		t.Fatal(err)
	}
	merged := got.Data.(map[string]any)
	if merged["name"] != "Ada" || merged["city"] != "London" {
		t.Fatalf("patch lost fields: %v", merged)
	}

	removed, err := a.Remove(ctx, "contacts", id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if removed.Meta.Status != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", removed.Meta.Status)
	}

	gone, err := a.Get(ctx, "contacts", id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !gone.NotFound() {
		t.Fatalf("want 404 envelope, got %+v", gone.Meta)
	}
}

func TestDocumentNotFoundIsEnvelopeNotError(t *testing.T) {
	a, _ := newTestDocument(t, true)

	for _, call := range []func() (*Response, error){
		func() (*Response, error) { return a.Get(context.Background(), "contacts", "nope", nil) },
		func() (*Response, error) {
			return a.Update(context.Background(), "contacts", "nope", Document{"x": 1}, nil)
		},
		func() (*Response, error) { return a.Remove(context.Background(), "contacts", "nope", nil) },
	} {
		resp, err := call()
		if err != nil {
			t.Fatalf("not-found must not be an error: %v", err)
		}
		if !resp.NotFound() {
			t.Fatalf("meta = %+v, want 404", resp.Meta)
		}
	}
}

func TestDocumentListFilterSortPage(t *testing.T) {
	a, _ := newTestDocument(t, true)
	seedContacts(t, a)
	ctx := context.Background()

	resp, err := a.List(ctx, "contacts", &QueryParams{
		Filters:       map[string]any{"city": "London"},
		Sort:          "score",
		SortDirection: SortDesc,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	items := resp.Data.([]Document)
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0]["id"] != "c3" || items[1]["id"] != "c1" {
		t.Fatalf("order = %v, %v", items[0]["id"], items[1]["id"])
	}
	if resp.Meta.Pagination != nil {
		t.Fatal("unpaged list must not carry pagination meta")
	}

	paged, err := a.List(ctx, "contacts", &QueryParams{Page: 2, PageSize: 2, Sort: "name"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	pg := paged.Meta.Pagination
	if pg == nil {
		t.Fatal("paged list must carry pagination meta")
	}
	if pg.Page != 2 || pg.PageSize != 2 || pg.Total != 3 || pg.Pages != 2 {
		t.Fatalf("pagination = %+v", pg)
	}
	if got := len(paged.Data.([]Document)); got != 1 {
		t.Fatalf("page 2 len = %d, want 1", got)
	}
}

func TestDocumentListSearch(t *testing.T) {
	a, _ := newTestDocument(t, true)
	seedContacts(t, a)

	resp, err := a.List(context.Background(), "contacts", &QueryParams{Search: "ad"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	items := resp.Data.([]Document)
	if len(items) != 2 {
		t.Fatalf("bare term searches name: got %d items", len(items))
	}

	resp, err = a.List(context.Background(), "contacts", &QueryParams{Search: "city:york"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	items = resp.Data.([]Document)
	if len(items) != 1 || items[0]["id"] != "c2" {
		t.Fatalf("field search items = %v", items)
	}
}

func TestDocumentBatchCreateAndRemove(t *testing.T) {
	a, _ := newTestDocument(t, true)
	ctx := context.Background()

	resp, err := a.BatchCreate(ctx, "contacts", []Document{
		{"name": "x"}, {"name": "y"}, {"name": "z"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	docs := resp.Data.([]Document)
	if len(docs) != 3 {
		t.Fatalf("len = %d", len(docs))
	}
	ids := make([]string, len(docs))
	seen := map[string]bool{}
	for i, d := range docs {
		ids[i] = d["id"].(string)
		if seen[ids[i]] {
			t.Fatalf("duplicate generated id %q", ids[i])
		}
		seen[ids[i]] = true
	}

	got, err := a.BatchGet(ctx, "contacts", ids, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, item := range got.Data.([]any) {
		if item.(map[string]any)["name"] != docs[i]["name"] {
			t.Fatalf("batch get order mismatch at %d", i)
		}
	}

	if _, err := a.BatchRemove(ctx, "contacts", ids, nil); err != nil {
		t.Fatal(err)
	}
	after, err := a.List(ctx, "contacts", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(after.Data.([]Document)); n != 0 {
		t.Fatalf("%d documents left after batch remove", n)
	}
}

func TestDocumentOfflineWritesQueueAndReplay(t *testing.T) {
	a, _ := newTestDocument(t, false)
	ctx := context.Background()

	resp, err := a.Create(ctx, "contacts", Document{"name": "deferred"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Queued() {
		t.Fatalf("status = %d, want 202", resp.Meta.Status)
	}
	id := resp.Data.(Document)["id"].(string)
	if !strings.HasPrefix(id, "temp-") {
		t.Fatalf("id = %q", id)
	}

	// nothing visible in the store until replay
	pre, err := a.Get(ctx, "contacts", id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !pre.NotFound() {
		t.Fatal("document visible before sync")
	}

	synced, err := a.SyncOffline(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if synced != 1 {
		t.Fatalf("synced = %d, want 1", synced)
	}

	post, err := a.Get(ctx, "contacts", id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if post.NotFound() {
		t.Fatal("document missing after sync")
	}
}

func TestDocumentReconnectTriggersReplay(t *testing.T) {
	a, monitor := newTestDocument(t, false)
	ctx := context.Background()

	resp, err := a.Create(ctx, "contacts", Document{"name": "deferred"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Queued() {
		t.Fatalf("status = %d, want 202", resp.Meta.Status)
	}
	id := resp.Data.(Document)["id"].(string)

	monitor.SetOnline(true)

	deadline := time.After(2 * time.Second)
	for {
		got, err := a.Get(ctx, "contacts", id, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !got.NotFound() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("queued write was not replayed after reconnect")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// closeCountingStore records Close calls on a wrapped store.
type closeCountingStore struct {
	docstore.Store
	closes int
}

func (c *closeCountingStore) Close() error {
	c.closes++
	return c.Store.Close()
}

func TestDocumentCloseLeavesStoreOpen(t *testing.T) {
	shared := &closeCountingStore{Store: docstore.NewMemory()}
	cfg := &Config{Documents: shared}

	a, err := NewDocument(logger.Nop(), cfg, kvstore.NewMemory(), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewDocument(logger.Nop(), cfg, kvstore.NewMemory(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if shared.closes != 0 {
		t.Fatalf("store closed %d times by an adapter that does not own it", shared.closes)
	}
	if _, err := b.Create(context.Background(), "contacts", Document{"name": "still works"}, nil); err != nil {
		t.Fatalf("shared store unusable after sibling close: %v", err)
	}
}

func TestDocumentOfflineCreateIDsDistinctWithinMillisecond(t *testing.T) {
	a, _ := newTestDocument(t, false)
	fixed := time.Now()
	a.now = func() time.Time { return fixed }
	ctx := context.Background()

	first, err := a.Create(ctx, "contacts", Document{"name": "one"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Create(ctx, "contacts", Document{"name": "two"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	id1 := first.Data.(Document)["id"].(string)
	id2 := second.Data.(Document)["id"].(string)
	if id1 == id2 {
		t.Fatalf("both creates got id %q", id1)
	}

	if synced, err := a.SyncOffline(ctx); err != nil || synced != 2 {
		t.Fatalf("synced = %d, err = %v", synced, err)
	}
	list, err := a.List(ctx, "contacts", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(list.Data.([]Document)); n != 2 {
		t.Fatalf("%d documents after replay, want 2 (collision overwrote one)", n)
	}
}

func TestDocumentRequiresStore(t *testing.T) {
	_, err := NewDocument(logger.Nop(), &Config{}, kvstore.NewMemory(), nil)
	if err == nil {
		t.Fatal("want config error for missing document store")
	}
}

func TestDocumentCacheControlsAreNoOps(t *testing.T) {
	a, _ := newTestDocument(t, true)
	if err := a.ClearCache(context.Background(), "contacts"); err != nil {
		t.Fatal(err)
	}
	if err := a.InvalidateCache(context.Background(), "contacts", "c1"); err != nil {
		t.Fatal(err)
	}
}

func TestDocumentClosedAdapterRejectsCalls(t *testing.T) {
	a, _ := newTestDocument(t, true)
	a.Close()
	if _, err := a.List(context.Background(), "contacts", nil, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}
