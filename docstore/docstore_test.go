package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/realmorph/datakit/logger"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docs.db")
	sqliteStore, err := NewSQLite(logger.Nop(), &SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqliteStore,
	}
}

func seedContacts(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	docs := []Document{
		{"id": "c1", "name": "Ada Lovelace", "stage": "lead", "score": 10},
		{"id": "c2", "name": "Grace Hopper", "stage": "customer", "score": 30},
		{"id": "c3", "name": "Alan Turing", "stage": "lead", "score": 20},
	}
	for _, doc := range docs {
		if err := store.Insert(ctx, "contacts", doc["id"].(string), doc); err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}
}

func TestStore_GetNotFound(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get(ctx, "contacts", "ghost"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			doc := Document{"id": "d1", "title": "Enterprise deal", "amount": 5000}
			if err := store.Insert(ctx, "deals", "d1", doc); err != nil {
				t.Fatalf("Insert failed: %v", err)
			}

			got, err := store.Get(ctx, "deals", "d1")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got["title"] != "Enterprise deal" {
				t.Errorf("unexpected title %v", got["title"])
			}

			if err := store.Patch(ctx, "deals", "d1", Document{"stage": "won"}); err != nil {
				t.Fatalf("Patch failed: %v", err)
			}
			got, _ = store.Get(ctx, "deals", "d1")
			if got["stage"] != "won" || got["title"] != "Enterprise deal" {
				t.Errorf("patch lost data: %v", got)
			}

			if err := store.Update(ctx, "deals", "d1", Document{"id": "d1", "title": "Renewal"}); err != nil {
				t.Fatalf("Update failed: %v", err)
			}
			got, _ = store.Get(ctx, "deals", "d1")
			if _, ok := got["stage"]; ok {
				t.Error("update should replace, not merge")
			}

			if err := store.Delete(ctx, "deals", "d1"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := store.Get(ctx, "deals", "d1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestStore_MutateMissing(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Update(ctx, "contacts", "nope", Document{}); !errors.Is(err, ErrNotFound) {
				t.Errorf("Update: expected ErrNotFound, got %v", err)
			}
			if err := store.Patch(ctx, "contacts", "nope", Document{}); !errors.Is(err, ErrNotFound) {
				t.Errorf("Patch: expected ErrNotFound, got %v", err)
			}
			if err := store.Delete(ctx, "contacts", "nope"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Delete: expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_QueryFilters(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			seedContacts(t, store)

			docs, err := store.Query(ctx, "contacts", Query{Filters: map[string]any{"stage": "lead"}})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(docs) != 2 {
				t.Fatalf("expected 2 leads, got %d", len(docs))
			}
		})
	}
}

func TestStore_QuerySearch(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			seedContacts(t, store)

			docs, err := store.Query(ctx, "contacts", Query{SearchField: "name", SearchTerm: "lovelace"})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(docs) != 1 || docs[0]["id"] != "c1" {
				t.Errorf("unexpected search result: %v", docs)
			}
		})
	}
}

func TestStore_QuerySortAndWindow(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			seedContacts(t, store)

			docs, err := store.Query(ctx, "contacts", Query{OrderBy: "score", Descending: true, Limit: 2})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(docs) != 2 || docs[0]["id"] != "c2" || docs[1]["id"] != "c3" {
				t.Errorf("unexpected sort/window result: %v", docs)
			}

			docs, err = store.Query(ctx, "contacts", Query{OrderBy: "score", Limit: 2, Offset: 1})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(docs) != 2 || docs[0]["id"] != "c3" || docs[1]["id"] != "c2" {
				t.Errorf("unexpected offset result: %v", docs)
			}
		})
	}
}

func TestStore_Count(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			seedContacts(t, store)

			// Count ignores the window
			n, err := store.Count(ctx, "contacts", Query{Limit: 1})
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if n != 3 {
				t.Errorf("expected count 3, got %d", n)
			}

			n, _ = store.Count(ctx, "contacts", Query{Filters: map[string]any{"stage": "customer"}})
			if n != 1 {
				t.Errorf("expected count 1, got %d", n)
			}
		})
	}
}

func TestStore_BatchWrite(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			seedContacts(t, store)

			ops := []WriteOp{
				{Type: OpInsert, ID: "c4", Data: Document{"id": "c4", "name": "Edsger Dijkstra"}},
				{Type: OpPatch, ID: "c1", Data: Document{"stage": "customer"}},
				{Type: OpDelete, ID: "c3"},
			}
			if err := store.BatchWrite(ctx, "contacts", ops); err != nil {
				t.Fatalf("BatchWrite failed: %v", err)
			}

			if _, err := store.Get(ctx, "contacts", "c4"); err != nil {
				t.Errorf("batch insert missing: %v", err)
			}
			doc, _ := store.Get(ctx, "contacts", "c1")
			if doc["stage"] != "customer" {
				t.Errorf("batch patch not applied: %v", doc)
			}
			if _, err := store.Get(ctx, "contacts", "c3"); !errors.Is(err, ErrNotFound) {
				t.Errorf("batch delete not applied: %v", err)
			}
		})
	}
}

func TestStore_BatchWriteFailureLeavesStateIntact(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			seedContacts(t, store)

			ops := []WriteOp{
				{Type: OpDelete, ID: "c1"},
				{Type: OpUpdate, ID: "missing", Data: Document{}},
			}
			if err := store.BatchWrite(ctx, "contacts", ops); err == nil {
				t.Fatal("expected batch failure")
			}
			if _, err := store.Get(ctx, "contacts", "c1"); err != nil {
				t.Errorf("failed batch should not have deleted c1: %v", err)
			}
		})
	}
}
