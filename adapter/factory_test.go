package adapter

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/realmorph/datakit/docstore"
	"github.com/realmorph/datakit/kvstore"
	"github.com/realmorph/datakit/logger"
)

func newTestFactory(t *testing.T) (*Factory, *httptest.Server) {
	t.Helper()
	srv := newRecordingServer(t)
	f := NewFactory(Deps{
		Logger:    logger.Nop(),
		Store:     kvstore.NewMemory(),
		Documents: docstore.NewMemory(),
	})
	t.Cleanup(func() { f.Close() })
	return f, srv.Server
}

func TestFactoryMemoizesByKindAndKey(t *testing.T) {
	f, srv := newTestFactory(t)
	cfg := &Config{BaseURL: srv.URL}

	a1, err := f.Adapter(KindRest, "", cfg)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := f.Adapter(KindRest, "", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if a1 != a2 {
		t.Fatal("same kind and key must return the memoized instance")
	}

	a3, err := f.Adapter(KindRest, "tenant-b", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if a3 == a1 {
		t.Fatal("distinct keys must not share an instance")
	}

	d, err := f.Adapter(KindDocument, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if d == a1 {
		t.Fatal("distinct kinds must not share an instance")
	}
}

func TestFactoryNewBypassesMemoization(t *testing.T) {
	f, srv := newTestFactory(t)
	cfg := &Config{BaseURL: srv.URL}

	memoized, err := f.Adapter(KindRest, "", cfg)
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := f.New(KindRest, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer fresh.Close()
	if fresh == memoized {
		t.Fatal("New must construct a fresh adapter")
	}
}

func TestFactoryUnknownKind(t *testing.T) {
	f, _ := newTestFactory(t)
	if _, err := f.Adapter(Kind("graphql"), "", nil); err == nil {
		t.Fatal("want error for unregistered kind")
	}
}

func TestFactoryRegisterCustomKind(t *testing.T) {
	f, _ := newTestFactory(t)

	stub := newCountingAdapter()
	f.Register(Kind("stub"), func(d Deps, cfg *Config) (DataAdapter, error) {
		return stub, nil
	})

	a, err := f.Adapter(Kind("stub"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if a != DataAdapter(stub) {
		t.Fatal("custom builder not used")
	}
}

func TestFactoryRemoveClosesInstance(t *testing.T) {
	f, srv := newTestFactory(t)
	cfg := &Config{BaseURL: srv.URL}

	a, err := f.Adapter(KindRest, "", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Remove(KindRest, ""); err != nil {
		t.Fatal(err)
	}

	// the removed instance is closed; a new Get builds a new one
	if _, err := a.Get(context.Background(), "users", "1", nil); err == nil {
		t.Fatal("removed adapter should be closed")
	}
	b, err := f.Adapter(KindRest, "", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("want a fresh instance after Remove")
	}
}

func TestFactoryDefaultsMerged(t *testing.T) {
	srv := newRecordingServer(t)
	f := NewFactory(Deps{
		Logger:   logger.Nop(),
		Store:    kvstore.NewMemory(),
		Defaults: &Config{BaseURL: srv.URL, Namespace: "tenant"},
	})
	defer f.Close()

	a, err := f.Adapter(KindRest, "", nil)
	if err != nil {
		t.Fatalf("factory defaults must satisfy the rest adapter: %v", err)
	}
	if got := a.(*restAdapter).config().Namespace; got != "tenant" {
		t.Fatalf("namespace = %q", got)
	}

	b, err := f.Adapter(KindRest, "other", &Config{Namespace: "override"})
	if err != nil {
		t.Fatal(err)
	}
	if got := b.(*restAdapter).config().Namespace; got != "override" {
		t.Fatalf("namespace = %q", got)
	}
}

func TestFactoryDocumentRequiresStore(t *testing.T) {
	f := NewFactory(Deps{Logger: logger.Nop(), Store: kvstore.NewMemory()})
	defer f.Close()
	if _, err := f.Adapter(KindDocument, "", nil); err == nil {
		t.Fatal("want config error without a document store")
	}
}
