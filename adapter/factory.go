package adapter

import (
	"sync"

	"github.com/realmorph/datakit/connectivity"
	"github.com/realmorph/datakit/docstore"
	"github.com/realmorph/datakit/kvstore"
	"github.com/realmorph/datakit/logger"
)

// Kind names an adapter implementation.
type Kind string

const (
	KindRest     Kind = "rest"
	KindDocument Kind = "document"
)

// defaultInstanceKey identifies the memoized instance when Get is called
// without an explicit key.
const defaultInstanceKey = "default"

// Deps are the shared resources a factory hands to every adapter it builds.
type Deps struct {
	Logger  logger.Logger
	Store   kvstore.Store
	Monitor connectivity.Monitor
	// Documents is the default backing store for document adapters; a
	// per-call Config.Documents takes precedence
	Documents docstore.Store
	// Defaults is merged under every per-call config
	Defaults *Config
}

// Builder constructs one adapter kind from a config.
type Builder func(deps Deps, cfg *Config) (DataAdapter, error)

// Factory builds and memoizes adapters by kind and key, so independent parts
// of an application share one adapter per backend.
type Factory struct {
	deps     Deps
	mu       sync.Mutex
	builders map[Kind]Builder
	inst     map[string]DataAdapter
}

// NewFactory creates a factory with the built-in rest and document builders
// registered.
func NewFactory(deps Deps) *Factory {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	f := &Factory{
		deps:     deps,
		builders: make(map[Kind]Builder),
		inst:     make(map[string]DataAdapter),
	}
	f.builders[KindRest] = func(d Deps, cfg *Config) (DataAdapter, error) {
		return NewRest(d.Logger, cfg, d.Store, d.Monitor)
	}
	f.builders[KindDocument] = func(d Deps, cfg *Config) (DataAdapter, error) {
		if cfg != nil && cfg.Documents == nil {
			c := *cfg
			c.Documents = d.Documents
			cfg = &c
		}
		if cfg == nil && d.Documents != nil {
			cfg = &Config{Documents: d.Documents}
		}
		return NewDocument(d.Logger, cfg, d.Store, d.Monitor)
	}
	return f
}

// effectiveConfig overlays the call-site config on the factory defaults.
func (f *Factory) effectiveConfig(cfg *Config) *Config {
	if f.deps.Defaults == nil {
		return cfg
	}
	return f.deps.Defaults.merge(cfg)
}

// Register adds or replaces the builder for a kind.
func (f *Factory) Register(kind Kind, b Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[kind] = b
}

// New always constructs a fresh adapter, bypassing memoization.
func (f *Factory) New(kind Kind, cfg *Config) (DataAdapter, error) {
	f.mu.Lock()
	b, ok := f.builders[kind]
	f.mu.Unlock()
	if !ok {
		return nil, ErrUnknownKind(kind)
	}
	return b(f.deps, f.effectiveConfig(cfg))
}

// Adapter returns the memoized adapter for kind and key, building it on first
// use. An empty key selects the default instance.
func (f *Factory) Adapter(kind Kind, key string, cfg *Config) (DataAdapter, error) {
	if key == "" {
		key = defaultInstanceKey
	}
	id := string(kind) + ":" + key

	f.mu.Lock()
	defer f.mu.Unlock()

	if a, ok := f.inst[id]; ok {
		return a, nil
	}
	b, ok := f.builders[kind]
	if !ok {
		return nil, ErrUnknownKind(kind)
	}
	a, err := b(f.deps, f.effectiveConfig(cfg))
	if err != nil {
		return nil, err
	}
	f.inst[id] = a
	return a, nil
}

// Remove closes and forgets the memoized adapter for kind and key.
func (f *Factory) Remove(kind Kind, key string) error {
	if key == "" {
		key = defaultInstanceKey
	}
	id := string(kind) + ":" + key

	f.mu.Lock()
	a, ok := f.inst[id]
	delete(f.inst, id)
	f.mu.Unlock()

	if !ok {
		return nil
	}
	return a.Close()
}

// Close closes every memoized adapter. The first close error is returned;
// remaining adapters are still closed.
func (f *Factory) Close() error {
	f.mu.Lock()
	instances := f.inst
	f.inst = make(map[string]DataAdapter)
	f.mu.Unlock()

	var first error
	for _, a := range instances {
		if err := a.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
