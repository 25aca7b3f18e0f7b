package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// memoryStore is an in-process Store implementation.
// Documents are copied through JSON on the way in and out, so callers can
// never alias stored state.
type memoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

// NewMemory creates an in-memory document store.
func NewMemory() Store {
	return &memoryStore{
		collections: make(map[string]map[string]Document),
	}
}

func cloneDoc(doc Document) Document {
	raw, err := json.Marshal(doc)
	if err != nil {
		// a Document that fails to marshal cannot round-trip any backend;
		// fall back to a shallow copy
		shallow := make(Document, len(doc))
		for k, v := range doc {
			shallow[k] = v
		}
		return shallow
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return doc
	}
	return out
}

func (s *memoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *memoryStore) Query(_ context.Context, collection string, q Query) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[collection]
	ids := make([]string, 0, len(coll))
	for id, doc := range coll {
		if matchQuery(doc, q) {
			ids = append(ids, id)
		}
	}
	// map iteration is unordered; id order keeps unsorted queries stable
	sort.Strings(ids)

	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, cloneDoc(coll[id]))
	}
	sortDocs(docs, q)
	return window(docs, q), nil
}

func (s *memoryStore) Count(_ context.Context, collection string, q Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, doc := range s.collections[collection] {
		if matchQuery(doc, q) {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) Insert(_ context.Context, collection, id string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(collection, id, doc)
	return nil
}

func (s *memoryStore) insertLocked(collection, id string, doc Document) {
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Document)
		s.collections[collection] = coll
	}
	coll[id] = cloneDoc(doc)
}

func (s *memoryStore) Update(_ context.Context, collection, id string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(collection, id, doc)
}

func (s *memoryStore) updateLocked(collection, id string, doc Document) error {
	coll := s.collections[collection]
	if _, ok := coll[id]; !ok {
		return ErrNotFound
	}
	coll[id] = cloneDoc(doc)
	return nil
}

func (s *memoryStore) Patch(_ context.Context, collection, id string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patchLocked(collection, id, fields)
}

func (s *memoryStore) patchLocked(collection, id string, fields Document) error {
	coll := s.collections[collection]
	existing, ok := coll[id]
	if !ok {
		return ErrNotFound
	}
	coll[id] = mergeFields(existing, cloneDoc(fields))
	return nil
}

func (s *memoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(collection, id)
}

func (s *memoryStore) deleteLocked(collection, id string) error {
	coll := s.collections[collection]
	if _, ok := coll[id]; !ok {
		return ErrNotFound
	}
	delete(coll, id)
	return nil
}

// BatchWrite applies all operations under one lock. Validation happens up
// front so a failing op leaves the collection untouched.
func (s *memoryStore) BatchWrite(_ context.Context, collection string, ops []WriteOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	for _, op := range ops {
		switch op.Type {
		case OpInsert:
		case OpUpdate, OpPatch, OpDelete:
			if _, ok := coll[op.ID]; !ok {
				return ErrNotFound
			}
		default:
			return ErrUnknownOp(op.Type)
		}
	}

	for _, op := range ops {
		switch op.Type {
		case OpInsert:
			s.insertLocked(collection, op.ID, op.Data)
		case OpUpdate:
			_ = s.updateLocked(collection, op.ID, op.Data)
		case OpPatch:
			_ = s.patchLocked(collection, op.ID, op.Data)
		case OpDelete:
			_ = s.deleteLocked(collection, op.ID)
		}
	}
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
