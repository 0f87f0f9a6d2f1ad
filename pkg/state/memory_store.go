package state

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-settings/layering"
)

// MemoryStore is an in-memory Store keyed by Ref.Identifier. Snapshots are
// deep copied on the way in and out.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	records map[string]memoryRecord[T]
}

type memoryRecord[T any] struct {
	snapshot T
	meta     Meta
}

// NewMemoryStore returns an empty store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{records: map[string]memoryRecord[T]{}}
}

func (s *MemoryStore[T]) Load(_ context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}
	return s.load(key)
}

func (s *MemoryStore[T]) Save(_ context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	return s.save(key, snapshot, meta), nil
}

func (s *MemoryStore[T]) Delete(_ context.Context, ref Ref) (bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return false, err
	}
	return s.remove(key), nil
}

// Keys lists stored identifiers in sorted order.
func (s *MemoryStore[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *MemoryStore[T]) load(key string) (T, Meta, bool, error) {
	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		var zero T
		return zero, Meta{}, false, nil
	}
	return layering.Clone(record.snapshot), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore[T]) save(key string, snapshot T, meta Meta) Meta {
	s.mu.Lock()
	s.records[key] = memoryRecord[T]{snapshot: layering.Clone(snapshot), meta: cloneMeta(meta)}
	s.mu.Unlock()
	return cloneMeta(meta)
}

func (s *MemoryStore[T]) remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[key]
	delete(s.records, key)
	return ok
}

// MemoryItemStore is an in-memory ItemStore.
type MemoryItemStore[T any] struct {
	inner *MemoryStore[T]
}

// NewMemoryItemStore returns an empty item store.
func NewMemoryItemStore[T any]() *MemoryItemStore[T] {
	return &MemoryItemStore[T]{inner: NewMemoryStore[T]()}
}

func (s *MemoryItemStore[T]) LoadItem(_ context.Context, ref ItemRef) (T, Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}
	return s.inner.load(key)
}

func (s *MemoryItemStore[T]) SaveItem(_ context.Context, ref ItemRef, snapshot T, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	return s.inner.save(key, snapshot, meta), nil
}

func (s *MemoryItemStore[T]) DeleteItem(_ context.Context, ref ItemRef) (bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return false, err
	}
	return s.inner.remove(key), nil
}

// Items lists the item IDs holding a record under key.
func (s *MemoryItemStore[T]) Items(_ context.Context, key string) ([]string, error) {
	suffix := "/" + key
	var ids []string
	for _, id := range s.inner.Keys() {
		if !strings.HasPrefix(id, "item/") || !strings.HasSuffix(id, suffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(id, "item/"), suffix))
	}
	return ids, nil
}
