package database

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a thread-safe in-process RecordStore.
// Documents are copied on the way in and out so callers never share state.
type MemoryStore struct {
	mu sync.RWMutex
	// Structure: [collection][key]document
	data map[string]map[string]Document
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]Document)}
}

// Get returns the document stored under key.
func (m *MemoryStore) Get(_ context.Context, collection, key string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.data[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(doc), nil
}

// List returns every document of the collection.
func (m *MemoryStore) List(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.data[collection]))
	for _, doc := range m.data[collection] {
		docs = append(docs, cloneDocument(doc))
	}
	return docs, nil
}

// Set creates or replaces the document stored under key.
func (m *MemoryStore) Set(_ context.Context, collection, key string, fields Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.collection(collection)[key] = stripInternal(cloneDocument(fields))
	return nil
}

// Update merges patch into the stored document.
func (m *MemoryStore) Update(_ context.Context, collection, key string, patch Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.data[collection][key]
	if !ok {
		return ErrNotFound
	}
	for k, v := range stripInternal(cloneDocument(patch)) {
		doc[k] = v
	}
	return nil
}

// Delete removes the document if present.
func (m *MemoryStore) Delete(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data[collection], key)
	return nil
}

// Add stores fields under a random key.
func (m *MemoryStore) Add(_ context.Context, collection string, fields Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := uuid.NewString()
	m.collection(collection)[key] = stripInternal(cloneDocument(fields))
	return key, nil
}

// Close is a no-op.
func (m *MemoryStore) Close(_ context.Context) error {
	return nil
}

// collection must be called with the write lock held.
func (m *MemoryStore) collection(name string) map[string]Document {
	col, ok := m.data[name]
	if !ok {
		col = make(map[string]Document)
		m.data[name] = col
	}
	return col
}
