package statekit

import (
	"context"
	"strings"
	"sync"
)

// MemoryKeyValueStore is an in-memory KeyValueStore intended for tests and dev.
type MemoryKeyValueStore struct {
	mutex  sync.Mutex
	values map[string]string
}

// NewMemoryKeyValueStore creates an empty in-memory store.
func NewMemoryKeyValueStore() *MemoryKeyValueStore {
	return &MemoryKeyValueStore{values: make(map[string]string)}
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (store *MemoryKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyKey
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	value, ok := store.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

// Set stores value under key.
func (store *MemoryKeyValueStore) Set(ctx context.Context, key string, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.values[key] = value
	return nil
}

// Remove deletes the value stored under key.
func (store *MemoryKeyValueStore) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.values, key)
	return nil
}

// Keys returns a snapshot of the currently stored keys.
func (store *MemoryKeyValueStore) Keys() []string {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	keys := make([]string, 0, len(store.values))
	for key := range store.values {
		keys = append(keys, key)
	}
	return keys
}
