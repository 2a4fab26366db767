package store

import (
	"context"
	"slices"
	"sync"
)

// InMemoryRepository is a process-local repository for dev and tests.
type InMemoryRepository struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{snapshots: make(map[string][]byte)}
}

func (r *InMemoryRepository) Load(_ context.Context, namespace string) ([]byte, bool, error) {
	if namespace == "" {
		return nil, false, ErrEmptyNamespace
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.snapshots[namespace]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(data), true, nil
}

func (r *InMemoryRepository) Save(_ context.Context, namespace string, snapshot []byte) error {
	if namespace == "" {
		return ErrEmptyNamespace
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[namespace] = slices.Clone(snapshot)
	return nil
}

func (r *InMemoryRepository) Close() error { return nil }
