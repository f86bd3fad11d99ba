package credstore

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Backend.Load when a slot is empty.
var ErrNotFound = errors.New("credstore: slot not found")

// Backend is durable storage of named string slots.
type Backend interface {
	Load(ctx context.Context, slot string) (string, error)
	Save(ctx context.Context, slot, value string) error
	Delete(ctx context.Context, slot string) error
	Close() error
}

// MemoryBackend keeps slots in process memory.
type MemoryBackend struct {
	mu    sync.Mutex
	slots map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: make(map[string]string)}
}

func (m *MemoryBackend) Load(_ context.Context, slot string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.slots[slot]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryBackend) Save(_ context.Context, slot, value string) error {
	m.mu.Lock()
	m.slots[slot] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, slot string) error {
	m.mu.Lock()
	delete(m.slots, slot)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
