package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.SlotStore = (*MemoryStore)(nil)

// A MemoryStore keeps slots in process memory. Saved carts live as long as
// the process does.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "MemoryStore.Get"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.slots[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %q", op, port.ErrSlotNotFound, key)
	}
	return slices.Clone(data), nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	const op = "MemoryStore.Put"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[key] = slices.Clone(data)
	return nil
}
