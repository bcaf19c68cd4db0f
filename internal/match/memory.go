package match

import (
	"context"
	"sync"

	"rps_arena/internal/domain"
)

// MemoryBackend keeps matches in process memory. Used for tests and single-node setups.
type MemoryBackend struct {
	mu      sync.Mutex
	matches map[int64]*domain.Match
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{matches: make(map[int64]*domain.Match)}
}

func (b *MemoryBackend) Load(_ context.Context, id int64) (*domain.Match, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.matches[id]
	if !ok {
		return nil, false, nil
	}
	return m.Clone(), true, nil
}

func (b *MemoryBackend) Update(_ context.Context, id int64, fn UpdateFunc) (*domain.Match, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, exists := b.matches[id]
	working := &domain.Match{ID: id}
	if exists {
		working = current.Clone()
	}

	changed, err := fn(working, exists)
	if err != nil {
		return nil, err
	}
	if !changed {
		if exists {
			return current.Clone(), nil
		}
		return working, nil
	}
	b.matches[id] = working.Clone()
	return working, nil
}

// Len reports the number of stored matches.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.matches)
}
