package settlement

import (
	"context"
	"sync"
	"time"
)

// Locker hands out short-lived exclusive claims on a key.
type Locker interface {
	// Acquire returns ErrLockHeld if another owner holds key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

// MemoryLocker is a Locker for a single process.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryClaim
	seq   uint64
	nowFn func() time.Time
}

type memoryClaim struct {
	seq     uint64
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryClaim), nowFn: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if c, ok := l.held[key]; ok && now.Before(c.expires) {
		return nil, ErrLockHeld
	}
	l.seq++
	c := memoryClaim{seq: l.seq, expires: now.Add(ttl)}
	l.held[key] = c
	return &memoryLock{locker: l, key: key, seq: c.seq}, nil
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	seq    uint64
}

func (m *memoryLock) Release(context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	if c, ok := m.locker.held[m.key]; ok && c.seq == m.seq {
		delete(m.locker.held, m.key)
	}
	return nil
}
