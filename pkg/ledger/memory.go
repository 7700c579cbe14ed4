package ledger

import (
	"context"
	"sync"
)

// MemoryStore keeps ledger state in process memory. It backs tests and
// dry-run commands that must not touch the real state directory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[key] = stored
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)

// MutexLocker is a process-local Locker for tests and embedded use where no
// other process shares the state.
type MutexLocker struct {
	mu sync.Mutex
}

func (l *MutexLocker) Acquire(ctx context.Context) error {
	l.mu.Lock()
	return nil
}

func (l *MutexLocker) Release() error {
	l.mu.Unlock()
	return nil
}

var _ Locker = (*MutexLocker)(nil)
