package runlock

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRunLock реализует RunLockPort внутри процесса. Достаточен, пока
// все прогоны выполняет один процесс; при нескольких инстансах его
// место занимает advisory-блокировка PostgreSQL.
type MemoryRunLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryRunLock() *MemoryRunLock {
	return &MemoryRunLock{held: make(map[string]struct{})}
}

func (l *MemoryRunLock) TryLock(_ context.Context, filterKey string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[filterKey]; busy {
		return false, nil
	}
	l.held[filterKey] = struct{}{}
	return true, nil
}

func (l *MemoryRunLock) Unlock(_ context.Context, filterKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[filterKey]; !ok {
		return fmt.Errorf("run lock: no lock held for '%s'", filterKey)
	}
	delete(l.held, filterKey)
	return nil
}
