package port

import "context"

// RunLockPort гарантирует не более одного прогона на FilterKey.
// Диапазон load→mutate→save движка синхронизации не транзакционен,
// поэтому параллельные прогоны для одного ключа недопустимы.
type RunLockPort interface {
	// TryLock пытается захватить блокировку; false означает, что прогон
	// для этого ключа уже идет.
	TryLock(ctx context.Context, filterKey string) (bool, error)
	Unlock(ctx context.Context, filterKey string) error
}
