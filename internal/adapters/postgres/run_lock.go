package postgres

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryRunLockAdapter реализует RunLockPort на session-level advisory
// блокировках PostgreSQL. Блокировка жива, пока живо удерживающее ее
// соединение: упавший процесс освобождает ее автоматически, таблица
// блокировок и ее чистка не нужны.
type AdvisoryRunLockAdapter struct {
	pool *pgxpool.Pool

	mu   sync.Mutex
	held map[string]*pgxpool.Conn // filterKey -> выделенное соединение
}

// NewAdvisoryRunLockAdapter создает адаптер блокировок.
func NewAdvisoryRunLockAdapter(pool *pgxpool.Pool) (*AdvisoryRunLockAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &AdvisoryRunLockAdapter{
		pool: pool,
		held: make(map[string]*pgxpool.Conn),
	}, nil
}

// lockID сводит FilterKey к 64-битному ключу advisory-блокировки.
func lockID(filterKey string) int64 {
	h := fnv.New64a()
	h.Write([]byte(filterKey))
	return int64(h.Sum64())
}

// TryLock пытается захватить advisory-блокировку для ключа.
// Соединение закрепляется за блокировкой до Unlock: session-level
// блокировка привязана к конкретной сессии, возврат соединения в пул
// отдал бы ее кому-то другому.
func (a *AdvisoryRunLockAdapter) TryLock(ctx context.Context, filterKey string) (bool, error) {
	a.mu.Lock()
	if _, dup := a.held[filterKey]; dup {
		a.mu.Unlock()
		return false, nil
	}
	a.mu.Unlock()

	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("run lock: failed to acquire connection: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, lockID(filterKey)).Scan(&locked); err != nil {
		conn.Release()
		return false, fmt.Errorf("run lock: pg_try_advisory_lock failed for '%s': %w", filterKey, err)
	}
	if !locked {
		conn.Release()
		return false, nil
	}

	a.mu.Lock()
	a.held[filterKey] = conn
	a.mu.Unlock()
	return true, nil
}

// Unlock освобождает блокировку и возвращает соединение в пул.
func (a *AdvisoryRunLockAdapter) Unlock(ctx context.Context, filterKey string) error {
	a.mu.Lock()
	conn, ok := a.held[filterKey]
	delete(a.held, filterKey)
	a.mu.Unlock()

	if !ok {
		return fmt.Errorf("run lock: no lock held for '%s'", filterKey)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, lockID(filterKey)); err != nil {
		return fmt.Errorf("run lock: pg_advisory_unlock failed for '%s': %w", filterKey, err)
	}
	return nil
}
