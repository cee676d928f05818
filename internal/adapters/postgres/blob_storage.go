package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vibtellect/immo-scraper/internal/core/port"
)

// PostgresBlobStorageAdapter реализует BlobStoragePort поверх одной
// key/value-таблицы. Снапшот целиком хранится в bytea-колонке: движку
// синхронизации нужна только атомарная перезапись по ключу, раскладка
// объявлений по строкам не дала бы ничего, кроме схемы.
type PostgresBlobStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresBlobStorageAdapter создает адаптер и гарантирует наличие
// таблицы.
func NewPostgresBlobStorageAdapter(ctx context.Context, pool *pgxpool.Pool) (*PostgresBlobStorageAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS blob_objects (
			key           TEXT PRIMARY KEY,
			data          BYTEA NOT NULL,
			last_modified TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure blob_objects table: %w", err)
	}
	return &PostgresBlobStorageAdapter{pool: pool}, nil
}

// Get возвращает объект по ключу.
func (a *PostgresBlobStorageAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := a.pool.QueryRow(ctx, `SELECT data FROM blob_objects WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("key '%s': %w", key, port.ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob '%s': %w", key, err)
	}
	return data, nil
}

// Put перезаписывает объект по ключу (UPSERT).
func (a *PostgresBlobStorageAdapter) Put(ctx context.Context, key string, data []byte) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO blob_objects (key, data, last_modified)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, last_modified = NOW()`,
		key, data)
	if err != nil {
		return fmt.Errorf("failed to write blob '%s': %w", key, err)
	}
	return nil
}

// List перечисляет объекты с данным префиксом ключа.
func (a *PostgresBlobStorageAdapter) List(ctx context.Context, prefix string) ([]port.ObjectInfo, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT key, last_modified FROM blob_objects WHERE key LIKE $1 || '%' ORDER BY key`,
		prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs with prefix '%s': %w", prefix, err)
	}
	defer rows.Close()

	var objects []port.ObjectInfo
	for rows.Next() {
		var info port.ObjectInfo
		if err := rows.Scan(&info.Key, &info.LastModified); err != nil {
			return nil, fmt.Errorf("failed to scan blob row: %w", err)
		}
		objects = append(objects, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blob rows: %w", err)
	}
	return objects, nil
}
