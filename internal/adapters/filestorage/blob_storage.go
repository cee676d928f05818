package filestorage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vibtellect/immo-scraper/internal/core/port"
)

// FileBlobStorageAdapter реализует BlobStoragePort на локальной
// файловой системе: один ключ – один файл под корневым каталогом.
// Базовый backend для запуска без внешних зависимостей.
type FileBlobStorageAdapter struct {
	dir string
	mu  sync.Mutex
}

// NewFileBlobStorageAdapter создает адаптер и корневой каталог.
func NewFileBlobStorageAdapter(dir string) (*FileBlobStorageAdapter, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory '%s': %w", dir, err)
	}
	return &FileBlobStorageAdapter{dir: dir}, nil
}

// pathFor отображает ключ в путь; ключи вида "snapshots/x.json" дают
// подкаталоги. Выход из корневого каталога запрещен.
func (a *FileBlobStorageAdapter) pathFor(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key cannot be empty")
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("object key '%s' escapes the storage directory", key)
	}
	return filepath.Join(a.dir, cleaned), nil
}

// Get возвращает содержимое объекта.
func (a *FileBlobStorageAdapter) Get(_ context.Context, key string) ([]byte, error) {
	path, err := a.pathFor(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("key '%s': %w", key, port.ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, err)
	}
	return data, nil
}

// Put атомарно перезаписывает объект: запись во временный файл рядом и
// rename. Упавший посреди записи процесс не оставит усеченный объект.
func (a *FileBlobStorageAdapter) Put(_ context.Context, key string, data []byte) error {
	path, err := a.pathFor(key)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for object '%s': %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for object '%s': %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write object '%s': %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for object '%s': %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize object '%s': %w", key, err)
	}
	return nil
}

// List перечисляет объекты с данным префиксом ключа.
func (a *FileBlobStorageAdapter) List(_ context.Context, prefix string) ([]port.ObjectInfo, error) {
	var objects []port.ObjectInfo

	err := filepath.WalkDir(a.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(a.dir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, port.ObjectInfo{Key: key, LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects with prefix '%s': %w", prefix, err)
	}
	return objects, nil
}
