package port

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound возвращается Get, когда по ключу нет объекта.
// Отсутствие объекта снапшота (а не пустой список объявлений внутри
// него) – это условие первого прогона.
var ErrObjectNotFound = errors.New("blob storage: object not found")

// ObjectInfo описывает один объект при листинге по префиксу.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

// BlobStoragePort – контракт адресуемого key/value-хранилища объектов.
// Движок синхронизации использует ровно один ключ на FilterKey и не
// полагается ни на что сверх этих трех операций.
type BlobStoragePort interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
