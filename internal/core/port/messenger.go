package port

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrThrottled – маркер троттлинга со стороны конечной точки сообщений.
// Проверяется через errors.Is, чтобы диспетчер мог применить backoff.
var ErrThrottled = errors.New("messenger: throttled")

// ThrottledError несет рекомендованную паузу перед повтором.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("messenger: throttled, retry after %s", e.RetryAfter)
}

func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}

// SendOptions – опции отправки текстового сообщения.
type SendOptions struct {
	ParseMode          string
	DisableLinkPreview bool
}

// MessengerPort – контракт конечной точки сообщений. Реализация обязана
// возвращать различимый результат "throttled" (ErrThrottled), чтобы
// диспетчер уведомлений мог применять экспоненциальный backoff.
type MessengerPort interface {
	SendText(ctx context.Context, text string, opts SendOptions) error
	SendPhoto(ctx context.Context, photoURL string, caption string) error
	SendPhotoGroup(ctx context.Context, photoURLs []string, caption string) error

	// MaxTextLength – жесткий лимит длины одного текстового сообщения;
	// тексты длиннее режутся диспетчером на части.
	MaxTextLength() int
}
