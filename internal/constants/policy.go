package constants

import "time"

// Пороговые значения политики. Это настраиваемые константы политики,
// а не зашитое поведение: значения по умолчанию переопределяются через
// переменные окружения (см. internal/configs).
const (
	// Сторожок аномалий: прогон помечается предупреждением, когда число
	// "новых" объявлений превышает И абсолютный порог, И долю от
	// текущего множества. Такой всплеск обычно означает поломку
	// селекторов, а не реальный оборот объявлений.
	DefaultAnomalyAbsThreshold   = 50
	DefaultAnomalyRatioThreshold = 0.25

	// Максимум новых объявлений, о которых отправляются отдельные
	// сообщения; сверх лимита уходит одно сообщение "слишком много".
	DefaultNotifyNewLimit = 20

	// Максимум удаленных объявлений в детальной сводке; сверх лимита
	// отправляется только количество.
	DefaultRemovedDetailLimit = 10
)

// Жесткие границы, не являющиеся политикой.
const (
	// Потолок числа изображений на объявление – ограничивает размер
	// исходящих сообщений.
	MaxImagesPerListing = 5

	DefaultMaxPages = 10

	// Таймауты исходящих HTTP-вызовов.
	PageRequestTimeout   = 10 * time.Second
	DetailRequestTimeout = 15 * time.Second

	// Пауза между последовательными детальными запросами.
	DetailFetchDelay = 2 * time.Second
)

// Дисциплина отправки уведомлений.
const (
	// Минимальная пауза между исходящими сообщениями; растет с номером
	// сообщения внутри серии, приближая скользящее окно лимита
	// конечной точки без сигнала обратной связи.
	NotifyBaseDelay = 1 * time.Second
	NotifyDelayStep = 500 * time.Millisecond
	NotifyMaxDelay  = 3500 * time.Millisecond

	// Повторы при троттлинге.
	NotifyRetryLimit   = 3
	NotifyBackoffStart = 1 * time.Second
)
