package domain

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// PropertyType определяет тип недвижимости
type PropertyType string

const (
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypeCommercial PropertyType = "commercial"
)

// Price – цена объявления. Amount == nil означает "цена по запросу":
// это валидное состояние, а не ошибка парсинга, исходный текст
// сохраняется в RawText.
type Price struct {
	Amount   *float64 `json:"amount"`
	Currency string   `json:"currency,omitempty"`
	RawText  string   `json:"raw_text,omitempty"`
}

// Listing – одно обнаруженное объявление о недвижимости.
// Запись иммутабельна после создания: изменившееся объявление
// представляется как пара "удалено + новое", а не как обновление.
type Listing struct {
	ID           string            `json:"id"`
	URL          string            `json:"url"`
	PropertyType PropertyType      `json:"property_type"`
	Title        string            `json:"title,omitempty"`
	Price        *Price            `json:"price,omitempty"`
	Location     string            `json:"location,omitempty"`
	Description  string            `json:"description,omitempty"`
	Images       []string          `json:"images,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	ScrapedAt    time.Time         `json:"scraped_at"`

	// ExtractionError заполняется, если парсинг деталей не удался.
	// Объявление при этом сохраняется (ID и URL известны), чтобы оно
	// не потерялось из снапшота.
	ExtractionError string `json:"extraction_error,omitempty"`
}

var idDigitsPattern = regexp.MustCompile(`\d+`)

// NormalizeID приводит идентификатор объявления к каноническому виду:
// только цифры, без ведущих нулей. Принимает как "сырой" ID, так и URL
// объявления – ID детерминированно выводится из последнего сегмента пути,
// содержащего цифры. Два объявления с одинаковым нормализованным ID
// считаются одним и тем же, независимо от слага или завершающего слеша.
//
// Эта функция – единственная точка нормализации идентификаторов.
func NormalizeID(rawURLOrID string) string {
	s := rawURLOrID
	if strings.Contains(s, "/") {
		if u, err := url.Parse(s); err == nil && u.Path != "" {
			s = u.Path
		}
	}

	segments := strings.Split(strings.Trim(s, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		match := idDigitsPattern.FindString(segments[i])
		if match == "" {
			continue
		}
		normalized := strings.TrimLeft(match, "0")
		if normalized == "" {
			return "0"
		}
		return normalized
	}
	return ""
}
