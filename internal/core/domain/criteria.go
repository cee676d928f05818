package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Criteria определяет параметры одного поиска. Каждая комбинация
// параметров владеет собственным снапшотом через FilterKey.
type Criteria struct {
	PropertyType PropertyType `json:"property_type"`
	PriceMax     int          `json:"price_max"`
	District     string       `json:"district,omitempty"`
	MaxPages     int          `json:"max_pages"`
}

var filterKeyUnsafe = regexp.MustCompile(`[^a-z0-9-]+`)

// FilterKey детерминированно выводит ключ раздела из активных параметров
// поиска. Два одновременно настроенных поиска никогда не пересекаются
// по хранилищу, потому что их ключи различаются.
func (c Criteria) FilterKey() string {
	parts := []string{
		fmt.Sprintf("pt-%s", sanitizeKeyPart(string(c.PropertyType))),
		fmt.Sprintf("pmax-%d", c.PriceMax),
	}
	if c.District != "" {
		parts = append(parts, fmt.Sprintf("d-%s", sanitizeKeyPart(c.District)))
	}
	return strings.Join(parts, "_")
}

func sanitizeKeyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = filterKeyUnsafe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
