package constants

import "github.com/vibtellect/immo-scraper/internal/core/domain"

// Сегменты пути поисковой выдачи по типам недвижимости.
const (
	PathSegmentApartment  = "apartments"
	PathSegmentHouse      = "houses"
	PathSegmentCommercial = "commercial"
)

// PathSegmentFor возвращает сегмент URL поисковой выдачи для типа
// недвижимости. Неизвестный тип используется как сегмент как есть.
func PathSegmentFor(pt domain.PropertyType) string {
	switch pt {
	case domain.PropertyTypeApartment:
		return PathSegmentApartment
	case domain.PropertyTypeHouse:
		return PathSegmentHouse
	case domain.PropertyTypeCommercial:
		return PathSegmentCommercial
	default:
		return string(pt)
	}
}
