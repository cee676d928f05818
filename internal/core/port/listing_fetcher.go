package port

import (
	"context"

	"github.com/vibtellect/immo-scraper/internal/core/domain"
)

// ListingFetcherPort объединяет все операции чтения с сайта объявлений.
type ListingFetcherPort interface {
	// DiscoverListings выполняет постраничное обнаружение ID объявлений
	// по заданным критериям. ID, уже присутствующие в knownIDs,
	// записываются в SkippedIDs – детальный запрос для них не выдается
	// (ранний пропуск). Частичный результат валиден: ошибка на странице
	// N > 1 завершает пагинацию, сохранив собранное; ошибка на первой
	// странице фатальна для вызова.
	DiscoverListings(ctx context.Context, criteria domain.Criteria, knownIDs map[string]struct{}) (*domain.DiscoveryResult, error)

	// FetchListingDetails извлекает полную запись объявления по URL.
	// Никогда не возвращает ошибку: при любом сбое возвращается Listing
	// с заполненными только ID, URL и ExtractionError.
	FetchListingDetails(ctx context.Context, listingURL string, propertyType domain.PropertyType) domain.Listing
}
