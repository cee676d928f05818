package port

import (
	"context"

	"github.com/vibtellect/immo-scraper/internal/core/domain"
)

// ListingEventsPort публикует новые объявления для внешних потребителей.
// Сбой публикации логируется и никогда не проваливает прогон – та же
// политика, что и для уведомлений.
type ListingEventsPort interface {
	PublishNewListing(ctx context.Context, listing domain.Listing) error
}
