package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vibtellect/immo-scraper/internal/core/domain"
	"github.com/vibtellect/immo-scraper/internal/core/port"
)

// RunPipelineUseCase – оркестратор: последовательно, по каждому типу
// недвижимости, выполняет обнаружение, загрузку деталей для новых ID,
// синхронизацию и доставку уведомлений, агрегируя статистику в итог
// прогона для внешнего планировщика.
type RunPipelineUseCase struct {
	fetcher  port.ListingFetcherPort
	sync     *SyncListingsUseCase
	notifier *NotifyUseCase
	events   port.ListingEventsPort // опционально
	lock     port.RunLockPort

	detailDelay time.Duration
}

// NewRunPipelineUseCase создает новый оркестратор.
func NewRunPipelineUseCase(
	fetcher port.ListingFetcherPort,
	sync *SyncListingsUseCase,
	notifier *NotifyUseCase,
	events port.ListingEventsPort,
	lock port.RunLockPort,
	detailDelay time.Duration,
) (*RunPipelineUseCase, error) {
	if fetcher == nil || sync == nil || notifier == nil || lock == nil {
		return nil, fmt.Errorf("pipeline use case: fetcher, sync, notifier and lock are required")
	}
	return &RunPipelineUseCase{
		fetcher:     fetcher,
		sync:        sync,
		notifier:    notifier,
		events:      events,
		lock:        lock,
		detailDelay: detailDelay,
	}, nil
}

// Execute выполняет один прогон пайплайна по всем критериям.
// Прогон внутри одного критерия последовательный – это осознанный размен
// пропускной способности на незаметность для антискрейпинговой защиты.
func (uc *RunPipelineUseCase) Execute(ctx context.Context, criteriaSet []domain.Criteria, force bool) *domain.RunSummary {
	summary := &domain.RunSummary{
		RunID:     uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Success:   true,
	}

	var runErrors []string
	for _, criteria := range criteriaSet {
		if ctx.Err() != nil {
			runErrors = append(runErrors, fmt.Sprintf("%s: run cancelled: %v", criteria.FilterKey(), ctx.Err()))
			break
		}

		result, err := uc.runOne(ctx, criteria, summary.RunID, force)
		if err != nil {
			log.Printf("Pipeline: run for filter '%s' failed: %v\n", criteria.FilterKey(), err)
			runErrors = append(runErrors, fmt.Sprintf("%s: %v", criteria.FilterKey(), err))
			// Фатальная ошибка фильтра всегда сообщается оператору.
			uc.notifier.NotifyFailure(ctx, summary.RunID, criteria.FilterKey(), err)
			continue
		}

		summary.TotalListings += len(result.CurrentListings)
		summary.NewCount += len(result.NewListings)
		summary.RemovedCount += len(result.RemovedListings)
	}

	if len(runErrors) > 0 {
		summary.Success = false
		summary.Error = strings.Join(runErrors, "; ")
	}
	return summary
}

// runOne обрабатывает один критерий (один FilterKey).
func (uc *RunPipelineUseCase) runOne(ctx context.Context, criteria domain.Criteria, runID string, force bool) (*domain.RunResult, error) {
	filterKey := criteria.FilterKey()
	log.Printf("Pipeline: starting run %s for filter '%s'\n", runID, filterKey)

	locked, err := uc.lock.TryLock(ctx, filterKey)
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to acquire run lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("pipeline: another run is already in flight for filter '%s'", filterKey)
	}
	defer func() {
		if err := uc.lock.Unlock(ctx, filterKey); err != nil {
			log.Printf("Pipeline: failed to release run lock for '%s': %v\n", filterKey, err)
		}
	}()

	// Предыдущий снапшот дает множество известных ID для раннего
	// пропуска: ни одного детального запроса для уже виденных объявлений.
	prior, _, err := uc.sync.LoadSnapshot(ctx, filterKey)
	if err != nil {
		return nil, err
	}
	knownIDs := prior.IDSet()

	discovery, err := uc.fetcher.DiscoverListings(ctx, criteria, knownIDs)
	if err != nil {
		return nil, fmt.Errorf("pipeline: discovery failed: %w", err)
	}
	log.Printf("Pipeline: filter '%s': %d ids on %d pages, %d new, %d skipped (%d detail requests saved)\n",
		filterKey, len(discovery.AllIDs), discovery.PagesCrawled, len(discovery.NewIDs),
		len(discovery.SkippedIDs), discovery.RequestsSaved)

	current, err := uc.assembleCurrent(ctx, criteria, discovery)
	if err != nil {
		// Отмена посреди сборки не должна перезаписать снапшот
		// частичными данными: прогон падает до сохранения.
		return nil, fmt.Errorf("pipeline: run aborted before persisting: %w", err)
	}

	result, err := uc.sync.Synchronize(ctx, filterKey, current, force)
	if err != nil {
		return nil, err
	}
	result.RunID = runID
	result.Criteria = criteria

	if delivered, err := uc.notifier.Notify(ctx, result, force); err != nil {
		log.Printf("Pipeline: notification delivery error for '%s': %v\n", filterKey, err)
	} else if delivered {
		log.Printf("Pipeline: notifications delivered for filter '%s'\n", filterKey)
	}

	uc.publishNewListings(ctx, result)

	return result, nil
}

// assembleCurrent собирает текущее множество объявлений: свежие детали
// для новых ID (последовательно, с паузой) и заглушки ID/URL для
// пропущенных – их записи движок синхронизации возьмет из снапшота.
func (uc *RunPipelineUseCase) assembleCurrent(ctx context.Context, criteria domain.Criteria, discovery *domain.DiscoveryResult) ([]domain.Listing, error) {
	current := make([]domain.Listing, 0, len(discovery.AllIDs))

	for _, id := range discovery.SkippedIDs {
		current = append(current, domain.Listing{
			ID:           id,
			URL:          discovery.IDToURL[id],
			PropertyType: criteria.PropertyType,
		})
	}

	for i, id := range discovery.NewIDs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("detail fetch cancelled after %d of %d new ids: %w", i, len(discovery.NewIDs), err)
		}
		if i > 0 {
			if err := sleepCtx(ctx, uc.detailDelay); err != nil {
				return nil, fmt.Errorf("detail fetch cancelled after %d of %d new ids: %w", i, len(discovery.NewIDs), err)
			}
		}

		listing := uc.fetcher.FetchListingDetails(ctx, discovery.IDToURL[id], criteria.PropertyType)
		if listing.ExtractionError != "" {
			log.Printf("Pipeline: detail extraction failed for id %s: %s\n", id, listing.ExtractionError)
		}
		current = append(current, listing)
	}
	return current, nil
}

func (uc *RunPipelineUseCase) publishNewListings(ctx context.Context, result *domain.RunResult) {
	if uc.events == nil || len(result.NewListings) == 0 {
		return
	}
	published := 0
	for _, listing := range result.NewListings {
		if err := uc.events.PublishNewListing(ctx, listing); err != nil {
			log.Printf("Pipeline: failed to publish new listing %s: %v\n", listing.ID, err)
			continue
		}
		published++
	}
	log.Printf("Pipeline: published %d/%d new listings to the event feed\n", published, len(result.NewListings))
}
