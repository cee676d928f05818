package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/vibtellect/immo-scraper/internal/core/domain"
	"github.com/vibtellect/immo-scraper/internal/core/port"
)

// SyncListingsUseCase – движок синхронизации: загружает предыдущий
// снапшот, классифицирует объявления по множествам идентификаторов
// (новое/без изменений/удалено) и сохраняет обновленный снапшот.
type SyncListingsUseCase struct {
	storage   port.BlobStoragePort
	keyPrefix string

	anomalyAbsThreshold   int
	anomalyRatioThreshold float64
}

// NewSyncListingsUseCase создает новый экземпляр движка синхронизации.
func NewSyncListingsUseCase(
	storage port.BlobStoragePort,
	keyPrefix string,
	anomalyAbsThreshold int,
	anomalyRatioThreshold float64,
) (*SyncListingsUseCase, error) {
	if storage == nil {
		return nil, fmt.Errorf("sync use case: storage cannot be nil")
	}
	return &SyncListingsUseCase{
		storage:               storage,
		keyPrefix:             keyPrefix,
		anomalyAbsThreshold:   anomalyAbsThreshold,
		anomalyRatioThreshold: anomalyRatioThreshold,
	}, nil
}

// SnapshotKey возвращает стабильный ключ объекта снапшота для FilterKey.
// Один ключ на FilterKey: снапшот перезаписывается, а не версионируется.
func (uc *SyncListingsUseCase) SnapshotKey(filterKey string) string {
	return uc.keyPrefix + filterKey + ".json"
}

// LoadSnapshot загружает предыдущий снапшот. found == false означает
// условие первого прогона: объекта по ключу нет вовсе.
func (uc *SyncListingsUseCase) LoadSnapshot(ctx context.Context, filterKey string) (*domain.Snapshot, bool, error) {
	key := uc.SnapshotKey(filterKey)

	data, err := uc.storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, port.ErrObjectNotFound) {
			log.Printf("SyncUseCase: no snapshot at key '%s', first run for filter '%s'\n", key, filterKey)
			return &domain.Snapshot{}, false, nil
		}
		return nil, false, fmt.Errorf("sync use case: failed to load snapshot '%s': %w", key, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("sync use case: failed to decode snapshot '%s': %w", key, err)
	}
	return &snap, true, nil
}

// SaveSnapshot сохраняет снапшот. Вызывается строго после полной сборки
// текущего множества объявлений: сбой до сохранения оставляет предыдущий
// снапшот нетронутым, и следующий прогон чисто повторяет попытку.
func (uc *SyncListingsUseCase) SaveSnapshot(ctx context.Context, filterKey string, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("sync use case: failed to encode snapshot for filter '%s': %w", filterKey, err)
	}
	if err := uc.storage.Put(ctx, uc.SnapshotKey(filterKey), data); err != nil {
		return fmt.Errorf("sync use case: failed to persist snapshot for filter '%s': %w", filterKey, err)
	}
	return nil
}

// Synchronize сравнивает текущие объявления с предыдущим снапшотом,
// классифицирует изменения и сохраняет обновленный снапшот.
//
// Нормализация идентификаторов применяется единообразно к обеим сторонам
// сравнения: расхождение здесь фабриковало бы фантомные "новые"
// объявления на каждом прогоне.
func (uc *SyncListingsUseCase) Synchronize(ctx context.Context, filterKey string, current []domain.Listing, force bool) (*domain.RunResult, error) {
	prior, found, err := uc.LoadSnapshot(ctx, filterKey)
	if err != nil {
		return nil, err
	}

	priorByID := prior.ByID()
	currentByID := indexListings(current)

	result := &domain.RunResult{
		FilterKey:  filterKey,
		IsFirstRun: !found,
	}

	if !found {
		// Первый прогон закладывает состояние молча: сохраняется все,
		// но NewListings пустой, если не запрошен force.
		all := sortedListings(currentByID)
		result.CurrentListings = all
		if force {
			result.NewListings = all
		}
		if err := uc.SaveSnapshot(ctx, filterKey, &domain.Snapshot{Timestamp: time.Now().UTC(), Listings: all}); err != nil {
			return nil, err
		}
		log.Printf("SyncUseCase: seeded snapshot for filter '%s' with %d listings (first run)\n", filterKey, len(all))
		return result, nil
	}

	for id, listing := range currentByID {
		if priorListing, known := priorByID[id]; known {
			// Запись без изменений берется из сохраненного снапшота,
			// а не перезагружается с сайта.
			result.CurrentListings = append(result.CurrentListings, priorListing)
			result.UnchangedCount++
			continue
		}
		result.NewListings = append(result.NewListings, listing)
	}
	for id, listing := range priorByID {
		if _, stillPresent := currentByID[id]; !stillPresent {
			result.RemovedListings = append(result.RemovedListings, listing)
		}
	}

	sortByID(result.NewListings)
	sortByID(result.RemovedListings)
	sortByID(result.CurrentListings)
	result.CurrentListings = append(result.CurrentListings, result.NewListings...)

	if uc.isAnomalous(len(result.NewListings), len(currentByID)) {
		result.AnomalyWarning = true
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"anomaly guard: %d new listings out of %d current (prior %d) - possible selector breakage",
			len(result.NewListings), len(currentByID), len(priorByID)))
		log.Printf("SyncUseCase: WARNING %s\n", result.Warnings[len(result.Warnings)-1])
	}

	if err := uc.SaveSnapshot(ctx, filterKey, &domain.Snapshot{Timestamp: time.Now().UTC(), Listings: result.CurrentListings}); err != nil {
		return nil, err
	}

	log.Printf("SyncUseCase: filter '%s' synchronized: %d current, %d new, %d removed, %d unchanged\n",
		filterKey, len(result.CurrentListings), len(result.NewListings), len(result.RemovedListings), result.UnchangedCount)
	return result, nil
}

func (uc *SyncListingsUseCase) isAnomalous(newCount, currentCount int) bool {
	if currentCount == 0 || newCount == 0 {
		return false
	}
	return newCount > uc.anomalyAbsThreshold &&
		float64(newCount) > uc.anomalyRatioThreshold*float64(currentCount)
}

// indexListings индексирует объявления по нормализованному ID,
// отбрасывая дубликаты (побеждает первая запись).
func indexListings(listings []domain.Listing) map[string]domain.Listing {
	index := make(map[string]domain.Listing, len(listings))
	for _, l := range listings {
		id := domain.NormalizeID(l.ID)
		if id == "" {
			id = domain.NormalizeID(l.URL)
		}
		if id == "" {
			log.Printf("SyncUseCase: dropping listing with no derivable id (url: %s)\n", l.URL)
			continue
		}
		if _, exists := index[id]; exists {
			continue
		}
		l.ID = id
		index[id] = l
	}
	return index
}

func sortedListings(index map[string]domain.Listing) []domain.Listing {
	out := make([]domain.Listing, 0, len(index))
	for _, l := range index {
		out = append(out, l)
	}
	sortByID(out)
	return out
}

func sortByID(listings []domain.Listing) {
	sort.Slice(listings, func(i, j int) bool {
		if len(listings[i].ID) != len(listings[j].ID) {
			return len(listings[i].ID) < len(listings[j].ID)
		}
		return listings[i].ID < listings[j].ID
	})
}
