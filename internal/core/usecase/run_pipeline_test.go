package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vibtellect/immo-scraper/internal/core/domain"
	"github.com/vibtellect/immo-scraper/internal/core/port"
)

// fakeFetcher отдает заранее заданную выдачу и записывает, для каких URL
// запрашивались детали.
type fakeFetcher struct {
	allIDs      []string
	discoverErr error

	detailCalls []string
}

func (f *fakeFetcher) DiscoverListings(_ context.Context, _ domain.Criteria, knownIDs map[string]struct{}) (*domain.DiscoveryResult, error) {
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	result := &domain.DiscoveryResult{IDToURL: make(map[string]string), PagesCrawled: 1}
	for _, id := range f.allIDs {
		result.AllIDs = append(result.AllIDs, id)
		result.IDToURL[id] = "https://example.com/adv/" + id + "/"
		if _, known := knownIDs[id]; known {
			result.SkippedIDs = append(result.SkippedIDs, id)
			result.RequestsSaved++
			continue
		}
		result.NewIDs = append(result.NewIDs, id)
	}
	return result, nil
}

func (f *fakeFetcher) FetchListingDetails(_ context.Context, listingURL string, propertyType domain.PropertyType) domain.Listing {
	f.detailCalls = append(f.detailCalls, listingURL)
	return domain.Listing{
		ID:           domain.NormalizeID(listingURL),
		URL:          listingURL,
		PropertyType: propertyType,
		Title:        "fetched",
	}
}

// fakeLock – блокировка, которую можно заранее пометить занятой.
type fakeLock struct {
	busy     bool
	locked   []string
	released []string
}

func (l *fakeLock) TryLock(_ context.Context, filterKey string) (bool, error) {
	if l.busy {
		return false, nil
	}
	l.locked = append(l.locked, filterKey)
	return true, nil
}

func (l *fakeLock) Unlock(_ context.Context, filterKey string) error {
	l.released = append(l.released, filterKey)
	return nil
}

// fakeEvents записывает опубликованные объявления.
type fakeEvents struct {
	published []string
}

func (e *fakeEvents) PublishNewListing(_ context.Context, listing domain.Listing) error {
	e.published = append(e.published, listing.ID)
	return nil
}

func newPipelineForTest(t *testing.T, fetcher *fakeFetcher, storage *memoryBlobStorage, messenger *fakeMessenger, events *fakeEvents, lock *fakeLock) (*RunPipelineUseCase, *SyncListingsUseCase) {
	t.Helper()

	syncUC := newSyncForTest(t, storage)
	notifyUC := NewNotifyUseCase(messenger, testNotifyOptions())

	// Типизированный nil нельзя отдавать в интерфейсный параметр:
	// проверка events == nil в пайплайне перестала бы срабатывать.
	var eventsPort port.ListingEventsPort
	if events != nil {
		eventsPort = events
	}

	pipeline, err := NewRunPipelineUseCase(fetcher, syncUC, notifyUC, eventsPort, lock, 0)
	if err != nil {
		t.Fatalf("NewRunPipelineUseCase: %v", err)
	}
	return pipeline, syncUC
}

func testCriteria() domain.Criteria {
	return domain.Criteria{PropertyType: domain.PropertyTypeApartment, PriceMax: 1500, MaxPages: 3}
}

func TestPipelineFetchesDetailsOnlyForNewIDs(t *testing.T) {
	storage := newMemoryBlobStorage()
	fetcher := &fakeFetcher{allIDs: []string{"1", "2", "3"}}
	messenger := newFakeMessenger()
	lock := &fakeLock{}
	pipeline, syncUC := newPipelineForTest(t, fetcher, storage, messenger, nil, lock)
	ctx := context.Background()

	// Снапшот уже знает объявления 1 и 2.
	if _, err := syncUC.Synchronize(ctx, testCriteria().FilterKey(), listingsWithIDs("1", "2"), false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	summary := pipeline.Execute(ctx, []domain.Criteria{testCriteria()}, false)
	if !summary.Success {
		t.Fatalf("run failed: %s", summary.Error)
	}

	// Ранний пропуск: детали запрошены только для нового объявления.
	if len(fetcher.detailCalls) != 1 || !strings.Contains(fetcher.detailCalls[0], "/adv/3/") {
		t.Errorf("detail calls = %v, want exactly one for id 3", fetcher.detailCalls)
	}
	if summary.NewCount != 1 || summary.TotalListings != 3 {
		t.Errorf("summary: new=%d total=%d, want 1/3", summary.NewCount, summary.TotalListings)
	}

	// Блокировка захвачена и освобождена.
	if len(lock.locked) != 1 || len(lock.released) != 1 {
		t.Errorf("lock usage: locked=%v released=%v", lock.locked, lock.released)
	}
}

func TestPipelineFirstRunSeedsWithoutNotifying(t *testing.T) {
	storage := newMemoryBlobStorage()
	fetcher := &fakeFetcher{allIDs: []string{"1", "2"}}
	messenger := newFakeMessenger()
	pipeline, syncUC := newPipelineForTest(t, fetcher, storage, messenger, nil, &fakeLock{})
	ctx := context.Background()

	summary := pipeline.Execute(ctx, []domain.Criteria{testCriteria()}, false)
	if !summary.Success {
		t.Fatalf("run failed: %s", summary.Error)
	}
	if len(messenger.texts) != 0 {
		t.Errorf("first run sent %d messages, want silent seeding", len(messenger.texts))
	}

	snap, found, err := syncUC.LoadSnapshot(ctx, testCriteria().FilterKey())
	if err != nil || !found {
		t.Fatalf("LoadSnapshot: found=%v err=%v", found, err)
	}
	if len(snap.Listings) != 2 {
		t.Errorf("seeded snapshot holds %d listings, want 2", len(snap.Listings))
	}
}

func TestPipelineLockContention(t *testing.T) {
	fetcher := &fakeFetcher{allIDs: []string{"1"}}
	pipeline, _ := newPipelineForTest(t, fetcher, newMemoryBlobStorage(), newFakeMessenger(), nil, &fakeLock{busy: true})

	summary := pipeline.Execute(context.Background(), []domain.Criteria{testCriteria()}, false)
	if summary.Success {
		t.Fatal("run succeeded despite a held lock")
	}
	if !strings.Contains(summary.Error, "already in flight") {
		t.Errorf("summary error = %q, want lock contention", summary.Error)
	}
	if len(fetcher.detailCalls) != 0 {
		t.Errorf("locked run still fetched details: %v", fetcher.detailCalls)
	}
}

func TestPipelineDiscoveryFailureNotifiesOperator(t *testing.T) {
	fetcher := &fakeFetcher{discoverErr: errors.New("selectors broken")}
	messenger := newFakeMessenger()
	pipeline, _ := newPipelineForTest(t, fetcher, newMemoryBlobStorage(), messenger, nil, &fakeLock{})

	summary := pipeline.Execute(context.Background(), []domain.Criteria{testCriteria()}, false)
	if summary.Success {
		t.Fatal("run succeeded despite discovery failure")
	}
	if len(messenger.texts) != 1 || !strings.Contains(messenger.texts[0], "failed") {
		t.Errorf("operator failure message missing: %v", messenger.texts)
	}
}

func TestPipelinePublishesNewListingEvents(t *testing.T) {
	storage := newMemoryBlobStorage()
	fetcher := &fakeFetcher{allIDs: []string{"1", "2"}}
	events := &fakeEvents{}
	pipeline, syncUC := newPipelineForTest(t, fetcher, storage, newFakeMessenger(), events, &fakeLock{})
	ctx := context.Background()

	if _, err := syncUC.Synchronize(ctx, testCriteria().FilterKey(), listingsWithIDs("1"), false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	summary := pipeline.Execute(ctx, []domain.Criteria{testCriteria()}, false)
	if !summary.Success {
		t.Fatalf("run failed: %s", summary.Error)
	}
	if len(events.published) != 1 || events.published[0] != "2" {
		t.Errorf("published events = %v, want [2]", events.published)
	}
}

func TestPipelineCancelledRunDoesNotTouchSnapshot(t *testing.T) {
	storage := newMemoryBlobStorage()
	fetcher := &fakeFetcher{allIDs: []string{"1", "2", "3"}}
	pipeline, syncUC := newPipelineForTest(t, fetcher, storage, newFakeMessenger(), nil, &fakeLock{})

	if _, err := syncUC.Synchronize(context.Background(), testCriteria().FilterKey(), listingsWithIDs("1"), false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	summary := pipeline.Execute(cancelled, []domain.Criteria{testCriteria()}, false)
	if summary.Success {
		t.Fatal("cancelled run reported success")
	}

	// Снапшот остался в состоянии до прогона.
	snap, _, err := syncUC.LoadSnapshot(context.Background(), testCriteria().FilterKey())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	assertIDs(t, "snapshot after cancelled run", snap.Listings, "1")
}
