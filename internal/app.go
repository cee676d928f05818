package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vibtellect/immo-scraper/internal/adapters/filestorage"
	"github.com/vibtellect/immo-scraper/internal/adapters/postgres"
	"github.com/vibtellect/immo-scraper/internal/adapters/rabbitmq"
	"github.com/vibtellect/immo-scraper/internal/adapters/runlock"
	"github.com/vibtellect/immo-scraper/internal/adapters/sitefetcher"
	"github.com/vibtellect/immo-scraper/internal/adapters/telegram"
	"github.com/vibtellect/immo-scraper/internal/configs"
	"github.com/vibtellect/immo-scraper/internal/constants"
	"github.com/vibtellect/immo-scraper/internal/core/domain"
	"github.com/vibtellect/immo-scraper/internal/core/port"
	"github.com/vibtellect/immo-scraper/internal/core/usecase"
	pgclient "github.com/vibtellect/immo-scraper/pkg/postgres"
	"github.com/vibtellect/immo-scraper/pkg/rabbitmq/rabbitmq_common"
	"github.com/vibtellect/immo-scraper/pkg/rabbitmq/rabbitmq_producer"
)

// App собирает зависимости приложения и управляет их жизненным циклом.
type App struct {
	cfg      *configs.AppConfig
	pipeline *usecase.RunPipelineUseCase

	pgPool   *pgxpool.Pool
	producer *rabbitmq_producer.Publisher
}

// NewApp создает и связывает все компоненты приложения.
func NewApp() (*App, error) {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	app := &App{cfg: cfg}
	ctx := context.Background()

	// Хранилище снапшотов: PostgreSQL при наличии DATABASE_URL, иначе
	// локальные файлы. От backend'а зависит и реализация блокировки
	// прогона: advisory-блокировки покрывают несколько инстансов.
	var storage port.BlobStoragePort
	var lock port.RunLockPort
	if cfg.Database.URL != "" {
		pool, err := pgclient.NewClient(ctx, pgclient.Config{DatabaseURL: cfg.Database.URL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		app.pgPool = pool

		storage, err = postgres.NewPostgresBlobStorageAdapter(ctx, pool)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to init PostgreSQL blob storage: %w", err)
		}
		lock, err = postgres.NewAdvisoryRunLockAdapter(pool)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to init advisory run lock: %w", err)
		}
		log.Println("App: Using PostgreSQL snapshot storage with advisory run locks")
	} else {
		storage, err = filestorage.NewFileBlobStorageAdapter(cfg.Snapshot.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to init file blob storage: %w", err)
		}
		lock = runlock.NewMemoryRunLock()
		log.Printf("App: Using file snapshot storage in '%s'\n", cfg.Snapshot.Dir)
	}

	// Мессенджер: симулятор при DRY_RUN, Telegram при заданных учетных
	// данных, иначе nil – уведомления пропускаются.
	var messenger port.MessengerPort
	switch {
	case cfg.DryRun:
		messenger = telegram.NewSimulatorAdapter()
		log.Println("App: DRY_RUN is set, notifications go to the log")
	case cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "":
		messenger, err = telegram.NewTelegramAdapter(cfg.Telegram.BotToken, cfg.Telegram.ChatID, "", 0)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to init Telegram adapter: %w", err)
		}
	default:
		log.Println("App: Telegram is not configured, notifications disabled")
	}

	// Лента событий о новых объявлениях (опционально).
	var events port.ListingEventsPort
	if cfg.RabbitMQ.URL != "" {
		producer, err := rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
			Config:                   rabbitmq_common.Config{URL: cfg.RabbitMQ.URL},
			ExchangeName:             constants.ExchangeListings,
			ExchangeType:             "topic",
			DurableExchange:          true,
			DeclareExchangeIfMissing: true,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to init RabbitMQ producer: %w", err)
		}
		app.producer = producer

		events, err = rabbitmq.NewRabbitMQListingEventsAdapter(producer, constants.RoutingKeyNewListings)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to init listing events adapter: %w", err)
		}
		log.Println("App: New listing events will be published to RabbitMQ")
	}

	fetcher, err := sitefetcher.NewSiteFetcherAdapter(
		cfg.Search.BaseURL, constants.PageRequestTimeout, constants.DetailRequestTimeout, constants.DetailFetchDelay)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to init site fetcher: %w", err)
	}

	syncUC, err := usecase.NewSyncListingsUseCase(
		storage, cfg.Snapshot.KeyPrefix,
		cfg.Policy.AnomalyAbsThreshold, cfg.Policy.AnomalyRatioThreshold)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to init sync use case: %w", err)
	}

	notifyUC := usecase.NewNotifyUseCase(messenger, usecase.NotifyOptions{
		NewLimit:           cfg.Policy.NotifyNewLimit,
		RemovedDetailLimit: cfg.Policy.RemovedDetailLimit,
		BaseDelay:          constants.NotifyBaseDelay,
		DelayStep:          constants.NotifyDelayStep,
		MaxDelay:           constants.NotifyMaxDelay,
	})

	pipeline, err := usecase.NewRunPipelineUseCase(
		fetcher, syncUC, notifyUC, events, lock, constants.DetailFetchDelay)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to init pipeline: %w", err)
	}
	app.pipeline = pipeline

	return app, nil
}

// Run выполняет один прогон пайплайна по всем сконфигурированным типам
// недвижимости и печатает итог в stdout как JSON для планировщика.
func (a *App) Run() error {
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	criteriaSet := make([]domain.Criteria, 0, len(a.cfg.Search.PropertyTypes))
	for _, pt := range a.cfg.Search.PropertyTypes {
		criteriaSet = append(criteriaSet, domain.Criteria{
			PropertyType: pt,
			PriceMax:     a.cfg.Search.PriceMax,
			District:     a.cfg.Search.District,
			MaxPages:     a.cfg.Search.MaxPages,
		})
	}

	summary := a.pipeline.Execute(ctx, criteriaSet, a.cfg.ForceNotify)

	encoded, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(encoded))

	if !summary.Success {
		return fmt.Errorf("run %s finished with errors: %s", summary.RunID, summary.Error)
	}
	log.Printf("App: run %s finished: %d listings, %d new, %d removed\n",
		summary.RunID, summary.TotalListings, summary.NewCount, summary.RemovedCount)
	return nil
}

// Close освобождает внешние ресурсы; безопасен при частичной инициализации.
func (a *App) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			log.Printf("App: error closing RabbitMQ producer: %v\n", err)
		}
		a.producer = nil
	}
	if a.pgPool != nil {
		a.pgPool.Close()
		a.pgPool = nil
	}
}
