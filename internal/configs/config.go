package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/vibtellect/immo-scraper/internal/constants"
	"github.com/vibtellect/immo-scraper/internal/core/domain"
)

// DBConfig хранит конфигурацию для БД (опционально: без DATABASE_URL
// снапшоты хранятся в файловом хранилище).
type DBConfig struct {
	URL string
}

// RabbitMQConfig хранит конфигурацию для RabbitMQ (опционально).
type RabbitMQConfig struct {
	URL string
}

// TelegramConfig хранит учетные данные конечной точки сообщений.
// Пустой токен или chat id означает "не сконфигурировано" – уведомления
// пропускаются, прогон при этом валиден.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// SearchConfig – активные параметры поиска.
type SearchConfig struct {
	BaseURL       string
	PropertyTypes []domain.PropertyType
	PriceMax      int
	District      string
	MaxPages      int
}

// SnapshotConfig – где лежат снапшоты.
type SnapshotConfig struct {
	Dir       string // каталог файлового хранилища
	KeyPrefix string
}

// PolicyConfig – переопределяемые константы политики.
type PolicyConfig struct {
	AnomalyAbsThreshold   int
	AnomalyRatioThreshold float64
	NotifyNewLimit        int
	RemovedDetailLimit    int
}

// AppConfig хранит всю конфигурацию приложения.
type AppConfig struct {
	Database DBConfig
	RabbitMQ RabbitMQConfig
	Telegram TelegramConfig
	Search   SearchConfig
	Snapshot SnapshotConfig
	Policy   PolicyConfig

	ForceNotify bool
	DryRun      bool
}

// LoadConfig загружает конфигурацию из переменных окружения.
// .env подхватывается, если присутствует; его отсутствие не ошибка –
// в продакшене окружение задается платформой напрямую.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Printf("Config: no .env file loaded (%v), relying on process environment\n", err)
	}

	cfg := &AppConfig{}

	cfg.Search.BaseURL = strings.TrimRight(os.Getenv("SEARCH_BASE_URL"), "/")
	if cfg.Search.BaseURL == "" {
		return nil, fmt.Errorf("SEARCH_BASE_URL environment variable is required")
	}

	for _, raw := range strings.Split(getEnvAsString("PROPERTY_TYPES", "apartment"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		cfg.Search.PropertyTypes = append(cfg.Search.PropertyTypes, domain.PropertyType(raw))
	}
	if len(cfg.Search.PropertyTypes) == 0 {
		return nil, fmt.Errorf("PROPERTY_TYPES must name at least one property type")
	}

	cfg.Search.PriceMax = getEnvAsInt("PRICE_MAX", 0)
	if cfg.Search.PriceMax <= 0 {
		return nil, fmt.Errorf("PRICE_MAX environment variable is required and must be positive")
	}
	cfg.Search.District = getEnvAsString("DISTRICT", "")
	cfg.Search.MaxPages = getEnvAsInt("MAX_PAGES", constants.DefaultMaxPages)

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")

	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")

	cfg.Snapshot.Dir = getEnvAsString("SNAPSHOT_DIR", "data")
	cfg.Snapshot.KeyPrefix = getEnvAsString("SNAPSHOT_KEY_PREFIX", "snapshots/")

	cfg.Policy.AnomalyAbsThreshold = getEnvAsInt("ANOMALY_ABS_THRESHOLD", constants.DefaultAnomalyAbsThreshold)
	cfg.Policy.AnomalyRatioThreshold = getEnvAsFloat("ANOMALY_RATIO_THRESHOLD", constants.DefaultAnomalyRatioThreshold)
	cfg.Policy.NotifyNewLimit = getEnvAsInt("NOTIFY_NEW_LIMIT", constants.DefaultNotifyNewLimit)
	cfg.Policy.RemovedDetailLimit = getEnvAsInt("REMOVED_DETAIL_LIMIT", constants.DefaultRemovedDetailLimit)

	cfg.ForceNotify = getEnvAsBool("FORCE_NOTIFY", false)
	cfg.DryRun = getEnvAsBool("DRY_RUN", false)

	return cfg, nil
}

// getEnvAsString читает переменную окружения как строку или возвращает значение по умолчанию
func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt читает переменную окружения как int или возвращает значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}

	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

// getEnvAsFloat читает переменную окружения как float64 или возвращает значение по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}

	valueFloat, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as float: %v. Using default value: %g\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueFloat
}

// getEnvAsBool читает переменную окружения как bool или возвращает значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}
