package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервера и клиента ленты.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	// TZ задаёт календарь устройства для дневных журналов; Local — зона процесса.
	TZ   string `envconfig:"TZ" default:"Local"`
	Port int    `envconfig:"PORT" default:"8000"`

	PGDSN       string   `envconfig:"PG_DSN"`
	RedisAddr   string   `envconfig:"REDIS_ADDR"`
	RabbitURL   string   `envconfig:"RABBITMQ_URL"`
	CORSOrigins []string `envconfig:"APP_CORS_ORIGINS"`
	MetricsAddr string   `envconfig:"METRICS_ADDR"`
	// RequestTimeout ограничивает обработку запроса API; WriteTimeout сервера больше на 5s.
	RequestTimeout time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"10s"`
	SeedDemo       bool          `envconfig:"SEED_DEMO" default:"false"`

	Client struct {
		APIBaseURL string        `envconfig:"API_BASE_URL" default:"http://localhost:8000"`
		Timeout    time.Duration `envconfig:"API_TIMEOUT" default:"0s"`
		PageSize   int           `envconfig:"FEED_PAGE_SIZE" default:"10"`
	} `envconfig:""`

	Storage struct {
		Backend   string `envconfig:"STORAGE_BACKEND" default:"file"`
		Path      string `envconfig:"STORAGE_PATH" default:".drinktea/storage.json"`
		Namespace string `envconfig:"STORAGE_NAMESPACE" default:"drinktea:"`
	} `envconfig:""`

	Feedback struct {
		WindowDays  int  `envconfig:"FEEDBACK_WINDOW_DAYS" default:"30"`
		Outbox      bool `envconfig:"FEEDBACK_OUTBOX" default:"false"`
		MaxAttempts int  `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"5"`
	} `envconfig:""`

	Queues struct {
		Exchange string `envconfig:"EVENTS_EXCHANGE" default:"drinktea.events"`
		Outbox   string `envconfig:"OUTBOX_KEY" default:"outbox"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения и .env, завершая процесс при ошибке.
func Load() AppConfig {
	_ = godotenv.Load()
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает конфиг из окружения и проверяет значения.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	switch cfg.Storage.Backend {
	case "file", "redis", "memory":
	default:
		return AppConfig{}, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == "redis" && cfg.RedisAddr == "" {
		return AppConfig{}, fmt.Errorf("STORAGE_BACKEND=redis requires REDIS_ADDR")
	}
	if cfg.Client.PageSize < 1 || cfg.Client.PageSize > 50 {
		return AppConfig{}, fmt.Errorf("FEED_PAGE_SIZE must be within 1..50, got %d", cfg.Client.PageSize)
	}
	if cfg.Feedback.WindowDays < 1 {
		return AppConfig{}, fmt.Errorf("FEEDBACK_WINDOW_DAYS must be positive, got %d", cfg.Feedback.WindowDays)
	}
	if _, err := cfg.Location(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Location возвращает часовой пояс календаря устройства.
func (c AppConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.TZ)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return loc, nil
}
