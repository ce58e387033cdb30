package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
)

// StorageDriver выбирает реализацию хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr string
	OpsAddr  string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// RedisAddr включает read-through кеш заказов; пустое значение — без кеша.
	RedisAddr string

	// KafkaBrokers — список брокеров через запятую; пустое значение отключает Kafka.
	KafkaBrokers string
	OutboxTopic  string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	// PaymentTTL — сколько платёж может оставаться в ready до автоотмены.
	PaymentTTL           time.Duration
	PaymentSweepInterval time.Duration
	ReconcileInterval    time.Duration
	ReconcileBatchSize   int

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	// CancelGrace — окно после подтверждения, в котором заказ ещё можно отменить.
	CancelGrace time.Duration

	// StockBaseURL и GatewayBaseURL включают реальные HTTP-клиенты вместо моков.
	StockBaseURL   string
	GatewayBaseURL string
	GatewayAPIKey  string
	ClientTimeout  time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию: in-memory хранилище,
// без Kafka и Redis, мок-клиенты склада и платёжного шлюза.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		OpsAddr:                     ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		OutboxTopic:                 kafka.TopicOrderEvents,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            200 * time.Millisecond,
		PaymentTTL:                  15 * time.Minute,
		PaymentSweepInterval:        time.Minute,
		ReconcileInterval:           5 * time.Minute,
		ReconcileBatchSize:          100,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
		CancelGrace:                 30 * time.Minute,
		ClientTimeout:               5 * time.Second,
	}
}

// LoadConfig читает конфигурацию из окружения. Локальный .env подхватывается
// через godotenv, его отсутствие не является ошибкой.
func LoadConfig(logger *log.Entry) Config {
	if logger == nil {
		logger = log.WithField("component", "config")
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).Warn("failed to load .env file")
	}

	cfg := DefaultConfig()

	cfg.HTTPAddr = getEnv("ORDERFLOW_HTTP_ADDR", cfg.HTTPAddr)
	cfg.OpsAddr = getEnv("ORDERFLOW_OPS_ADDR", cfg.OpsAddr)

	cfg.StorageDriver = getEnv("ORDERFLOW_STORAGE_DRIVER", cfg.StorageDriver)
	cfg.PostgresDSN = getEnv("ORDERFLOW_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = getBool(logger, "ORDERFLOW_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)

	cfg.RedisAddr = getEnv("ORDERFLOW_REDIS_ADDR", cfg.RedisAddr)

	cfg.KafkaBrokers = getEnv("ORDERFLOW_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.OutboxTopic = getEnv("ORDERFLOW_OUTBOX_TOPIC", cfg.OutboxTopic)

	cfg.OutboxPollInterval = getDuration(logger, "ORDERFLOW_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = getInt(logger, "ORDERFLOW_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = getInt(logger, "ORDERFLOW_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = getDuration(logger, "ORDERFLOW_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)

	cfg.PaymentTTL = getDuration(logger, "ORDERFLOW_PAYMENT_TTL", cfg.PaymentTTL)
	cfg.PaymentSweepInterval = getDuration(logger, "ORDERFLOW_PAYMENT_SWEEP_INTERVAL", cfg.PaymentSweepInterval)
	cfg.ReconcileInterval = getDuration(logger, "ORDERFLOW_RECONCILE_INTERVAL", cfg.ReconcileInterval)
	cfg.ReconcileBatchSize = getInt(logger, "ORDERFLOW_RECONCILE_BATCH_SIZE", cfg.ReconcileBatchSize)

	cfg.IdempotencyCleanupInterval = getDuration(logger, "ORDERFLOW_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = getInt(logger, "ORDERFLOW_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	cfg.CancelGrace = getDuration(logger, "ORDERFLOW_CANCEL_GRACE", cfg.CancelGrace)

	cfg.StockBaseURL = getEnv("ORDERFLOW_STOCK_BASE_URL", cfg.StockBaseURL)
	cfg.GatewayBaseURL = getEnv("ORDERFLOW_GATEWAY_BASE_URL", cfg.GatewayBaseURL)
	cfg.GatewayAPIKey = getEnv("ORDERFLOW_GATEWAY_API_KEY", cfg.GatewayAPIKey)
	cfg.ClientTimeout = getDuration(logger, "ORDERFLOW_CLIENT_TIMEOUT", cfg.ClientTimeout)

	return cfg
}

// KafkaBrokerList возвращает брокеры как срез, пустой срез если Kafka выключен.
func (c Config) KafkaBrokerList() []string {
	raw := strings.TrimSpace(c.KafkaBrokers)
	if raw == "" {
		return nil
	}

	var brokers []string
	for _, broker := range strings.Split(raw, ",") {
		broker = strings.TrimSpace(broker)
		if broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(logger *log.Entry, key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.WithField("key", key).WithError(err).Warn("invalid duration in env, using default")
		return fallback
	}
	return d
}

func getInt(logger *log.Entry, key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		logger.WithField("key", key).WithError(err).Warn("invalid integer in env, using default")
		return fallback
	}
	return n
}

func getBool(logger *log.Entry, key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	b, err := strconv.ParseBool(raw)
	if err != nil {
		logger.WithField("key", key).WithError(err).Warn("invalid boolean in env, using default")
		return fallback
	}
	return b
}
