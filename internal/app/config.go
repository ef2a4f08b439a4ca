package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ledger/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ledger/internal/service/summary"
)

// envPrefix префикс переменных окружения: LEDGER_HTTP_ADDR и т.д.
const envPrefix = "LEDGER"

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса леджера.
type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR"`
	GRPCAddr    string `envconfig:"GRPC_ADDR"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	StorageDriver       string `envconfig:"STORAGE_DRIVER"`
	PostgresDSN         string `envconfig:"POSTGRES_DSN"`
	PostgresAutoMigrate bool   `envconfig:"POSTGRES_AUTO_MIGRATE"`

	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic    string   `envconfig:"KAFKA_TOPIC"`
	KafkaDLQTopic string   `envconfig:"KAFKA_DLQ_TOPIC"`

	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE"`
	OutboxMaxAttempts  int           `envconfig:"OUTBOX_MAX_ATTEMPTS"`
	OutboxRetryDelay   time.Duration `envconfig:"OUTBOX_RETRY_DELAY"`
	// OutboxStaleAfter возраст старейшего pending-события, после которого /healthz отдаёт degraded.
	OutboxStaleAfter time.Duration `envconfig:"OUTBOX_STALE_AFTER"`

	SummaryMaxLimit int    `envconfig:"SUMMARY_MAX_LIMIT"`
	LogLevel        string `envconfig:"LOG_LEVEL"`
}

// DefaultConfig возвращает настройки по умолчанию: memory-хранилище без Kafka.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		KafkaTopic:          kafka.TopicOrderEvents,
		KafkaDLQTopic:       kafka.TopicDeadLetterQueue,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		OutboxStaleAfter:    5 * time.Minute,
		SummaryMaxLimit:     summary.DefaultMaxLimit,
		LogLevel:            "info",
	}
}

// LoadConfig накладывает переменные окружения LEDGER_* на DefaultConfig и проверяет результат.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.KafkaBrokers = compactBrokers(cfg.KafkaBrokers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres storage requires LEDGER_POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox poll interval must be > 0"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox batch size must be > 0"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox max attempts must be > 0"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("outbox retry delay must be >= 0"))
	}
	if c.SummaryMaxLimit < 1 {
		errs = append(errs, errors.New("summary max limit must be >= 1"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}

	return errors.Join(errs...)
}

func compactBrokers(brokers []string) []string {
	result := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			result = append(result, broker)
		}
	}
	return result
}
