package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
	"github.com/vladislavdragonenkov/ledger/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ledger/internal/metrics"
	"github.com/vladislavdragonenkov/ledger/internal/service/outbox"
)

// initKafkaProducer создаёт producer, если заданы брокеры.
// Ошибка подключения не фатальна: события остаются в outbox до следующего запуска.
func initKafkaProducer(brokers []string, logger *log.Entry) *kafka.Producer {
	if len(brokers) == 0 {
		logger.Info("kafka brokers are not configured, outbox worker disabled")
		return nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}

// newOutboxWorker собирает воркер публикации событий заказов; без producer возвращает nil.
func newOutboxWorker(cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, m *metrics.LedgerMetrics, logger *log.Entry) *outbox.Worker {
	if producer == nil {
		return nil
	}
	return outbox.NewWorker(repo, kafka.NewOrderEventPublisher(producer, cfg.KafkaTopic),
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithMetrics(m),
		outbox.WithDLQPublisher(kafka.NewDeadLetterPublisher(producer, cfg.KafkaDLQTopic)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
}
