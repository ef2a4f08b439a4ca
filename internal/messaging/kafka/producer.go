package kafka

import (
	"fmt"
	"sort"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const clientID = "ledger"

// Record: сообщение для Kafka с уже сериализованным значением.
type Record struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Producer отправляет записи событий леджера через синхронный sarama producer.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
	now      func() time.Time
}

// NewProducer подключается к брокерам. Producer идемпотентен и ждёт подтверждения всех ISR,
// поэтому повторная отправка из outbox не дублирует событие в партиции.
func NewProducer(brokers []string) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, newConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewProducerWithClient(producer), nil
}

func newConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// NewProducerWithClient оборачивает готовый sarama.SyncProducer (mocks в тестах).
func NewProducerWithClient(producer sarama.SyncProducer) *Producer {
	return &Producer{
		producer: producer,
		logger:   log.WithField("component", "kafka-producer"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Send отправляет запись и ждёт подтверждения брокера.
func (p *Producer) Send(record Record) error {
	if record.Topic == "" {
		return fmt.Errorf("kafka record without topic")
	}

	msg := &sarama.ProducerMessage{
		Topic:     record.Topic,
		Key:       sarama.StringEncoder(record.Key),
		Value:     sarama.ByteEncoder(record.Value),
		Headers:   recordHeaders(record.Headers),
		Timestamp: p.now(),
	}

	logger := p.logger.WithFields(log.Fields{
		"topic":      record.Topic,
		"key":        record.Key,
		"event_type": record.Headers[HeaderEventType],
	})
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		logger.WithError(err).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", record.Topic, err)
	}

	logger.WithFields(log.Fields{"partition": partition, "offset": offset}).Debug("record sent")
	return nil
}

// Close закрывает producer.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// recordHeaders сортирует заголовки по ключу: порядок в сообщении детерминирован.
func recordHeaders(headers map[string]string) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]sarama.RecordHeader, 0, len(keys))
	for _, k := range keys {
		result = append(result, sarama.RecordHeader{Key: []byte(k), Value: []byte(headers[k])})
	}
	return result
}
