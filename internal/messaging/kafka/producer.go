package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

const (
	clientID        = "queueapp"
	headerEventType = "event_type"
)

// Producer синхронно отправляет события очереди в Kafka.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
}

func producerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	// идемпотентность требует одного запроса в полёте
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// NewProducer подключается к брокерам.
func NewProducer(brokers []string) (*Producer, error) {
	sync, err := sarama.NewSyncProducer(brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newProducer(sync), nil
}

func newProducer(sync sarama.SyncProducer) *Producer {
	return &Producer{
		sync:   sync,
		logger: log.WithField("component", "kafka-producer"),
	}
}

// Publish кладёт событие в topic с ключом event.Key() и типом в заголовке.
func (p *Producer) Publish(topic string, event *Event) error {
	if event == nil {
		return fmt.Errorf("publish to %s: nil event", topic)
	}
	payload, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	key := event.Key()
	partition, offset, err := p.sync.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerEventType), Value: []byte(event.Type)},
		},
		Timestamp: event.Timestamp,
	})
	entry := p.logger.WithFields(log.Fields{
		"topic":      topic,
		"key":        key,
		"event_type": event.Type,
	})
	if err != nil {
		entry.WithError(err).Error("failed to send event")
		return fmt.Errorf("send event %s: %w", event.ID, err)
	}

	entry.WithFields(log.Fields{"partition": partition, "offset": offset}).Debug("event sent")
	return nil
}

func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
