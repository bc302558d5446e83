package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	"github.com/vladislavdragonenkov/queueapp/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/queueapp/internal/notify"
)

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Возвращает nil, nil если brokers пустой.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := splitBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

func splitBrokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// newNotifier всегда пишет уведомления в лог и, при наличии producer, публикует события в Kafka.
func newNotifier(producer *kafka.Producer, topic string) domain.Notifier {
	logNotifier := notify.NewLogNotifier(notify.DefaultDelay)
	if producer == nil {
		return logNotifier
	}
	return notify.Multi{logNotifier, kafka.NewEventPublisher(producer, topic)}
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
