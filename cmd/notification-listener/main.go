package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/queueapp/internal/messaging/kafka"
)

const defaultGroup = "queueapp-notification-listener"

// newHandler логирует события клиентов и заказов.
func newHandler(logger *log.Entry) kafka.EventHandler {
	return func(_ context.Context, event *kafka.Event) error {
		entry := logger.WithFields(log.Fields{"event_id": event.ID, "event_type": event.Type})
		switch event.Type {
		case kafka.EventTypeClientCreated:
			entry.WithField("client_name", event.ClientName).
				Infof("NOTIFICATION - ACCOUNT WITH NAME %s", event.ClientName)
		case kafka.EventTypeOrderStatusChanged:
			if event.Order == nil {
				entry.Warn("order event without order")
				return nil
			}
			entry.WithFields(log.Fields{
				"order_id": event.Order.ID,
				"status":   event.Order.Status,
			}).Infof("NOTIFICATION - ORDER %d IS %s", event.Order.ID, event.Order.Status)
		default:
			entry.Debug("ignoring unknown event type")
		}
		return nil
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger := log.WithField("component", "notification-listener")

	brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if brokers == "" {
		logger.Fatal("KAFKA_BROKERS is required")
	}
	topic := envOr("QUEUEAPP_KAFKA_TOPIC", kafka.TopicEvents)
	group := envOr("QUEUEAPP_KAFKA_GROUP", defaultGroup)

	consumer, err := kafka.NewEventConsumer(strings.Split(brokers, ","), group, []string{topic}, newHandler(logger))
	if err != nil {
		logger.WithError(err).Fatal("failed to create consumer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer.Start(ctx)
	logger.WithFields(log.Fields{"topic": topic, "group": group}).Info("listening for notifications")

	<-ctx.Done()
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("consumer stopped with error")
	}
	logger.Info("notification listener stopped")
}
