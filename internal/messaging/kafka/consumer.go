package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const (
	defaultHandleAttempts = 3
	defaultRetryDelay     = 100 * time.Millisecond
)

// EventHandler получает уже разобранное событие очереди.
type EventHandler func(ctx context.Context, event *Event) error

// ConsumerOption настраивает EventConsumer.
type ConsumerOption func(*EventConsumer)

// WithRetry задаёт число попыток обработки события и паузу между ними.
func WithRetry(attempts int, delay time.Duration) ConsumerOption {
	return func(c *EventConsumer) {
		c.attempts = attempts
		c.retryDelay = delay
	}
}

// WithConsumerLogger подменяет логгер.
func WithConsumerLogger(logger *log.Entry) ConsumerOption {
	return func(c *EventConsumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// EventConsumer читает события очереди через consumer group.
// Сообщения, которые не разбираются в Event, помечаются прочитанными и
// пропускаются; ошибки обработчика повторяются, после исчерпания попыток
// сообщение не помечается.
type EventConsumer struct {
	group      sarama.ConsumerGroup
	topics     []string
	handle     EventHandler
	logger     *log.Entry
	wg         sync.WaitGroup
	attempts   int
	retryDelay time.Duration
}

func consumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true
	return config
}

// NewEventConsumer подключается к брокерам группой groupID.
func NewEventConsumer(brokers []string, groupID string, topics []string, handle EventHandler, opts ...ConsumerOption) (*EventConsumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, consumerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group %s: %w", groupID, err)
	}
	return newEventConsumer(group, topics, handle, opts...), nil
}

func newEventConsumer(group sarama.ConsumerGroup, topics []string, handle EventHandler, opts ...ConsumerOption) *EventConsumer {
	c := &EventConsumer{
		group:      group,
		topics:     topics,
		handle:     handle,
		logger:     log.WithField("component", "kafka-consumer"),
		attempts:   defaultHandleAttempts,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.attempts < 1 {
		c.attempts = 1
	}
	return c
}

// Start запускает чтение в фоне до отмены ctx или Stop.
func (c *EventConsumer) Start(ctx context.Context) {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for {
			// Consume возвращается на каждом rebalance
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("consume failed")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Error("consumer group error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("event consumer started")
}

// Stop закрывает группу и ждёт фоновые горутины.
func (c *EventConsumer) Stop() error {
	err := c.group.Close()
	c.wg.Wait()
	if err != nil {
		return fmt.Errorf("close kafka consumer group: %w", err)
	}
	c.logger.Info("event consumer stopped")
	return nil
}

func (c *EventConsumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *EventConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (c *EventConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			if c.process(session.Context(), message) {
				session.MarkMessage(message, "")
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// process возвращает true, если сообщение можно пометить прочитанным.
func (c *EventConsumer) process(ctx context.Context, message *sarama.ConsumerMessage) bool {
	entry := c.logger.WithFields(log.Fields{
		"topic":     message.Topic,
		"partition": message.Partition,
		"offset":    message.Offset,
	})

	event, err := ParseEvent(message)
	if err != nil {
		entry.WithError(err).Warn("skipping malformed event")
		return true
	}

	entry = entry.WithFields(log.Fields{"event_id": event.ID, "event_type": event.Type})
	for attempt := 1; ; attempt++ {
		err = c.handle(ctx, event)
		if err == nil {
			return true
		}
		if attempt >= c.attempts {
			entry.WithError(err).Error("event handling failed after all attempts")
			return false
		}
		entry.WithError(err).WithField("attempt", attempt).Warn("event handling failed, retrying")
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return false
		}
	}
}

var _ sarama.ConsumerGroupHandler = (*EventConsumer)(nil)
