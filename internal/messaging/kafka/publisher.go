package kafka

import (
	"context"
	"errors"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

// EventPublisher реализует domain.Notifier поверх Producer.
type EventPublisher struct {
	producer *Producer
	topic    string
}

// NewEventPublisher создаёт паблишер; пустой topic заменяется на TopicEvents.
func NewEventPublisher(producer *Producer, topic string) *EventPublisher {
	if topic == "" {
		topic = TopicEvents
	}
	return &EventPublisher{producer: producer, topic: topic}
}

func (p *EventPublisher) ClientCreated(_ context.Context, name string) error {
	return p.publish(NewClientCreatedEvent(name))
}

func (p *EventPublisher) OrderStatusChanged(_ context.Context, order domain.OrderRecord) error {
	return p.publish(NewOrderStatusEvent(order))
}

func (p *EventPublisher) publish(event *Event) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka event publisher is not initialized")
	}
	return p.producer.Publish(p.topic, event)
}

var _ domain.Notifier = (*EventPublisher)(nil)
