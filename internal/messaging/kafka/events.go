package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeClientCreated      EventType = "client.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
)

// TopicEvents - топик событий клиентов и заказов.
const TopicEvents = "queueapp.events"

// Event - конверт события, который уходит в Kafka.
type Event struct {
	ID         string              `json:"id"`
	Type       EventType           `json:"event_type"`
	ClientName string              `json:"client_name,omitempty"`
	Order      *domain.OrderRecord `json:"order,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// NewClientCreatedEvent создает событие создания аккаунта
func NewClientCreatedEvent(name string) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       EventTypeClientCreated,
		ClientName: name,
		Timestamp:  time.Now().UTC(),
	}
}

// NewOrderStatusEvent создает событие смены статуса заказа
func NewOrderStatusEvent(order domain.OrderRecord) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      EventTypeOrderStatusChanged,
		Order:     &order,
		Timestamp: time.Now().UTC(),
	}
}

// Key возвращает ключ партиционирования: ID заказа или имя клиента.
func (e *Event) Key() string {
	if e.Order != nil {
		return strconv.FormatInt(e.Order.ID, 10)
	}
	return e.ClientName
}

// ParseEvent разбирает Event из сообщения
func ParseEvent(message *sarama.ConsumerMessage) (*Event, error) {
	var event Event
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("event %q has no type", event.ID)
	}
	return &event, nil
}
