package domain

import (
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа в очереди.
type OrderStatus string

const (
	// OrderStatusReceived - заказ принят и ждёт обработки.
	OrderStatusReceived OrderStatus = "received"
	// OrderStatusInProgress - заказ взят в обработку.
	OrderStatusInProgress OrderStatus = "in_progress"
	// OrderStatusComplete - обработка завершена, терминальный статус.
	OrderStatusComplete OrderStatus = "complete"
)

const (
	// DefaultOrderTime - расчётное время обработки, если клиент его не передал.
	DefaultOrderTime = 60
	// MaxOrderTime - верхняя граница (не включительно) расчётного времени.
	MaxOrderTime = 100
)

// ParseOrderStatus разбирает строковое представление статуса.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	switch s := OrderStatus(strings.TrimSpace(raw)); s {
	case OrderStatusReceived, OrderStatusInProgress, OrderStatusComplete:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Valid сообщает, является ли значение известным статусом.
func (s OrderStatus) Valid() bool {
	_, err := ParseOrderStatus(string(s))
	return err == nil
}

// CanTransitionTo проверяет переход received -> in_progress -> complete.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusReceived:
		return next == OrderStatusInProgress
	case OrderStatusInProgress:
		return next == OrderStatusComplete
	default:
		return false
	}
}

// Order - заказ клиента.
type Order struct {
	ID          int64
	Description string
	// Time - расчётная длительность обработки в условных единицах.
	Time   int
	Status OrderStatus
	// ClientID равен nil, если у заказа нет владельца.
	ClientID     *int64
	CreationDate time.Time
}

// OrderRecord - плоское представление заказа для выдачи наружу.
type OrderRecord struct {
	ID           int64       `json:"id"`
	Description  string      `json:"description"`
	Time         int         `json:"time"`
	Status       OrderStatus `json:"status"`
	ClientID     *int64      `json:"client_id"`
	CreationDate time.Time   `json:"creation_date"`
}

// NewOrder собирает заказ в статусе received.
func NewOrder(id int64, description string, estimated int, clientID *int64, createdAt time.Time) *Order {
	if estimated == 0 {
		estimated = DefaultOrderTime
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &Order{
		ID:           id,
		Description:  description,
		Time:         estimated,
		Status:       OrderStatusReceived,
		ClientID:     CloneID(clientID),
		CreationDate: createdAt,
	}
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if strings.TrimSpace(o.Description) == "" {
		errs = append(errs, ErrDescriptionRequired)
	}
	if o.Time <= 0 || o.Time >= MaxOrderTime {
		errs = append(errs, ErrTimeOutOfRange)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrInvalidStatus)
	}

	return errs
}

// OwnedBy сообщает, принадлежит ли заказ клиенту с указанным ID.
func (o *Order) OwnedBy(clientID int64) bool {
	return o.ClientID != nil && *o.ClientID == clientID
}

// Clone возвращает независимую копию заказа.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.ClientID = CloneID(o.ClientID)
	return &cp
}

// Record переводит заказ в плоскую запись.
func (o *Order) Record() OrderRecord {
	return OrderRecord{
		ID:           o.ID,
		Description:  o.Description,
		Time:         o.Time,
		Status:       o.Status,
		ClientID:     CloneID(o.ClientID),
		CreationDate: o.CreationDate,
	}
}

// CloneOrders копирует срез заказов поэлементно.
func CloneOrders(orders []*Order) []*Order {
	if orders == nil {
		return nil
	}
	out := make([]*Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.Clone())
	}
	return out
}

// CloneID копирует nullable идентификатор.
func CloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// ID упаковывает идентификатор в указатель.
func ID(v int64) *int64 {
	return &v
}
