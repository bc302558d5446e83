package domain

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNotFound - базовая ошибка отсутствующего заказа или клиента.
	ErrNotFound = errors.New("not found")
	// ErrConflict - базовая ошибка конфликтующего состояния.
	ErrConflict = errors.New("conflicting state")
	// Ошибка пустого описания заказа.
	ErrDescriptionRequired = errors.New("description is required")
	// Ошибка расчётного времени вне диапазона (0; 100).
	ErrTimeOutOfRange = errors.New("time must be greater than 0 and less than 100")
	// Ошибка неизвестного статуса заказа.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidRange - первая граница диапазона больше последней.
	ErrInvalidRange = errors.New("first id greater than last id")
	// ErrDescriptionTaken - описание заказа уже используется (уникальный индекс в SQL).
	ErrDescriptionTaken = errors.New("order description already used")
	// ErrNameTaken - имя клиента уже используется.
	ErrNameTaken = errors.New("client name already used")
	// ErrWrongPassword - пароль не совпал.
	ErrWrongPassword = errors.New("wrong password")
	// ErrUnknownBackend - запрошен неизвестный тип хранилища.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// DefaultConflictMessage - сообщение для заказа, который нельзя взять в обработку.
const DefaultConflictMessage = "Order does not await for process"

// EntityKind различает сущности в NotFoundError.
type EntityKind string

const (
	EntityOrder  EntityKind = "order"
	EntityClient EntityKind = "client"
)

// NotFoundError сообщает об отсутствии нужной сущности.
type NotFoundError struct {
	Kind EntityKind
	// ID может быть nil, например для "следующего ожидающего заказа".
	ID      *int64
	Message string
}

// NewOrderNotFound создаёт ошибку отсутствующего заказа.
func NewOrderNotFound(id int64, message string) *NotFoundError {
	return &NotFoundError{Kind: EntityOrder, ID: ID(id), Message: message}
}

// NewClientNotFound создаёт ошибку отсутствующего клиента.
func NewClientNotFound(id *int64, message string) *NotFoundError {
	return &NotFoundError{Kind: EntityClient, ID: CloneID(id), Message: message}
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	id := "?"
	if e.ID != nil {
		id = strconv.FormatInt(*e.ID, 10)
	}
	if e.Kind == EntityOrder || e.Kind == "" {
		return "ID: " + id + ") No order"
	}
	return fmt.Sprintf("ID: %s) No %s", id, e.Kind)
}

// Is позволяет сравнивать через errors.Is(err, ErrNotFound).
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError сообщает о недопустимом состоянии для операции.
type ConflictError struct {
	Message string
	Err     error
}

// NewConflict создаёт ConflictError с сообщением по умолчанию, если message пустой.
func NewConflict(message string) *ConflictError {
	if message == "" {
		message = DefaultConflictMessage
	}
	return &ConflictError{Message: message}
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return DefaultConflictMessage
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// IsNotFound проверяет, является ли ошибка отсутствием сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict проверяет, является ли ошибка конфликтом состояния.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
