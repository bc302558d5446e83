package domain

import "context"

// Notifier уведомляет внешний мир о событиях клиентов и заказов.
type Notifier interface {
	// ClientCreated сообщает о новом аккаунте.
	ClientCreated(ctx context.Context, name string) error
	// OrderStatusChanged сообщает о смене статуса заказа.
	OrderStatusChanged(ctx context.Context, order OrderRecord) error
}

// PasswordHasher хэширует и проверяет пароли клиентов.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// CallCounter считает обработанные HTTP-вызовы.
type CallCounter interface {
	Increment(ctx context.Context) (int64, error)
}
