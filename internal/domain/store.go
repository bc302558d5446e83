package domain

import "context"

// OrderStore описывает операции хранилища над заказами.
//
// Отсутствие записи не является ошибкой: методы поиска возвращают nil.
type OrderStore interface {
	// AddOrder сохраняет заказ. При закрытом хранилище вызов ничего не делает.
	AddOrder(ctx context.Context, order *Order) error
	OrderByID(ctx context.Context, id int64) (*Order, error)
	// Orders возвращает все заказы по возрастанию ID.
	Orders(ctx context.Context) ([]*Order, error)
	// OrderRecords возвращает все заказы плоскими записями по возрастанию ID.
	OrderRecords(ctx context.Context) ([]OrderRecord, error)
	// FirstOrderWithStatus возвращает заказ с минимальным ID в указанном статусе.
	FirstOrderWithStatus(ctx context.Context, status OrderStatus) (*Order, error)
	// RemoveOrder удаляет заказ. При закрытом хранилище вызов ничего не делает.
	RemoveOrder(ctx context.Context, order *Order) error
	// NextOrderID возвращает максимальный ID + 1, либо 1 для пустой коллекции.
	NextOrderID(ctx context.Context) (int64, error)
	OrdersCount(ctx context.Context) (int, error)
	// SetNewOrders целиком заменяет коллекцию заказов копией переданного списка.
	SetNewOrders(ctx context.Context, orders []*Order) error
	// ChangeOrderOwner меняет владельца заказа, не трогая статус. clientID == nil снимает владельца.
	ChangeOrderOwner(ctx context.Context, clientID *int64, orderID int64) error
	// ReplaceOrderInClient синхронизирует представление заказа у его владельца.
	ReplaceOrderInClient(ctx context.Context, order *Order) error
}

// ClientStore описывает операции хранилища над клиентами.
type ClientStore interface {
	// AddClient создаёт клиента и возвращает его ID. При закрытом хранилище возвращает 0 без ошибки.
	AddClient(ctx context.Context, name, password, photo string, orders []*Order) (int64, error)
	ClientByName(ctx context.Context, name string) (*Client, error)
	ClientByID(ctx context.Context, id int64) (*Client, error)
	ClientsByIDs(ctx context.Context, ids []int64) ([]*Client, error)
	// Clients возвращает клиентов по возрастанию ID; limit <= 0 - без ограничения.
	Clients(ctx context.Context, limit int) ([]*Client, error)
	ClientsCount(ctx context.Context) (int, error)
	NextClientID(ctx context.Context) (int64, error)
	// OrdersByClientID возвращает found == false, если клиента нет.
	OrdersByClientID(ctx context.Context, clientID int64) ([]*Order, bool, error)
	// RemoveClient удаляет клиента без каскадного удаления заказов.
	RemoveClient(ctx context.Context, client *Client) error
	RemoveAllClientsOrders(ctx context.Context, client *Client) error
	AddOrderToClient(ctx context.Context, order *Order, client *Client) error
	RemoveOrderFromClient(ctx context.Context, client *Client, order *Order) error
	// UpdateOneClient заменяет имя, пароль и фото клиента, найденного по имени.
	UpdateOneClient(ctx context.Context, name string, updated *Client) error
	// ChangeClientPassword сохраняет уже подготовленное (обычно хэшированное) значение.
	ChangeClientPassword(ctx context.Context, client *Client, password string) error
	SetNewClients(ctx context.Context, clients []*Client) error
}

// Lifecycle управляет состоянием хранилища целиком.
type Lifecycle interface {
	// Clear удаляет все данные обеих коллекций.
	Clear(ctx context.Context) error
	// OpenDBs разрешает запись.
	OpenDBs()
	// CloseDBs переводит запись в режим молчаливого no-op.
	CloseDBs()
	Opened() bool
}

// Store - полный контракт хранилища.
type Store interface {
	OrderStore
	ClientStore
	Lifecycle
}

// BackendKind задаёт тип хранилища.
type BackendKind string

const (
	BackendMemory BackendKind = "memory"
	BackendSQL    BackendKind = "sql"
	BackendORM    BackendKind = "orm"
)

// ParseBackendKind разбирает имя типа хранилища.
func ParseBackendKind(raw string) (BackendKind, error) {
	switch k := BackendKind(raw); k {
	case BackendMemory, BackendSQL, BackendORM:
		return k, nil
	default:
		return "", ErrUnknownBackend
	}
}
