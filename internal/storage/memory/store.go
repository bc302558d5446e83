package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

// Store - in-memory реализация domain.Store.
//
// Заказы и клиенты хранятся по ссылке: заказ из общей коллекции и заказ в списке
// клиента - один и тот же объект. Копии создаются только при SetNewOrders/SetNewClients.
type Store struct {
	mu      sync.RWMutex
	orders  blockingList[*domain.Order]
	clients blockingList[*domain.Client]
}

// NewStore возвращает пустое открытое хранилище.
func NewStore() *Store {
	return &Store{
		orders:  newBlockingList[*domain.Order](nil),
		clients: newBlockingList[*domain.Client](nil),
	}
}

func orderWithID(id int64) func(*domain.Order) bool {
	return func(o *domain.Order) bool { return o.ID == id }
}

func clientWithID(id int64) func(*domain.Client) bool {
	return func(c *domain.Client) bool { return c.ID == id }
}

func clientWithName(name string) func(*domain.Client) bool {
	return func(c *domain.Client) bool { return c.Name == name }
}

func sortedOrders(orders []*domain.Order) []*domain.Order {
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}

// AddOrder добавляет заказ в общую коллекцию. При закрытом хранилище вызов игнорируется.
func (s *Store) AddOrder(_ context.Context, order *domain.Order) error {
	if order == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders.Append(order)
	return nil
}

func (s *Store) OrderByID(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, _ := s.orders.Find(orderWithID(id))
	return order, nil
}

func (s *Store) Orders(_ context.Context) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedOrders(s.orders.Items()), nil
}

func (s *Store) OrderRecords(_ context.Context) ([]domain.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := sortedOrders(s.orders.Items())
	records := make([]domain.OrderRecord, 0, len(orders))
	for _, o := range orders {
		records = append(records, o.Record())
	}
	return records, nil
}

func (s *Store) FirstOrderWithStatus(_ context.Context, status domain.OrderStatus) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range sortedOrders(s.orders.Items()) {
		if o.Status == status {
			return o, nil
		}
	}
	return nil, nil
}

// RemoveOrder удаляет заказ из общей коллекции; список клиента не трогает.
func (s *Store) RemoveOrder(_ context.Context, order *domain.Order) error {
	if order == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders.Remove(orderWithID(order.ID))
	return nil
}

func (s *Store) NextOrderID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nextOrderIDLocked(), nil
}

func (s *Store) nextOrderIDLocked() int64 {
	var maxID int64
	for _, o := range s.orders.items {
		if o.ID > maxID {
			maxID = o.ID
		}
	}
	return maxID + 1
}

func (s *Store) OrdersCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.orders.Len(), nil
}

// SetNewOrders заменяет коллекцию глубокой копией orders и перепривязывает
// списки клиентов к новым объектам.
func (s *Store) SetNewOrders(_ context.Context, orders []*domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orders.Blocked() {
		return nil
	}
	s.orders.Replace(domain.CloneOrders(orders))
	s.relinkClientsLocked(s.clients.items)
	return nil
}

// SetNewClients заменяет коллекцию клиентов глубокой копией clients.
func (s *Store) SetNewClients(_ context.Context, clients []*domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copies := make([]*domain.Client, 0, len(clients))
	for _, c := range clients {
		copies = append(copies, c.Clone())
	}
	s.relinkClientsLocked(copies)
	s.clients.Replace(copies)
	return nil
}

// relinkClientsLocked восстанавливает общие ссылки между заказами клиента и общей коллекцией.
func (s *Store) relinkClientsLocked(clients []*domain.Client) {
	for _, c := range clients {
		for i, o := range c.Orders {
			if canonical, ok := s.orders.Find(orderWithID(o.ID)); ok {
				c.Orders[i] = canonical
			}
		}
	}
}

// ChangeOrderOwner меняет владельца заказа; clientID == nil делает заказ бесхозным.
func (s *Store) ChangeOrderOwner(_ context.Context, clientID *int64, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders.Find(orderWithID(orderID))
	if !ok {
		return domain.NewOrderNotFound(orderID, "")
	}
	order.ClientID = domain.CloneID(clientID)
	return nil
}

// ReplaceOrderInClient переносит состояние order в каноничный объект
// и подменяет заказ в списке его владельца.
func (s *Store) ReplaceOrderInClient(_ context.Context, order *domain.Order) error {
	if order == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical, ok := s.orders.Find(orderWithID(order.ID))
	if !ok {
		canonical = order
	} else if canonical != order {
		*canonical = *order.Clone()
	}

	if canonical.ClientID == nil {
		return nil
	}
	owner, ok := s.clients.Find(clientWithID(*canonical.ClientID))
	if !ok {
		return nil
	}
	for i, o := range owner.Orders {
		if o.ID == canonical.ID {
			owner.Orders[i] = canonical
		}
	}
	return nil
}

// AddClient создаёт клиента. При закрытом хранилище возвращает 0.
func (s *Store) AddClient(_ context.Context, name, password, photo string, orders []*domain.Order) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextClientIDLocked()
	if orders == nil {
		orders = []*domain.Order{}
	}
	client := &domain.Client{
		ID:       id,
		Name:     name,
		Password: password,
		Photo:    photo,
		Orders:   orders,
	}
	if !s.clients.Append(client) {
		return 0, nil
	}
	return id, nil
}

func (s *Store) ClientByName(_ context.Context, name string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, _ := s.clients.Find(clientWithName(name))
	return client, nil
}

func (s *Store) ClientByID(_ context.Context, id int64) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, _ := s.clients.Find(clientWithID(id))
	return client, nil
}

func (s *Store) ClientsByIDs(_ context.Context, ids []int64) ([]*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	result := make([]*domain.Client, 0, len(ids))
	for _, c := range s.clients.items {
		if _, ok := wanted[c.ID]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *Store) Clients(_ context.Context, limit int) ([]*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := s.clients.Items()
	sort.SliceStable(clients, func(i, j int) bool { return clients[i].ID < clients[j].ID })
	if limit > 0 && len(clients) > limit {
		clients = clients[:limit]
	}
	return clients, nil
}

func (s *Store) ClientsCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.clients.Len(), nil
}

func (s *Store) NextClientID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nextClientIDLocked(), nil
}

func (s *Store) nextClientIDLocked() int64 {
	var maxID int64
	for _, c := range s.clients.items {
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	return maxID + 1
}

func (s *Store) OrdersByClientID(_ context.Context, clientID int64) ([]*domain.Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients.Find(clientWithID(clientID))
	if !ok {
		return nil, false, nil
	}
	orders := make([]*domain.Order, len(client.Orders))
	copy(orders, client.Orders)
	return orders, true, nil
}

// RemoveClient удаляет клиента; его заказы остаются в общей коллекции.
func (s *Store) RemoveClient(_ context.Context, client *domain.Client) error {
	if client == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients.Remove(clientWithID(client.ID))
	return nil
}

// RemoveAllClientsOrders удаляет из общей коллекции все заказы клиента.
func (s *Store) RemoveAllClientsOrders(_ context.Context, client *domain.Client) error {
	if client == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orders.Blocked() {
		return nil
	}
	for _, o := range client.Orders {
		s.orders.Remove(orderWithID(o.ID))
	}
	client.Orders = []*domain.Order{}
	return nil
}

func (s *Store) AddOrderToClient(_ context.Context, order *domain.Order, client *domain.Client) error {
	if order == nil || client == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orders.Blocked() {
		return nil
	}
	client.Orders = append(client.Orders, order)
	return nil
}

func (s *Store) RemoveOrderFromClient(_ context.Context, client *domain.Client, order *domain.Order) error {
	if order == nil || client == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orders.Blocked() {
		return nil
	}
	for i, o := range client.Orders {
		if o.ID == order.ID {
			client.Orders = append(client.Orders[:i], client.Orders[i+1:]...)
			return nil
		}
	}
	return nil
}

// UpdateOneClient переносит имя, пароль и фото updated в клиента с именем name.
func (s *Store) UpdateOneClient(_ context.Context, name string, updated *domain.Client) error {
	if updated == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.clients.Find(clientWithName(name))
	if !ok {
		return domain.NewClientNotFound(nil, "Wrong name")
	}
	client.Name = updated.Name
	client.Password = updated.Password
	client.Photo = updated.Photo
	return nil
}

func (s *Store) ChangeClientPassword(_ context.Context, client *domain.Client, password string) error {
	if client == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.clients.Find(clientWithID(client.ID)); ok {
		stored.Password = password
	}
	client.Password = password
	return nil
}

// Clear удаляет все данные независимо от состояния блокировки.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders.Clear()
	s.clients.Clear()
	return nil
}

func (s *Store) OpenDBs() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders.Unblock()
	s.clients.Unblock()
}

func (s *Store) CloseDBs() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders.Block()
	s.clients.Block()
}

func (s *Store) Opened() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return !s.orders.Blocked()
}

var _ domain.Store = (*Store)(nil)
