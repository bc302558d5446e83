package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

// OrderInput - данные нового заказа от клиента.
type OrderInput struct {
	Description string `json:"description"`
	// Time == 0 означает значение по умолчанию.
	Time int `json:"time"`
}

// CreateOrder создаёт заказ для клиента clientID. Если клиента нет, он
// создаётся с именем "New client{clientID}" и паролем по умолчанию.
func (s *Service) CreateOrder(ctx context.Context, clientID int64, input OrderInput) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.store()
	nextID, err := store.NextOrderID(ctx)
	if err != nil {
		return nil, fmt.Errorf("next order id: %w", err)
	}
	order := domain.NewOrder(nextID, strings.TrimSpace(input.Description), input.Time, nil, time.Now().UTC())
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	client, err := store.ClientByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("get client %d: %w", clientID, err)
	}
	if client == nil {
		client, err = s.createPlaceholderClientLocked(ctx, clientID)
		if err != nil {
			return nil, err
		}
	}
	if client != nil {
		order.ClientID = domain.ID(client.ID)
	}

	if err := store.AddOrderToClient(ctx, order, client); err != nil {
		return nil, fmt.Errorf("attach order to client: %w", err)
	}
	if err := store.AddOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("add order: %w", err)
	}
	s.metrics.RecordOrderCreated()
	s.logger.WithFields(log.Fields{
		"order_id":  order.ID,
		"client_id": clientID,
	}).Info("order created")
	return order.Clone(), nil
}

// createPlaceholderClientLocked создаёт клиента "New client{requestedID}".
// Возвращает nil, если хранилище закрыто.
func (s *Service) createPlaceholderClientLocked(ctx context.Context, requestedID int64) (*domain.Client, error) {
	name := newClientPrefix + strconv.FormatInt(requestedID, 10)
	hash, err := s.hasher.Hash(DefaultPassword)
	if err != nil {
		return nil, err
	}
	id, err := s.store().AddClient(ctx, name, hash, "", nil)
	if err != nil {
		return nil, fmt.Errorf("add client %q: %w", name, err)
	}
	if id == 0 {
		s.logger.WithField("client_name", name).Warn("storage closed, client not created")
		return nil, nil
	}
	client, err := s.store().ClientByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get client %d: %w", id, err)
	}
	s.logger.WithField("client_id", id).Info("created new client")
	s.notifyClientCreated(name)
	return client, nil
}

// SwapOrderOwner передаёт заказ клиенту clientID. nil делает заказ бесхозным,
// несуществующий клиент создаётся.
func (s *Service) SwapOrderOwner(ctx context.Context, orderID int64, clientID *int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.store()
	order, err := store.OrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	if order == nil {
		s.logger.WithField("order_id", orderID).Warn("no order to swap")
		return nil, domain.NewOrderNotFound(orderID, "")
	}

	if order.ClientID != nil {
		oldOwner, err := store.ClientByID(ctx, *order.ClientID)
		if err != nil {
			return nil, fmt.Errorf("get client %d: %w", *order.ClientID, err)
		}
		if err := store.RemoveOrderFromClient(ctx, oldOwner, order); err != nil {
			return nil, fmt.Errorf("detach order %d: %w", orderID, err)
		}
	}

	var newOwner *int64
	if clientID != nil {
		target, err := store.ClientByID(ctx, *clientID)
		if err != nil {
			return nil, fmt.Errorf("get client %d: %w", *clientID, err)
		}
		if target == nil {
			target, err = s.createPlaceholderClientLocked(ctx, *clientID)
			if err != nil {
				return nil, err
			}
		}
		if target != nil {
			if err := store.AddOrderToClient(ctx, order, target); err != nil {
				return nil, fmt.Errorf("attach order %d: %w", orderID, err)
			}
			newOwner = domain.ID(target.ID)
		}
	}

	if err := store.ChangeOrderOwner(ctx, newOwner, orderID); err != nil {
		return nil, fmt.Errorf("change owner of order %d: %w", orderID, err)
	}
	s.logger.WithField("order_id", orderID).Info("order owner swapped")

	updated, err := store.OrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return updated.Clone(), nil
}

// DeleteOrder удаляет заказ, пересобирая коллекцию без него.
func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.store()
	removed, err := store.OrderByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get order %d: %w", id, err)
	}
	if removed == nil {
		s.logger.WithField("order_id", id).Warn("no order to delete")
		return domain.NewOrderNotFound(id, "")
	}
	removed = removed.Clone()

	orders, err := store.Orders(ctx)
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}
	rest := make([]*domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.ID != id {
			rest = append(rest, o)
		}
	}
	if err := store.SetNewOrders(ctx, rest); err != nil {
		return fmt.Errorf("replace orders: %w", err)
	}

	if removed.ClientID != nil {
		owner, err := store.ClientByID(ctx, *removed.ClientID)
		if err != nil {
			return fmt.Errorf("get client %d: %w", *removed.ClientID, err)
		}
		if err := store.RemoveOrderFromClient(ctx, owner, removed); err != nil {
			return fmt.Errorf("detach order %d: %w", id, err)
		}
	}
	s.metrics.RecordOrdersDeleted(1)
	s.logger.WithField("order_id", id).Info("order deleted")
	return nil
}

// DeleteOrdersInRange удаляет заказы с first <= ID <= last и возвращает их количество.
func (s *Service) DeleteOrdersInRange(ctx context.Context, first, last int64) (int, error) {
	if first > last {
		s.logger.WithFields(log.Fields{"first": first, "last": last}).Warn("invalid order range")
		return 0, domain.ErrInvalidRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.store()
	orders, err := store.Orders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list orders: %w", err)
	}
	var toRemove []*domain.Order
	for _, o := range orders {
		if o.ID >= first && o.ID <= last {
			toRemove = append(toRemove, o)
		}
	}
	for _, o := range toRemove {
		if err := store.RemoveOrder(ctx, o); err != nil {
			return 0, fmt.Errorf("remove order %d: %w", o.ID, err)
		}
		if o.ClientID == nil {
			continue
		}
		owner, err := store.ClientByID(ctx, *o.ClientID)
		if err != nil {
			return 0, fmt.Errorf("get client %d: %w", *o.ClientID, err)
		}
		if err := store.RemoveOrderFromClient(ctx, owner, o); err != nil {
			return 0, fmt.Errorf("detach order %d: %w", o.ID, err)
		}
	}
	s.metrics.RecordOrdersDeleted(len(toRemove))
	s.logger.WithField("removed_count", len(toRemove)).Info("orders removed")
	return len(toRemove), nil
}

// OrdersByStatus возвращает заказы в указанном статусе по возрастанию ID.
func (s *Service) OrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.OrderRecord, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	orders, err := s.store().Orders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	records := make([]domain.OrderRecord, 0, len(orders))
	for _, o := range orders {
		if o.Status == status {
			records = append(records, o.Record())
		}
	}
	return records, nil
}

// OrdersOfClient возвращает заказы клиента clientID.
func (s *Service) OrdersOfClient(ctx context.Context, clientID int64) ([]domain.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders, found, err := s.store().OrdersByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("orders of client %d: %w", clientID, err)
	}
	if !found {
		s.logger.WithField("client_id", clientID).Warn("no client with id")
		return nil, domain.NewClientNotFound(domain.ID(clientID), "Incorrect id")
	}
	return records(orders), nil
}

// OrdersOfClientNamed возвращает заказы клиента по имени.
func (s *Service) OrdersOfClientNamed(ctx context.Context, name string) ([]domain.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, err := s.store().ClientByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get client %q: %w", name, err)
	}
	if client == nil {
		return nil, domain.NewClientNotFound(nil, NoClientWithNameMessage)
	}
	orders, _, err := s.store().OrdersByClientID(ctx, client.ID)
	if err != nil {
		return nil, fmt.Errorf("orders of client %d: %w", client.ID, err)
	}
	return records(orders), nil
}

// AllOrders возвращает все заказы плоскими записями.
func (s *Service) AllOrders(ctx context.Context) ([]domain.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.store().OrderRecords(ctx)
}

// OrdersCountsForClients возвращает количество заказов каждого найденного клиента.
// Несуществующие ID пропускаются.
func (s *Service) OrdersCountsForClients(ctx context.Context, ids []int64) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients, err := s.store().ClientsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("clients by ids: %w", err)
	}
	if len(clients) == 0 {
		s.logger.Warn("no clients with given ids")
		return nil, domain.NewClientNotFound(nil, "Incorrect header values")
	}
	counts := make([]int, 0, len(clients))
	for _, c := range clients {
		orders, _, err := s.store().OrdersByClientID(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("orders of client %d: %w", c.ID, err)
		}
		counts = append(counts, len(orders))
	}
	return counts, nil
}

func records(orders []*domain.Order) []domain.OrderRecord {
	out := make([]domain.OrderRecord, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.Record())
	}
	return out
}
