package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

// AddClient создаёт клиента с явным ID. При закрытом хранилище возвращает 0.
// Переданные заказы, уже лежащие в таблице, закрепляются за новым клиентом.
func (s *Store) AddClient(ctx context.Context, name, password, photo string, orders []*domain.Order) (int64, error) {
	if !s.Opened() {
		return 0, nil
	}

	var id int64
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		id, err = s.nextID(ctx, tx, clientsTable)
		if err != nil {
			return err
		}

		_, err = exec(ctx, tx, s.builder.Insert(clientsTable).Rows(goqu.Record{
			"id":       id,
			"name":     name,
			"password": password,
			"photo":    photo,
		}).Prepared(true))
		if err != nil {
			return translateWriteError(fmt.Errorf("insert client %q: %w", name, err), domain.ErrNameTaken, nil)
		}

		if len(orders) == 0 {
			return nil
		}
		orderIDs := make([]int64, 0, len(orders))
		for _, o := range orders {
			orderIDs = append(orderIDs, o.ID)
		}
		if _, err := exec(ctx, tx, s.builder.Update(ordersTable).
			Set(goqu.Record{"client_id": id}).
			Where(goqu.C("id").In(orderIDs)).
			Prepared(true)); err != nil {
			return fmt.Errorf("attach orders to client %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) ClientByName(ctx context.Context, name string) (*domain.Client, error) {
	return s.clientBy(ctx, goqu.C("name").Eq(name))
}

func (s *Store) ClientByID(ctx context.Context, id int64) (*domain.Client, error) {
	return s.clientBy(ctx, goqu.C("id").Eq(id))
}

func (s *Store) ClientsByIDs(ctx context.Context, ids []int64) ([]*domain.Client, error) {
	if len(ids) == 0 {
		return []*domain.Client{}, nil
	}
	var clients []*domain.Client
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		clients, err = s.queryClients(ctx, tx, s.builder.From(clientsTable).
			Where(goqu.C("id").In(ids)).
			Order(goqu.C("id").Asc()))
		return err
	})
	return clients, err
}

func (s *Store) Clients(ctx context.Context, limit int) ([]*domain.Client, error) {
	var clients []*domain.Client
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ds := s.builder.From(clientsTable).Order(goqu.C("id").Asc())
		if limit > 0 {
			ds = ds.Limit(uint(limit))
		}
		var err error
		clients, err = s.queryClients(ctx, tx, ds)
		return err
	})
	return clients, err
}

func (s *Store) ClientsCount(ctx context.Context) (int, error) {
	return s.count(ctx, clientsTable)
}

func (s *Store) NextClientID(ctx context.Context) (int64, error) {
	var next int64
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		next, err = s.nextID(ctx, tx, clientsTable)
		return err
	})
	return next, err
}

func (s *Store) OrdersByClientID(ctx context.Context, clientID int64) ([]*domain.Order, bool, error) {
	var (
		orders []*domain.Order
		found  bool
	)
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var n int
		exists := s.builder.From(clientsTable).
			Select(goqu.COUNT(goqu.Star())).
			Where(goqu.C("id").Eq(clientID)).
			Prepared(true)
		if err := scalar(ctx, tx, exists, &n); err != nil {
			return fmt.Errorf("check client %d: %w", clientID, err)
		}
		if n == 0 {
			return nil
		}
		found = true

		var err error
		orders, err = queryOrders(ctx, tx, s.builder.From(ordersTable).
			Where(goqu.C("client_id").Eq(clientID)).
			Order(goqu.C("id").Asc()))
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return orders, found, nil
}

// RemoveClient удаляет клиента. Оставшиеся заказы становятся бесхозными по ON DELETE SET NULL.
func (s *Store) RemoveClient(ctx context.Context, client *domain.Client) error {
	if client == nil || !s.Opened() {
		return nil
	}
	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := exec(ctx, tx, s.builder.Delete(clientsTable).Where(goqu.C("id").Eq(client.ID)).Prepared(true)); err != nil {
			return fmt.Errorf("delete client %d: %w", client.ID, err)
		}
		return nil
	})
}

// RemoveAllClientsOrders удаляет все заказы клиента. При закрытом хранилище вызов игнорируется.
func (s *Store) RemoveAllClientsOrders(ctx context.Context, client *domain.Client) error {
	if client == nil || !s.Opened() {
		return nil
	}
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := exec(ctx, tx, s.builder.Delete(ordersTable).Where(goqu.C("client_id").Eq(client.ID)).Prepared(true)); err != nil {
			return fmt.Errorf("delete orders of client %d: %w", client.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	client.Orders = []*domain.Order{}
	return nil
}

// AddOrderToClient ничего не делает: связь задаётся внешним ключом заказа.
func (s *Store) AddOrderToClient(context.Context, *domain.Order, *domain.Client) error {
	return nil
}

// RemoveOrderFromClient ничего не делает: связь задаётся внешним ключом заказа.
func (s *Store) RemoveOrderFromClient(context.Context, *domain.Client, *domain.Order) error {
	return nil
}

func (s *Store) UpdateOneClient(ctx context.Context, name string, updated *domain.Client) error {
	if updated == nil {
		return nil
	}
	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		affected, err := exec(ctx, tx, s.builder.Update(clientsTable).
			Set(goqu.Record{
				"name":     updated.Name,
				"password": updated.Password,
				"photo":    updated.Photo,
			}).
			Where(goqu.C("name").Eq(name)).
			Prepared(true))
		if err != nil {
			return translateWriteError(fmt.Errorf("update client %q: %w", name, err), domain.ErrNameTaken, nil)
		}
		if affected == 0 {
			return domain.NewClientNotFound(nil, "Wrong name")
		}
		return nil
	})
}

func (s *Store) ChangeClientPassword(ctx context.Context, client *domain.Client, password string) error {
	if client == nil {
		return nil
	}
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := exec(ctx, tx, s.builder.Update(clientsTable).
			Set(goqu.Record{"password": password}).
			Where(goqu.C("id").Eq(client.ID)).
			Prepared(true)); err != nil {
			return fmt.Errorf("change password of client %d: %w", client.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	client.Password = password
	return nil
}

// SetNewClients заменяет таблицу клиентов и восстанавливает владельцев заказов
// по спискам Orders переданных клиентов.
func (s *Store) SetNewClients(ctx context.Context, clients []*domain.Client) error {
	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := exec(ctx, tx, s.builder.Update(ordersTable).
			Set(goqu.Record{"client_id": nil}).
			Prepared(true)); err != nil {
			return fmt.Errorf("detach orders: %w", err)
		}
		if _, err := exec(ctx, tx, s.builder.Delete(clientsTable).Prepared(true)); err != nil {
			return fmt.Errorf("clear clients: %w", err)
		}

		for _, c := range clients {
			if _, err := exec(ctx, tx, s.builder.Insert(clientsTable).Rows(goqu.Record{
				"id":       c.ID,
				"name":     c.Name,
				"password": c.Password,
				"photo":    c.Photo,
			}).Prepared(true)); err != nil {
				return translateWriteError(fmt.Errorf("insert client %d: %w", c.ID, err), domain.ErrNameTaken, nil)
			}
			if len(c.Orders) == 0 {
				continue
			}
			orderIDs := make([]int64, 0, len(c.Orders))
			for _, o := range c.Orders {
				orderIDs = append(orderIDs, o.ID)
			}
			if _, err := exec(ctx, tx, s.builder.Update(ordersTable).
				Set(goqu.Record{"client_id": c.ID}).
				Where(goqu.C("id").In(orderIDs)).
				Prepared(true)); err != nil {
				return fmt.Errorf("attach orders to client %d: %w", c.ID, err)
			}
		}
		return nil
	})
}
