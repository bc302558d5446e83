package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

func orderRecord(o *domain.Order) goqu.Record {
	var clientID interface{}
	if o.ClientID != nil {
		clientID = *o.ClientID
	}
	return goqu.Record{
		"id":            o.ID,
		"description":   o.Description,
		"time":          o.Time,
		"status":        string(o.Status),
		"client_id":     clientID,
		"creation_date": o.CreationDate.UTC(),
	}
}

// AddOrder вставляет заказ. При закрытом хранилище вызов игнорируется.
func (s *Store) AddOrder(ctx context.Context, order *domain.Order) error {
	if order == nil || !s.Opened() {
		return nil
	}
	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := exec(ctx, tx, s.builder.Insert(ordersTable).Rows(orderRecord(order)).Prepared(true))
		if err != nil {
			return translateWriteError(fmt.Errorf("insert order %d: %w", order.ID, err), domain.ErrDescriptionTaken, order)
		}
		return nil
	})
}

func (s *Store) OrderByID(ctx context.Context, id int64) (*domain.Order, error) {
	var order *domain.Order
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		orders, err := queryOrders(ctx, tx, s.builder.From(ordersTable).Where(goqu.C("id").Eq(id)).Limit(1))
		if err != nil {
			return err
		}
		if len(orders) > 0 {
			order = orders[0]
		}
		return nil
	})
	return order, err
}

func (s *Store) Orders(ctx context.Context) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		orders, err = queryOrders(ctx, tx, s.builder.From(ordersTable).Order(goqu.C("id").Asc()))
		return err
	})
	return orders, err
}

func (s *Store) OrderRecords(ctx context.Context) ([]domain.OrderRecord, error) {
	orders, err := s.Orders(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]domain.OrderRecord, 0, len(orders))
	for _, o := range orders {
		records = append(records, o.Record())
	}
	return records, nil
}

func (s *Store) FirstOrderWithStatus(ctx context.Context, status domain.OrderStatus) (*domain.Order, error) {
	var order *domain.Order
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		orders, err := queryOrders(ctx, tx, s.builder.From(ordersTable).
			Where(goqu.C("status").Eq(string(status))).
			Order(goqu.C("id").Asc()).
			Limit(1))
		if err != nil {
			return err
		}
		if len(orders) > 0 {
			order = orders[0]
		}
		return nil
	})
	return order, err
}

// RemoveOrder удаляет заказ. При закрытом хранилище вызов игнорируется.
func (s *Store) RemoveOrder(ctx context.Context, order *domain.Order) error {
	if order == nil || !s.Opened() {
		return nil
	}
	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := exec(ctx, tx, s.builder.Delete(ordersTable).Where(goqu.C("id").Eq(order.ID)).Prepared(true)); err != nil {
			return fmt.Errorf("delete order %d: %w", order.ID, err)
		}
		return nil
	})
}

func (s *Store) NextOrderID(ctx context.Context) (int64, error) {
	var next int64
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		next, err = s.nextID(ctx, tx, ordersTable)
		return err
	})
	return next, err
}

func (s *Store) OrdersCount(ctx context.Context) (int, error) {
	return s.count(ctx, ordersTable)
}

// SetNewOrders заменяет содержимое таблицы заказов переданным списком.
func (s *Store) SetNewOrders(ctx context.Context, orders []*domain.Order) error {
	if !s.Opened() {
		return nil
	}
	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := exec(ctx, tx, s.builder.Delete(ordersTable).Prepared(true)); err != nil {
			return fmt.Errorf("clear orders: %w", err)
		}
		if len(orders) == 0 {
			return nil
		}
		rows := make([]interface{}, 0, len(orders))
		for _, o := range orders {
			rows = append(rows, orderRecord(o))
		}
		if _, err := exec(ctx, tx, s.builder.Insert(ordersTable).Rows(rows...).Prepared(true)); err != nil {
			return translateWriteError(fmt.Errorf("insert orders: %w", err), domain.ErrDescriptionTaken, nil)
		}
		return nil
	})
}

// ChangeOrderOwner переназначает владельца; clientID == nil снимает его.
func (s *Store) ChangeOrderOwner(ctx context.Context, clientID *int64, orderID int64) error {
	var owner interface{}
	if clientID != nil {
		owner = *clientID
	}
	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		affected, err := exec(ctx, tx, s.builder.Update(ordersTable).
			Set(goqu.Record{"client_id": owner}).
			Where(goqu.C("id").Eq(orderID)).
			Prepared(true))
		if err != nil {
			return translateWriteError(fmt.Errorf("change owner of order %d: %w", orderID, err), domain.ErrDescriptionTaken,
				&domain.Order{ID: orderID, ClientID: clientID})
		}
		if affected == 0 {
			return domain.NewOrderNotFound(orderID, "")
		}
		return nil
	})
}

// ReplaceOrderInClient сохраняет статус заказа: представление клиента строится запросом.
func (s *Store) ReplaceOrderInClient(ctx context.Context, order *domain.Order) error {
	if order == nil {
		return nil
	}
	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := exec(ctx, tx, s.builder.Update(ordersTable).
			Set(goqu.Record{"status": string(order.Status)}).
			Where(goqu.C("id").Eq(order.ID)).
			Prepared(true))
		if err != nil {
			return fmt.Errorf("update status of order %d: %w", order.ID, err)
		}
		return nil
	})
}
