// Package ormstore реализует domain.Store через gorm поверх общего SQL-подключения.
package ormstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	"github.com/vladislavdragonenkov/queueapp/internal/storage/sqldb"
)

const (
	defaultOpTimeout     = 5 * time.Second
	defaultSlowThreshold = 200 * time.Millisecond
)

// Store - реализация domain.Store на gorm.
type Store struct {
	db     *gorm.DB
	raw    *sqldb.DB
	opened atomic.Bool
}

// New создаёт ORM-хранилище поверх уже открытого подключения.
func New(db *sqldb.DB) (*Store, error) {
	var dialector gorm.Dialector
	switch db.Dialect() {
	case sqldb.DialectPostgres:
		dialector = postgres.New(postgres.Config{Conn: db.SQL()})
	case sqldb.DialectSQLite:
		dialector = sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: db.SQL()})
	default:
		return nil, fmt.Errorf("unsupported dialect %q", db.Dialect())
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log.WithField("component", "ormstore"), logger.Config{
			SlowThreshold:             defaultSlowThreshold,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	s := &Store{db: gdb, raw: db}
	s.opened.Store(true)
	return s, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	opCtx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()
	return s.db.WithContext(opCtx).Transaction(fn)
}

func all(tx *gorm.DB) *gorm.DB {
	return tx.Session(&gorm.Session{AllowGlobalUpdate: true})
}

func withOrders(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Orders", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	})
}

func nextID(tx *gorm.DB, table string) (int64, error) {
	var next int64
	if err := tx.Table(table).Select("COALESCE(MAX(id), 0) + 1").Row().Scan(&next); err != nil {
		return 0, fmt.Errorf("next %s id: %w", table, err)
	}
	return next, nil
}

// translateWriteError переводит нарушения ограничений в доменные ошибки.
func translateWriteError(err error, taken error, clientID *int64) error {
	switch {
	case err == nil:
		return nil
	case sqldb.IsUniqueViolation(err):
		msg := "Description used"
		if errors.Is(taken, domain.ErrNameTaken) {
			msg = "Name used"
		}
		return &domain.ConflictError{Message: msg, Err: taken}
	case sqldb.IsForeignKeyViolation(err):
		return domain.NewClientNotFound(clientID, "")
	default:
		return err
	}
}

// AddOrder вставляет заказ. При закрытом хранилище вызов игнорируется.
func (s *Store) AddOrder(ctx context.Context, order *domain.Order) error {
	if order == nil || !s.Opened() {
		return nil
	}
	m := newOrderModel(order)
	return s.inTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return translateWriteError(fmt.Errorf("insert order %d: %w", order.ID, err), domain.ErrDescriptionTaken, order.ClientID)
		}
		return nil
	})
}

func (s *Store) OrderByID(ctx context.Context, id int64) (*domain.Order, error) {
	var models []orderModel
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Limit(1).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return models[0].toDomain(), nil
}

func (s *Store) Orders(ctx context.Context) ([]*domain.Order, error) {
	var models []orderModel
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Order("id ASC").Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return ordersToDomain(models), nil
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
	var models []orderModel
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Where("status = ?", string(status)).Order("id ASC").Limit(1).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("first order with status %s: %w", status, err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return models[0].toDomain(), nil
}

// RemoveOrder удаляет заказ. При закрытом хранилище вызов игнорируется.
func (s *Store) RemoveOrder(ctx context.Context, order *domain.Order) error {
	if order == nil || !s.Opened() {
		return nil
	}
	return s.inTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", order.ID).Delete(&orderModel{}).Error; err != nil {
			return fmt.Errorf("delete order %d: %w", order.ID, err)
		}
		return nil
	})
}

func (s *Store) NextOrderID(ctx context.Context) (int64, error) {
	var next int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		next, err = nextID(tx, orderModel{}.TableName())
		return err
	})
	return next, err
}

func (s *Store) OrdersCount(ctx context.Context) (int, error) {
	var n int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Model(&orderModel{}).Count(&n).Error
	})
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return int(n), nil
}

// SetNewOrders заменяет содержимое таблицы заказов переданным списком.
func (s *Store) SetNewOrders(ctx context.Context, orders []*domain.Order) error {
	if !s.Opened() {
		return nil
	}
	return s.inTx(ctx, func(tx *gorm.DB) error {
		if err := all(tx).Delete(&orderModel{}).Error; err != nil {
			return fmt.Errorf("clear orders: %w", err)
		}
		if len(orders) == 0 {
			return nil
		}
		models := make([]orderModel, 0, len(orders))
		for _, o := range orders {
			models = append(models, newOrderModel(o))
		}
		if err := tx.Create(&models).Error; err != nil {
			return translateWriteError(fmt.Errorf("insert orders: %w", err), domain.ErrDescriptionTaken, nil)
		}
		return nil
	})
}

func (s *Store) ChangeOrderOwner(ctx context.Context, clientID *int64, orderID int64) error {
	var owner interface{}
	if clientID != nil {
		owner = *clientID
	}
	return s.inTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&orderModel{}).Where("id = ?", orderID).Update("client_id", owner)
		if res.Error != nil {
			return translateWriteError(fmt.Errorf("change owner of order %d: %w", orderID, res.Error), domain.ErrDescriptionTaken, clientID)
		}
		if res.RowsAffected == 0 {
			return domain.NewOrderNotFound(orderID, "")
		}
		return nil
	})
}

// ReplaceOrderInClient сохраняет статус заказа.
func (s *Store) ReplaceOrderInClient(ctx context.Context, order *domain.Order) error {
	if order == nil {
		return nil
	}
	return s.inTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&orderModel{}).Where("id = ?", order.ID).Update("status", string(order.Status)).Error; err != nil {
			return fmt.Errorf("update status of order %d: %w", order.ID, err)
		}
		return nil
	})
}

// AddClient создаёт клиента с явным ID. При закрытом хранилище возвращает 0.
func (s *Store) AddClient(ctx context.Context, name, password, photo string, orders []*domain.Order) (int64, error) {
	if !s.Opened() {
		return 0, nil
	}

	var id int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		id, err = nextID(tx, clientModel{}.TableName())
		if err != nil {
			return err
		}

		m := clientModel{ID: id, Name: name, Password: password, Photo: photo}
		if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
			return translateWriteError(fmt.Errorf("insert client %q: %w", name, err), domain.ErrNameTaken, nil)
		}
		return attachOrders(tx, id, orders)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func attachOrders(tx *gorm.DB, clientID int64, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	if err := tx.Model(&orderModel{}).Where("id IN ?", ids).Update("client_id", clientID).Error; err != nil {
		return fmt.Errorf("attach orders to client %d: %w", clientID, err)
	}
	return nil
}

func (s *Store) clientWhere(ctx context.Context, query string, arg interface{}) (*domain.Client, error) {
	var models []clientModel
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return withOrders(tx).Where(query, arg).Limit(1).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return models[0].toDomain(), nil
}

func (s *Store) ClientByName(ctx context.Context, name string) (*domain.Client, error) {
	return s.clientWhere(ctx, "name = ?", name)
}

func (s *Store) ClientByID(ctx context.Context, id int64) (*domain.Client, error) {
	return s.clientWhere(ctx, "id = ?", id)
}

func (s *Store) ClientsByIDs(ctx context.Context, ids []int64) ([]*domain.Client, error) {
	if len(ids) == 0 {
		return []*domain.Client{}, nil
	}
	var models []clientModel
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return withOrders(tx).Where("id IN ?", ids).Order("id ASC").Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("get clients by ids: %w", err)
	}
	return clientsToDomain(models), nil
}

func (s *Store) Clients(ctx context.Context, limit int) ([]*domain.Client, error) {
	var models []clientModel
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		q := withOrders(tx).Order("id ASC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clientsToDomain(models), nil
}

func (s *Store) ClientsCount(ctx context.Context) (int, error) {
	var n int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Model(&clientModel{}).Count(&n).Error
	})
	if err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return int(n), nil
}

func (s *Store) NextClientID(ctx context.Context) (int64, error) {
	var next int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		next, err = nextID(tx, clientModel{}.TableName())
		return err
	})
	return next, err
}

func (s *Store) OrdersByClientID(ctx context.Context, clientID int64) ([]*domain.Order, bool, error) {
	var (
		models []orderModel
		found  bool
	)
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&clientModel{}).Where("id = ?", clientID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		found = true
		return tx.Where("client_id = ?", clientID).Order("id ASC").Find(&models).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("orders of client %d: %w", clientID, err)
	}
	if !found {
		return nil, false, nil
	}
	return ordersToDomain(models), true, nil
}

// RemoveClient удаляет клиента; заказы остаются бесхозными.
func (s *Store) RemoveClient(ctx context.Context, client *domain.Client) error {
	if client == nil || !s.Opened() {
		return nil
	}
	return s.inTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", client.ID).Delete(&clientModel{}).Error; err != nil {
			return fmt.Errorf("delete client %d: %w", client.ID, err)
		}
		return nil
	})
}

func (s *Store) RemoveAllClientsOrders(ctx context.Context, client *domain.Client) error {
	if client == nil || !s.Opened() {
		return nil
	}
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Where("client_id = ?", client.ID).Delete(&orderModel{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete orders of client %d: %w", client.ID, err)
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
	return s.inTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&clientModel{}).Where("name = ?", name).Updates(map[string]interface{}{
			"name":     updated.Name,
			"password": updated.Password,
			"photo":    updated.Photo,
		})
		if res.Error != nil {
			return translateWriteError(fmt.Errorf("update client %q: %w", name, res.Error), domain.ErrNameTaken, nil)
		}
		if res.RowsAffected == 0 {
			return domain.NewClientNotFound(nil, "Wrong name")
		}
		return nil
	})
}

func (s *Store) ChangeClientPassword(ctx context.Context, client *domain.Client, password string) error {
	if client == nil {
		return nil
	}
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Model(&clientModel{}).Where("id = ?", client.ID).Update("password", password).Error
	})
	if err != nil {
		return fmt.Errorf("change password of client %d: %w", client.ID, err)
	}
	client.Password = password
	return nil
}

// SetNewClients заменяет таблицу клиентов и восстанавливает владельцев заказов.
func (s *Store) SetNewClients(ctx context.Context, clients []*domain.Client) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		if err := all(tx).Model(&orderModel{}).Update("client_id", nil).Error; err != nil {
			return fmt.Errorf("detach orders: %w", err)
		}
		if err := all(tx).Delete(&clientModel{}).Error; err != nil {
			return fmt.Errorf("clear clients: %w", err)
		}
		for _, c := range clients {
			m := clientModel{ID: c.ID, Name: c.Name, Password: c.Password, Photo: c.Photo}
			if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
				return translateWriteError(fmt.Errorf("insert client %d: %w", c.ID, err), domain.ErrNameTaken, nil)
			}
			if err := attachOrders(tx, c.ID, c.Orders); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear удаляет все данные независимо от состояния блокировки.
func (s *Store) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		if err := all(tx).Delete(&orderModel{}).Error; err != nil {
			return fmt.Errorf("clear orders: %w", err)
		}
		if err := all(tx).Delete(&clientModel{}).Error; err != nil {
			return fmt.Errorf("clear clients: %w", err)
		}
		return nil
	})
}

func (s *Store) OpenDBs()     { s.opened.Store(true) }
func (s *Store) CloseDBs()    { s.opened.Store(false) }
func (s *Store) Opened() bool { return s.opened.Load() }

// Close закрывает подключение к базе.
func (s *Store) Close() error {
	return s.raw.Close()
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	return s.raw.Ping(ctx)
}

var _ domain.Store = (*Store)(nil)
