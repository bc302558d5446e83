// Package sqlstore реализует domain.Store прямыми SQL-запросами, построенными через goqu.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	"github.com/vladislavdragonenkov/queueapp/internal/storage/sqldb"
)

const (
	defaultOpTimeout = 5 * time.Second

	ordersTable  = "orders"
	clientsTable = "clients"
)

var (
	orderColumns  = []interface{}{"id", "description", "time", "status", "client_id", "creation_date"}
	clientColumns = []interface{}{"id", "name", "password", "photo"}
)

// Store - реализация domain.Store поверх sqldb.DB.
//
// Каждый вызов выполняется в собственной короткой транзакции. Заказы клиента
// не хранятся отдельно, а выбираются по внешнему ключу.
type Store struct {
	db      *sqldb.DB
	builder goqu.DialectWrapper
	opened  atomic.Bool
}

// New создаёт открытое хранилище. Схема должна быть применена заранее.
func New(db *sqldb.DB) *Store {
	s := &Store{db: db, builder: db.Builder()}
	s.opened.Store(true)
	return s
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	opCtx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()

	tx, err := s.db.SQL().BeginTx(opCtx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(opCtx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func exec(ctx context.Context, q queryer, b sqlBuilder) (int64, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func scalar(ctx context.Context, q queryer, b sqlBuilder, dest interface{}) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return q.QueryRowContext(ctx, query, args...).Scan(dest)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order    domain.Order
		status   string
		clientID sql.NullInt64
	)
	if err := row.Scan(&order.ID, &order.Description, &order.Time, &status, &clientID, &order.CreationDate); err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatus(status)
	if clientID.Valid {
		order.ClientID = domain.ID(clientID.Int64)
	}
	order.CreationDate = order.CreationDate.UTC()
	return &order, nil
}

func queryOrders(ctx context.Context, q queryer, ds *goqu.SelectDataset) ([]*domain.Order, error) {
	query, args, err := ds.Select(orderColumns...).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build orders query: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// queryClients выбирает клиентов и затем одним запросом подгружает их заказы.
func (s *Store) queryClients(ctx context.Context, q queryer, ds *goqu.SelectDataset) ([]*domain.Client, error) {
	query, args, err := ds.Select(clientColumns...).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build clients query: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}

	clients := make([]*domain.Client, 0)
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Password, &c.Photo); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan client: %w", err)
		}
		c.Orders = []*domain.Order{}
		clients = append(clients, &c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	_ = rows.Close()

	if len(clients) == 0 {
		return clients, nil
	}

	byID := make(map[int64]*domain.Client, len(clients))
	ids := make([]int64, 0, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	orders, err := queryOrders(ctx, q, s.builder.From(ordersTable).
		Where(goqu.C("client_id").In(ids)).
		Order(goqu.C("id").Asc()))
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if owner, ok := byID[*o.ClientID]; ok {
			owner.Orders = append(owner.Orders, o)
		}
	}
	return clients, nil
}

func (s *Store) clientBy(ctx context.Context, where exp.Expression) (*domain.Client, error) {
	var client *domain.Client
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		clients, err := s.queryClients(ctx, tx, s.builder.From(clientsTable).Where(where).Limit(1))
		if err != nil {
			return err
		}
		if len(clients) > 0 {
			client = clients[0]
		}
		return nil
	})
	return client, err
}

func (s *Store) nextID(ctx context.Context, q queryer, table string) (int64, error) {
	var next int64
	ds := s.builder.From(table).
		Select(goqu.L("COALESCE(MAX(?), 0) + 1", goqu.C("id"))).
		Prepared(true)
	if err := scalar(ctx, q, ds, &next); err != nil {
		return 0, fmt.Errorf("next %s id: %w", table, err)
	}
	return next, nil
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ds := s.builder.From(table).Select(goqu.COUNT(goqu.Star())).Prepared(true)
		if err := scalar(ctx, tx, ds, &n); err != nil {
			return fmt.Errorf("count %s: %w", table, err)
		}
		return nil
	})
	return n, err
}

// translateWriteError переводит нарушения ограничений в доменные ошибки.
func translateWriteError(err error, taken error, order *domain.Order) error {
	switch {
	case err == nil:
		return nil
	case sqldb.IsUniqueViolation(err):
		msg := "Description used"
		if errors.Is(taken, domain.ErrNameTaken) {
			msg = "Name used"
		}
		return &domain.ConflictError{Message: msg, Err: taken}
	case sqldb.IsForeignKeyViolation(err) && order != nil:
		return domain.NewClientNotFound(order.ClientID, "")
	default:
		return err
	}
}

// Clear удаляет все данные независимо от состояния блокировки.
func (s *Store) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := exec(ctx, tx, s.builder.Delete(ordersTable).Prepared(true)); err != nil {
			return fmt.Errorf("clear orders: %w", err)
		}
		if _, err := exec(ctx, tx, s.builder.Delete(clientsTable).Prepared(true)); err != nil {
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
	return s.db.Close()
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

var _ domain.Store = (*Store)(nil)
