package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

// Dialect задаёт поддерживаемую СУБД.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect разбирает имя диалекта.
func ParseDialect(raw string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(raw))); d {
	case DialectPostgres, DialectSQLite:
		return d, nil
	case "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect %q", raw)
	}
}

func (d Dialect) driverName() string {
	if d == DialectSQLite {
		return "sqlite"
	}
	return "pgx"
}

// goquDialect возвращает имя диалекта в терминах goqu.
func (d Dialect) goquDialect() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// DB оборачивает SQL-подключение вместе с диалектом и построителем запросов.
type DB struct {
	db      *sql.DB
	dialect Dialect
	builder goqu.DialectWrapper
}

// Open открывает подключение и проверяет доступность базы.
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	if dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	} else if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// SQLite пишет в один поток, а in-memory база живёт ровно столько, сколько её соединение.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
		db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	return &DB{db: db, dialect: dialect, builder: goqu.Dialect(dialect.goquDialect())}, nil
}

// sqliteDSN приводит DSN к формату modernc и включает внешние ключи.
func sqliteDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || dsn == ":memory:" {
		dsn = "file::memory:"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}

	params := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)", "_time_format=sqlite"}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range params {
		if strings.Contains(dsn, p) {
			continue
		}
		dsn += sep + p
		sep = "&"
	}
	return dsn
}

// SQL возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Dialect возвращает диалект подключения.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Builder возвращает построитель запросов goqu для диалекта подключения.
func (d *DB) Builder() goqu.DialectWrapper {
	return d.builder
}

// Ping проверяет доступность подключения.
func (d *DB) Ping(ctx context.Context) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("sql store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return d.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (d *DB) EnsureSchema(ctx context.Context) error {
	return d.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}
