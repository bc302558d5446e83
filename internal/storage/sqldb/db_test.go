package sqldb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	cases := map[string]Dialect{
		"postgres":   DialectPostgres,
		"PostgreSQL": DialectPostgres,
		"pgx":        DialectPostgres,
		" sqlite ":   DialectSQLite,
		"sqlite3":    DialectSQLite,
	}
	for raw, want := range cases {
		got, err := ParseDialect(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseDialect("mysql")
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"file::memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite",
		sqliteDSN(""))
	assert.Equal(t,
		"file:/tmp/sqlite.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite",
		sqliteDSN("/tmp/sqlite.db"))
	assert.Equal(t,
		"file:q.db?_time_format=sqlite&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		sqliteDSN("file:q.db?_time_format=sqlite"))
}

func TestOpen_PostgresRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), DialectPostgres, "  ")
	assert.Error(t, err)
}

func TestOpen_SQLiteEnforcesConstraints(t *testing.T) {
	db := openSQLiteForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.Ping(ctx))
	assert.Equal(t, DialectSQLite, db.Dialect())

	_, err := db.SQL().ExecContext(ctx, `INSERT INTO clients (id, name, password) VALUES (1, 'alice', 'x')`)
	require.NoError(t, err)

	_, err = db.SQL().ExecContext(ctx, `INSERT INTO clients (id, name, password) VALUES (2, 'alice', 'y')`)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err), "duplicate name: %v", err)

	_, err = db.SQL().ExecContext(ctx,
		`INSERT INTO orders (id, description, time, status, client_id, creation_date) VALUES (1, 'a', 5, 'received', 99, CURRENT_TIMESTAMP)`)
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err), "missing owner: %v", err)
	assert.False(t, IsUniqueViolation(err))

	_, err = db.SQL().ExecContext(ctx,
		`INSERT INTO orders (id, description, time, status, client_id, creation_date) VALUES (1, 'a', 5, 'paid', NULL, CURRENT_TIMESTAMP)`)
	require.Error(t, err, "status check must reject unknown values")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "22001"}))
	assert.False(t, IsUniqueViolation(errors.New("plain error")))
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
}

func TestClose_NilSafe(t *testing.T) {
	var db *DB
	assert.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}
