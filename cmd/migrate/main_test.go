package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := rootCmd(viper.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate_SQLiteUpStatusDown(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "queue.db")
	common := []string{"--sql-dialect", "sqlite", "--dsn", dsn}

	out, err := execute(t, append([]string{"status"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "migration status: version=0 applied=0")

	out, err = execute(t, append([]string{"up"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "migrate up ok: version=1 applied=1")

	out, err = execute(t, append([]string{"up"}, common...)...)
	require.NoError(t, err, "repeated up must be idempotent")
	assert.Contains(t, out, "applied=1")

	out, err = execute(t, append([]string{"down"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "migrate down ok: version=0 applied=0")
}

func TestMigrate_DSNFromEnv(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "env.db")
	t.Setenv("QUEUEAPP_DSN", dsn)
	t.Setenv("QUEUEAPP_SQL_DIALECT", "sqlite")

	out, err := execute(t, "up")
	require.NoError(t, err)
	assert.Contains(t, out, "version=1")

	_, err = os.Stat(dsn)
	assert.NoError(t, err, "database file should be created at env DSN")
}

func TestMigrate_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("QUEUEAPP_DSN", "")

	_, err := execute(t, "status", "--sql-dialect", "postgres")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "QUEUEAPP_DSN"), err.Error())
}

func TestMigrate_UnknownDialect(t *testing.T) {
	_, err := execute(t, "status", "--sql-dialect", "oracle", "--dsn", "x")
	require.Error(t, err)
}

func TestMigrate_UnknownCommand(t *testing.T) {
	_, err := execute(t, "sideways")
	require.Error(t, err)
}
