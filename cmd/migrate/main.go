package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vladislavdragonenkov/queueapp/internal/storage/sqldb"
)

const (
	defaultTimeout = 30 * time.Second
	envPrefix      = "QUEUEAPP"

	keyDSN     = "dsn"
	keyDialect = "sql-dialect"
	keyTimeout = "timeout"
	keySteps   = "steps"
)

func main() {
	if err := rootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCmd собирает CLI. Флаги связываются с переменными QUEUEAPP_DSN,
// QUEUEAPP_SQL_DIALECT и QUEUEAPP_TIMEOUT.
func rootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Applies queueapp schema migrations to PostgreSQL or SQLite",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String(keyDSN, "", "database DSN (env QUEUEAPP_DSN)")
	flags.String(keyDialect, string(sqldb.DialectPostgres), "sql dialect: postgres|sqlite (env QUEUEAPP_SQL_DIALECT)")
	flags.Duration(keyTimeout, defaultTimeout, "overall timeout")
	_ = v.BindPFlags(flags)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd.AddCommand(
		upCmd(v),
		downCmd(v),
		statusCmd(v),
	)
	return cmd
}

func upCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations (--steps=0 applies all)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, _ := cmd.Flags().GetInt(keySteps)
			return withDB(cmd, v, func(ctx context.Context, db *sqldb.DB) error {
				if err := db.MigrateUp(ctx, steps); err != nil {
					return fmt.Errorf("migrate up failed: %w", err)
				}
				return printStatus(ctx, cmd.OutOrStdout(), db, "migrate up ok")
			})
		},
	}
	cmd.Flags().Int(keySteps, 0, "number of migrations to apply")
	return cmd
}

func downCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, _ := cmd.Flags().GetInt(keySteps)
			return withDB(cmd, v, func(ctx context.Context, db *sqldb.DB) error {
				if err := db.MigrateDown(ctx, steps); err != nil {
					return fmt.Errorf("migrate down failed: %w", err)
				}
				return printStatus(ctx, cmd.OutOrStdout(), db, "migrate down ok")
			})
		},
	}
	cmd.Flags().Int(keySteps, 1, "number of migrations to roll back")
	return cmd
}

func statusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd, v, func(ctx context.Context, db *sqldb.DB) error {
				return printStatus(ctx, cmd.OutOrStdout(), db, "migration status")
			})
		},
	}
}

func withDB(cmd *cobra.Command, v *viper.Viper, fn func(ctx context.Context, db *sqldb.DB) error) error {
	dialect, err := sqldb.ParseDialect(v.GetString(keyDialect))
	if err != nil {
		return err
	}
	dsn := strings.TrimSpace(v.GetString(keyDSN))
	if dsn == "" && dialect == sqldb.DialectPostgres {
		return fmt.Errorf("%s_DSN (or --dsn) is required", envPrefix)
	}

	timeout := v.GetDuration(keyTimeout)
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	db, err := sqldb.Open(ctx, dialect, dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", dialect, err)
	}
	defer db.Close()

	log.WithFields(log.Fields{"dialect": dialect, "command": cmd.Name()}).Debug("running migrations")
	return fn(ctx, db)
}

func printStatus(ctx context.Context, out io.Writer, db *sqldb.DB, prefix string) error {
	version, count, err := db.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: version=%d applied=%d\n", prefix, version, count)
	return err
}
