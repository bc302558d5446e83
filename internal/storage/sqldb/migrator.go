package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
)

const (
	migrationsRoot   = "sql/migrations"
	migrationLockKey = int64(20240817)
	migrationsTable  = "schema_migrations"
)

var (
	//go:embed sql/migrations/postgres/*.sql sql/migrations/sqlite/*.sql
	migrationsFS embed.FS

	migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

	migrationTableDDL = map[Dialect]string{
		DialectPostgres: `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		DialectSQLite: `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	}
)

type migrationDirection string

const (
	migrationUp   migrationDirection = "up"
	migrationDown migrationDirection = "down"
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

type migrationBuilder struct {
	version int64
	name    string
	upSQL   string
	downSQL string
}

// migrationsGlob возвращает шаблон файлов миграций для диалекта.
func migrationsGlob(dialect Dialect) string {
	return path.Join(migrationsRoot, string(dialect), "*.sql")
}

// MigrateUp применяет up-миграции.
// steps=0 означает "применить все доступные".
func (d *DB) MigrateUp(ctx context.Context, steps int) error {
	return d.migrate(ctx, migrationUp, steps)
}

// MigrateDown откатывает миграции.
// steps<=0 интерпретируется как 1 шаг.
func (d *DB) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return d.migrate(ctx, migrationDown, steps)
}

// MigrationStatus возвращает текущую версию и количество применённых миграций.
func (d *DB) MigrationStatus(ctx context.Context) (int64, int, error) {
	if d == nil || d.db == nil {
		return 0, 0, fmt.Errorf("sql store is not initialized")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := d.db.ExecContext(queryCtx, migrationTableDDL[d.dialect]); err != nil {
		return 0, 0, fmt.Errorf("ensure migration table: %w", err)
	}

	query, args, err := d.builder.From(migrationsTable).
		Select(goqu.COALESCE(goqu.MAX("version"), 0), goqu.COUNT(goqu.Star())).
		Prepared(true).ToSQL()
	if err != nil {
		return 0, 0, fmt.Errorf("build migration status query: %w", err)
	}

	var (
		version int64
		count   int
	)
	if err := d.db.QueryRowContext(queryCtx, query, args...).Scan(&version, &count); err != nil {
		return 0, 0, fmt.Errorf("query migration status: %w", err)
	}

	return version, count, nil
}

func (d *DB) migrate(ctx context.Context, direction migrationDirection, steps int) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("sql store is not initialized")
	}

	migrations, err := loadMigrationsFromFS(migrationsFS, migrationsGlob(d.dialect))
	if err != nil {
		return err
	}

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	if d.dialect == DialectPostgres {
		lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		defer func() {
			_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
		}()
	}

	if _, err := conn.ExecContext(ctx, migrationTableDDL[d.dialect]); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	m := migrator{conn: conn, builder: d.builder}
	switch direction {
	case migrationUp:
		return m.applyUp(ctx, migrations, steps)
	case migrationDown:
		return m.applyDown(ctx, migrations, steps)
	default:
		return fmt.Errorf("unsupported migration direction: %s", direction)
	}
}

// migrator выполняет миграции на одном выделенном соединении.
type migrator struct {
	conn    *sql.Conn
	builder goqu.DialectWrapper
}

func (m migrator) applyUp(ctx context.Context, migrations []migration, steps int) error {
	applied, err := m.loadAppliedVersions(ctx)
	if err != nil {
		return err
	}

	appliedSteps := 0
	for _, mg := range migrations {
		if applied[mg.Version] {
			continue
		}
		if err := m.applyOne(ctx, mg, migrationUp); err != nil {
			return err
		}
		appliedSteps++
		if steps > 0 && appliedSteps >= steps {
			break
		}
	}

	return nil
}

func (m migrator) applyDown(ctx context.Context, migrations []migration, steps int) error {
	versionMap := make(map[int64]migration, len(migrations))
	for _, mg := range migrations {
		versionMap[mg.Version] = mg
	}

	versions, err := m.loadAppliedVersionsDesc(ctx, steps)
	if err != nil {
		return err
	}

	for _, version := range versions {
		mg, ok := versionMap[version]
		if !ok {
			return fmt.Errorf("cannot rollback unknown migration version %d", version)
		}
		if err := m.applyOne(ctx, mg, migrationDown); err != nil {
			return err
		}
	}

	return nil
}

func (m migrator) applyOne(ctx context.Context, mg migration, direction migrationDirection) error {
	body := mg.UpSQL
	record := m.builder.Insert(migrationsTable).
		Rows(goqu.Record{"version": mg.Version, "name": mg.Name, "applied_at": time.Now().UTC()})
	bookkeeping, args, err := record.Prepared(true).ToSQL()
	if direction == migrationDown {
		body = mg.DownSQL
		bookkeeping, args, err = m.builder.Delete(migrationsTable).
			Where(goqu.C("version").Eq(mg.Version)).
			Prepared(true).ToSQL()
	}
	if err != nil {
		return fmt.Errorf("build migration record (%s %d): %w", direction, mg.Version, err)
	}

	tx, err := m.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx (%s %d): %w", direction, mg.Version, err)
	}

	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute %s migration %d_%s: %w", direction, mg.Version, mg.Name, err)
	}

	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record %s migration %d_%s: %w", direction, mg.Version, mg.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %d_%s: %w", direction, mg.Version, mg.Name, err)
	}

	return nil
}

func (m migrator) loadAppliedVersions(ctx context.Context) (map[int64]bool, error) {
	query, args, err := m.builder.From(migrationsTable).Select("version").Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build applied migrations query: %w", err)
	}

	versions, err := m.queryVersions(ctx, query, args)
	if err != nil {
		return nil, err
	}

	result := make(map[int64]bool, len(versions))
	for _, v := range versions {
		result[v] = true
	}
	return result, nil
}

func (m migrator) loadAppliedVersionsDesc(ctx context.Context, limit int) ([]int64, error) {
	query, args, err := m.builder.From(migrationsTable).
		Select("version").
		Order(goqu.C("version").Desc()).
		Limit(uint(limit)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build applied migrations desc query: %w", err)
	}

	return m.queryVersions(ctx, query, args)
}

func (m migrator) queryVersions(ctx context.Context, query string, args []interface{}) ([]int64, error) {
	rows, err := m.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	versions := make([]int64, 0)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}

	return versions, nil
}

func loadMigrationsFromFS(fsys fs.FS, glob string) ([]migration, error) {
	files, err := fs.Glob(fsys, glob)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	builders := make(map[int64]*migrationBuilder)
	for _, file := range files {
		base := path.Base(file)
		matches := migrationFilePattern.FindStringSubmatch(base)
		if len(matches) != 4 {
			return nil, fmt.Errorf("invalid migration file name: %s", base)
		}

		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version from %s: %w", base, err)
		}
		name := matches[2]

		bodyRaw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", file, err)
		}
		body := strings.TrimSpace(string(bodyRaw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		builder, ok := builders[version]
		if !ok {
			builder = &migrationBuilder{version: version, name: name}
			builders[version] = builder
		} else if builder.name != name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, builder.name, name)
		}

		target := &builder.upSQL
		if migrationDirection(matches[3]) == migrationDown {
			target = &builder.downSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", matches[3], version)
		}
		*target = body
	}

	versions := make([]int64, 0, len(builders))
	for version := range builders {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	migrations := make([]migration, 0, len(versions))
	for _, version := range versions {
		b := builders[version]
		if b.upSQL == "" || b.downSQL == "" {
			return nil, fmt.Errorf("migration %d_%s must have both up and down files", b.version, b.name)
		}
		migrations = append(migrations, migration{
			Version: b.version,
			Name:    b.name,
			UpSQL:   b.upSQL,
			DownSQL: b.downSQL,
		})
	}

	return migrations, nil
}
