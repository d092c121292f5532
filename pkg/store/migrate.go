package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver registered as "pgx"

	"github.com/ggnet/ggnetd/internal/logger"
	"github.com/ggnet/ggnetd/pkg/store/migrations"
)

// RunMigrations applies the embedded SQL migration set to a PostgreSQL
// database, the versioned alternative to the AutoMigrate path New() takes.
// It is meant for production deploys that want an auditable, reviewable
// schema history rather than GORM inferring DDL from struct tags.
//
// Migrating a SQLite deployment is not supported; SQLite installs rely on
// AutoMigrate exclusively, so 'ggnetd migrate' calls this only when
// cfg.Type == DatabaseTypePostgres and does nothing otherwise.
func RunMigrations(ctx context.Context, cfg *PostgresConfig) error {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open database connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{
		MigrationsTable: "schema_migrations",
		DatabaseName:    cfg.Database,
	})
	if err != nil {
		return fmt.Errorf("create postgres migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, "sql")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	logger.Info("applying database migrations")
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("no migrations applied yet")
		return nil
	}
	logger.Info("migrations up to date", logger.KeyVersion, version, logger.KeyDirty, dirty)
	if dirty {
		logger.Warn("database schema is in a dirty state; manual intervention may be required")
	}
	return nil
}
