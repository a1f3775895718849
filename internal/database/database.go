// Package database opens the PostgreSQL pool and applies schema migrations.
package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // migrate driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file:// source
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" //nolint:blankimports // PostgreSQL driver

	infracontext "github.com/jonesrussell/site-portfolio/infrastructure/context"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/config"
)

// New opens the pool described by cfg and verifies it with a ping.
func New(ctx context.Context, cfg *config.DatabaseConfig, log infralogger.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := infracontext.WithPingTimeout(ctx)
	defer cancel()

	if pingErr := db.PingContext(pingCtx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	log.Info("Database connection established",
		infralogger.String("host", cfg.Host),
		infralogger.String("dbname", cfg.DBName),
		infralogger.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return db, nil
}

// Migrator applies the SQL files under the configured migrations directory.
type Migrator struct {
	m      *migrate.Migrate
	path   string
	logger infralogger.Logger
}

// NewMigrator opens its own connection through golang-migrate.
func NewMigrator(cfg *config.DatabaseConfig, log infralogger.Logger) (*Migrator, error) {
	path := cfg.MigrationsPath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	m, err := migrate.New("file://"+filepath.ToSlash(path), cfg.MigrateURL())
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return &Migrator{m: m, path: path, logger: log}, nil
}

// Up applies every pending migration.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.logger.Info("No pending migrations", infralogger.String("migrations_path", mg.path))
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	mg.logger.Info("Migrations applied", infralogger.String("migrations_path", mg.path))
	return nil
}

// Down rolls back steps migrations (at least one).
func (mg *Migrator) Down(steps int) error {
	if steps <= 0 {
		steps = 1
	}

	if err := mg.m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.logger.Info("No migrations to roll back", infralogger.String("migrations_path", mg.path))
			return nil
		}
		return fmt.Errorf("roll back migrations: %w", err)
	}

	mg.logger.Info("Migrations rolled back",
		infralogger.String("migrations_path", mg.path),
		infralogger.Int("steps", steps),
	)
	return nil
}

// Version reports the applied version; 0 means none.
func (mg *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, nil
}

// Close releases the migrate source and database handles.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}
