package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/config"
	"github.com/jonesrussell/site-portfolio/internal/database"
)

// SetupDatabase opens the connection pool shared by every repository.
func SetupDatabase(ctx context.Context, cfg *config.Config, log infralogger.Logger) (*sqlx.DB, error) {
	db, err := database.New(ctx, &cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}
	return db, nil
}

// RunMigrations applies (up) or rolls back (down) schema migrations.
func RunMigrations(cfg *config.Config, log infralogger.Logger, direction string, steps int) (version uint, err error) {
	m, err := database.NewMigrator(&cfg.Database, log)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			log.Warn("Failed to close migrator", infralogger.Error(closeErr))
		}
	}()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down(steps)
	default:
		return 0, fmt.Errorf("unknown migration direction %q (want up or down)", direction)
	}
	if err != nil {
		return 0, err
	}

	version, _, err = m.Version()
	return version, err
}
