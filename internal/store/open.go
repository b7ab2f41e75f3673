package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/compath-server/internal/database"
	"github.com/compath-server/internal/domain"
	"github.com/compath-server/internal/store/postgres"
	"github.com/compath-server/internal/store/sqlite"
)

// Open creates the store selected by the database config. For postgres it
// establishes a connection pool and applies pending migrations first;
// sqlite creates its schema on open.
func Open(ctx context.Context, cfg domain.DatabaseConfig, logger *logrus.Logger) (domain.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return openPostgres(ctx, cfg, logger)
	case "sqlite":
		return sqlite.New(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg domain.DatabaseConfig, logger *logrus.Logger) (domain.Store, error) {
	if cfg.MigrationsPath != "" {
		runner, err := database.NewMigrationRunner(database.URL(cfg), cfg.MigrationsPath, logger)
		if err != nil {
			return nil, fmt.Errorf("creating migration runner: %w", err)
		}
		if err := runner.Up(); err != nil {
			runner.Close()
			return nil, fmt.Errorf("applying migrations: %w", err)
		}
		if err := runner.Close(); err != nil {
			return nil, fmt.Errorf("closing migration runner: %w", err)
		}
	}

	db, err := database.NewConnection(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return postgres.New(db.Pool, logger), nil
}
