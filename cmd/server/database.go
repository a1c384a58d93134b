package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/platform/postgres"
	"github.com/phrazzld/digest-api/internal/store"
)

// openDatabase opens the pgx connection pool and verifies it.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns)
	return db, nil
}

// stores bundles the persistence the application runs on.
type stores struct {
	users         store.UserStore
	jobs          store.JobStore
	notifications store.NotificationStore
	tx            store.Transactor
}

func postgresStores(db *sql.DB, logger *slog.Logger) stores {
	return stores{
		users:         postgres.NewPostgresUserStore(db, logger),
		jobs:          postgres.NewPostgresJobStore(db, logger),
		notifications: postgres.NewPostgresNotificationStore(db, logger),
		tx:            store.NewSQLTransactor(db),
	}
}
