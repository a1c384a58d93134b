// Package main runs the digest API: the HTTP surface, the summarization
// workers and the scheduled credit reset and stuck-job reaper. The
// server.role setting selects which of these a process runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/platform/postgres"
	"github.com/phrazzld/digest-api/internal/redact"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, reset, status, version) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		slog.Error("digest-api exited with error", "error", redact.Error(err))
		os.Exit(1)
	}
}

func run(migrateCmd string) error {
	// A .env file is a local development convenience.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"role", cfg.Server.Role,
		"summarizer", cfg.Summarizer.Provider,
		"dispatch", cfg.Dispatch.Backend,
		"redis_lock", cfg.Redis.Addr != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	if migrateCmd != "" {
		return postgres.Migrate(ctx, db, migrateCmd, log)
	}

	app, err := newApplication(ctx, cfg, log, postgresStores(db, log))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Close()

	return app.Run(ctx)
}
