package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/digest-api/internal/api"
	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/events"
	platformredis "github.com/phrazzld/digest-api/internal/platform/redis"
	"github.com/phrazzld/digest-api/internal/service"
	"github.com/phrazzld/digest-api/internal/service/auth"
	"github.com/phrazzld/digest-api/internal/task"
)

// reaperBatchSize bounds the jobs the stuck-job reaper fails per firing.
const reaperBatchSize = 500

// application holds the wired components and the resources to release on
// shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	handler   http.Handler
	ledger    *service.CreditLedger
	processor *task.Processor
	runner    *task.Runner
	pool      *task.WorkerPool
	scheduler *task.Scheduler

	closers []func() error
}

func (app *application) runsAPI() bool    { return app.config.Server.Role != "worker" }
func (app *application) runsWorker() bool { return app.config.Server.Role != "api" }

// newApplication wires services, dispatch and the HTTP router on top of st.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, st stores) (*application, error) {
	app := &application{config: cfg, logger: logger}

	tokens, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	d, err := newDispatch(cfg, app.runsWorker(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dispatch: %w", err)
	}
	app.closers = append(app.closers, d.close)

	notes := service.NewNotificationEmitter(st.notifications, logger)
	app.ledger = service.NewCreditLedger(st.users, notes, st.tx, cfg.Credits.Baseline, logger)

	eventEmitter := events.NewInMemoryEmitter(logger)
	eventEmitter.RegisterHandler(task.NewDispatchEventHandler(d.dispatcher, logger))

	jobs := service.NewJobService(st.jobs, st.users, notes, eventEmitter, st.tx,
		service.JobServiceConfig{JobCost: cfg.Credits.JobCost, Baseline: cfg.Credits.Baseline}, logger)
	users := service.NewUserService(st.users, auth.NewBcryptHasher(cfg.Auth.BCryptCost), tokens, logger)

	app.handler = api.NewRouter(api.RouterDeps{
		Users:         users,
		Jobs:          jobs,
		Credits:       app.ledger,
		Notifications: notes,
		Tokens:        tokens,
		Logger:        logger,
	})

	if !app.runsWorker() {
		logger.Info("application initialized", "role", cfg.Server.Role)
		return app, nil
	}

	summarizer, err := newSummarizer(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.processor = task.NewProcessor(st.jobs, st.users, app.ledger, notes, st.tx, summarizer,
		task.ProcessorConfig{JobCost: cfg.Credits.JobCost}, logger)
	app.runner = task.NewRunner(st.jobs, d.dispatcher, task.RunnerConfig{}, logger)
	app.pool = task.NewWorkerPool(d.source, app.processor, task.WorkerPoolConfig{
		WorkerCount: cfg.Dispatch.WorkerCount,
	}, logger)

	var locker task.Locker
	if cfg.Redis.Addr != "" {
		client, err := platformredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to initialize schedule lock: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		locker = platformredis.NewLocker(client, logger)
	}

	app.scheduler = task.NewScheduler(locker, cfg.Redis.LockTTL, logger)
	if err := app.scheduleJobs(); err != nil {
		app.Close()
		return nil, err
	}

	logger.Info("application initialized", "role", cfg.Server.Role)
	return app, nil
}

// scheduleJobs registers the credit reset and the stuck-job reaper. The
// reaper also re-enqueues jobs left pending by a lost dispatch.
func (app *application) scheduleJobs() error {
	cfg := app.config

	if err := app.scheduler.Add("credit-reset", cfg.Credits.ResetSchedule, func(ctx context.Context) error {
		_, err := app.ledger.ResetAll(ctx)
		return err
	}); err != nil {
		return err
	}

	return app.scheduler.Add("stuck-job-reaper", cfg.Dispatch.ReaperSchedule, func(ctx context.Context) error {
		_, failErr := app.processor.FailStuck(ctx, cfg.Dispatch.StuckJobAge, reaperBatchSize)
		_, sweepErr := app.runner.EnqueuePending(ctx, cfg.Dispatch.PendingSweepAge)
		return errors.Join(failErr, sweepErr)
	})
}

// Run blocks until ctx is cancelled or a component fails.
func (app *application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if app.runsAPI() {
		g.Go(func() error { return app.serveHTTP(ctx) })
	}

	if app.runsWorker() {
		g.Go(func() error { return app.pool.Run(ctx) })
		g.Go(func() error { return app.scheduler.Run(ctx) })
		g.Go(func() error {
			n, err := app.runner.Recover(ctx)
			if err != nil {
				app.logger.Error("failed to recover pending jobs", "error", err)
				return nil
			}
			app.logger.Info("recovered pending jobs", "count", n)
			return nil
		})
	}

	return g.Wait()
}

// Close releases dispatch and lock resources.
func (app *application) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error("failed to release resource", "error", err)
		}
	}
	app.closers = nil
	app.logger.Info("application shutdown completed")
}
