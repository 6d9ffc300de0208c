package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tripdesk_backend/internal/adapters"
	"tripdesk_backend/internal/approvals"
	"tripdesk_backend/internal/bookings"
	"tripdesk_backend/internal/email/queue"
	"tripdesk_backend/internal/followup"
	apphttp "tripdesk_backend/internal/http"
	"tripdesk_backend/internal/http/router"
	"tripdesk_backend/internal/notification"
	taskpkg "tripdesk_backend/internal/tasks"
	"tripdesk_backend/internal/trips"
	"tripdesk_backend/platform/config"
	"tripdesk_backend/platform/db"
	"tripdesk_backend/platform/logger"
	"tripdesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Notifications first: both the approval flow and the trip engine fan
	// out through the in-app notification store.
	notificationModule := notification.NewModule(pool, log)

	approvalsModule := approvals.NewModule(pool, notificationModule.Service(), log)

	val := validator.New()

	// Stage side effects: follow-up tasks, commission chasing, client emails.
	followupSvc := followup.NewService(followup.New(pool), taskpkg.New(pool), queue.New(pool), val, log)

	tripsModule := trips.NewModule(
		pool,
		adapters.NewTripApprovalGateway(approvalsModule.Service()),
		followupSvc,
		notificationModule.Service(),
		log,
	)
	bookingsModule := bookings.NewModule(
		pool,
		adapters.NewBookingApprovalGateway(approvalsModule.Service()),
		log,
	)
	tasksModule := taskpkg.NewModule(pool)

	// Approved requests re-apply through the owning services.
	adapters.RegisterTripAppliers(approvalsModule.Service(), tripsModule.Service())
	adapters.RegisterBookingAppliers(approvalsModule.Service(), bookingsModule.Service())

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			tripsModule,
			bookingsModule,
			approvalsModule,
			notificationModule,
			tasksModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
