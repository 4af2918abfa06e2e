// Package server initializes and runs the session token engine: it opens the
// database, applies migrations, wires the services together and keeps the
// cleanup worker on schedule until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/newsplatform/sessiond/internal/logging"
	"github.com/newsplatform/sessiond/internal/server/config"
	"github.com/newsplatform/sessiond/internal/server/password"
	"github.com/newsplatform/sessiond/internal/server/repositories/repomanager"
	"github.com/newsplatform/sessiond/internal/server/services"
	"github.com/newsplatform/sessiond/internal/server/tokencache"
	"github.com/newsplatform/sessiond/internal/server/workers"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	Auth    *services.AuthService
	Tokens  *services.TokenService
	Cleanup *services.CleanupService
	worker  *workers.CleanupWorker
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	var cache tokencache.Cache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping error: %w", err)
		}
		cache = tokencache.NewRedisCache(client, cfg.CacheTTL, logger)
	}

	cleanup := services.NewCleanupService(db, rm, cfg, logger)
	tokens := services.NewTokenService(db, rm, cleanup, cache, cfg, logger)
	auth := services.NewAuthService(db, rm, tokens, password.NewBcryptVerifier(), logger)
	worker := workers.NewCleanupWorker(cleanup, cfg.SweepInterval, cfg.ReconcileInterval, logger)

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		Auth:    auth,
		Tokens:  tokens,
		Cleanup: cleanup,
		worker:  worker,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until a termination signal arrives or ctx is cancelled, then
// shuts the worker down and closes the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting session token engine",
		"sweep_interval", app.config.SweepInterval,
		"reconcile_interval", app.config.ReconcileInterval)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.worker.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database failed", "error", err)
	}
	app.logger.Info(ctx, "shutdown complete")
}
