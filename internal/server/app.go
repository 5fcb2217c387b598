// Package server initializes and runs the vault daemon. It opens the
// database, applies migrations, wires the session store, rate limiter and
// services, and runs the periodic reset-token expiry sweep until shutdown.
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
	"time"

	"github.com/metabot/lockr/internal/logging"
	"github.com/metabot/lockr/internal/server/config"
	"github.com/metabot/lockr/internal/server/ratelimit"
	"github.com/metabot/lockr/internal/server/repositories/repomanager"
	"github.com/metabot/lockr/internal/server/services"
	"github.com/metabot/lockr/internal/server/sessions"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	sessions     *sessions.Manager
	vaultService *services.VaultService
	resetService *services.ResetService
}

func NewApp(cfg *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	sm := sessions.NewManager(cfg.SessionTTL)

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		client, err := ratelimit.Connect(cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		limiter = ratelimit.NewRedisLimiter(client)
	} else {
		limiter = ratelimit.NewStoreLimiter(rm.ResetTokens(db))
	}

	vs := services.NewVaultService(db, rm, sm, cfg)
	rs := services.NewResetService(db, rm, sm, limiter, cfg)

	return &App{
		config:       cfg,
		logger:       logger,
		db:           db,
		sessions:     sm,
		vaultService: vs,
		resetService: rs,
	}, nil
}

// VaultService exposes the vault operations to the transport layer.
func (app *App) VaultService() *services.VaultService { return app.vaultService }

// ResetService exposes the reset operations to the transport layer.
func (app *App) ResetService() *services.ResetService { return app.resetService }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runTokenSweeper periodically removes expired reset tokens. Sessions
// expire lazily and tokens are only ever invalidated by TTL or use, so
// this sweep is pure housekeeping and safe at any cadence.
func (app *App) runTokenSweeper(ctx context.Context) {
	ticker := time.NewTicker(app.config.TokenCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.resetService.CleanupExpiredTokens(ctx)
			if err != nil {
				app.logger.Error(ctx, "token cleanup failed", "error", err.Error())
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired reset tokens removed", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting vault server",
		"session_ttl", app.config.SessionTTL.String(),
		"reset_token_ttl", app.config.ResetTokenTTL.String())

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runTokenSweeper(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
	app.logger.Info(ctx, "vault server stopped", "open_sessions", app.sessions.Len())
}
