// Package server wires the account backend together: configuration, logging,
// the Postgres store, email and storage providers, and the HTTP and gRPC
// listeners, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
	"github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/dmitrijs2005/accountkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/accountkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/accountkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/accountkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accountkeeper/internal/server/services"
	"github.com/dmitrijs2005/accountkeeper/internal/server/storage"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/accountkeeper/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

// Replaced in tests.
var (
	openDB               = repomanager.OpenDB
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
	newUploader          = func(ctx context.Context, c *config.Config) (services.Uploader, error) {
		return storage.NewS3Uploader(ctx, c)
	}
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	handler http.Handler
	health  *gs.HealthServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(c.LogBackend, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}
	if err := app.wire(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) wire(ctx context.Context) error {
	c := app.config

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("db init error: %w", err)
	}

	tokens, err := auth.NewTokenService(c.JWTSecretKey, c.JWTAlgorithm, c.AccessTokenValidityDuration)
	if err != nil {
		return fmt.Errorf("token service init error: %w", err)
	}

	mail, err := mailer.New(c, nil)
	if err != nil {
		return fmt.Errorf("mailer init error: %w", err)
	}

	uploader, err := newUploader(ctx, c)
	if err != nil {
		return fmt.Errorf("storage init error: %w", err)
	}

	m := metrics.New()

	accounts := services.NewAccountService(app.db, rm, c, auth.NewBcryptHasher(), tokens,
		auth.NewOTPGenerator(c.OTPDigits), mail, app.logger, services.WithEvents(m))
	guard := services.NewAccessGuard(app.db, rm, tokens)
	uploads := services.NewUploadService(uploader, c.UploadDir, app.logger, m)

	opts := httpapi.RouterOptions{
		Accounts:       accounts,
		Guard:          guard,
		Uploads:        uploads,
		Logger:         app.logger,
		Metrics:        m,
		MetricsHandler: m.Handler(),
	}

	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.logger.Warn(ctx, "redis unreachable, rate limits fail open", "addr", c.RedisAddr, "error", err)
		}
		limiter := ratelimit.New(app.redis, c.RateLimit, c.RateLimitWindow, "accountkeeper:ratelimit", app.logger)
		opts.RateLimit = limiter.Middleware
	}

	app.handler = httpapi.NewRouter(c, opts)
	app.health = gs.NewHealthServer(c.EndpointAddrGRPC, app.logger)
	return nil
}

// Handler is the HTTP API, for embedding in tests.
func (app *App) Handler() http.Handler { return app.handler }

// Run serves HTTP and gRPC until ctx is cancelled or SIGINT, SIGTERM or
// SIGQUIT arrives, then shuts both down gracefully. A listener failure stops
// the other one too.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	listen, err := net.Listen("tcp", app.config.EndpointAddrHTTP)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	srv := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
		if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := app.health.Run(ctx); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close releases the store and cache connections and flushes the logger.
func (app *App) Close() error {
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	if s, ok := app.logger.(interface{ Sync() error }); ok {
		// zap returns EINVAL syncing a terminal
		_ = s.Sync()
	}
	return errors.Join(errs...)
}
