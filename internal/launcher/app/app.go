package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/stellarvision/launcherd/internal/launcher/http"
	"github.com/stellarvision/launcherd/internal/launcher/kv"
	"github.com/stellarvision/launcherd/internal/launcher/service"
	"github.com/stellarvision/launcherd/internal/launcher/store"
	"github.com/stellarvision/launcherd/internal/launcher/store/drivers/sqlite"
	"github.com/stellarvision/launcherd/internal/launcher/ws"
	"github.com/stellarvision/launcherd/pkg/jwtx"
	"github.com/stellarvision/launcherd/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the launcher service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store
	kv kv.Store

	signer *jwtx.HS256

	launchCodeService *service.LaunchCodeService
	tokenService      *service.TokenService
	userService       *service.UserService
	gameService       *service.GameService
	blocklistService  *service.BlocklistService

	gateway *ws.Gateway
	creds   *ws.CredStore

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "launcherd",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	signer, err := jwtx.NewHS256([]byte(cfg.JWTSecret), cfg.Issuer, cfg.Audience)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token signer: %w", err)
	}
	app.signer = signer

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initKV(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		_ = app.kv.Close()
		return nil, err
	}
	app.initGateway()
	app.initHTTP()

	if cfg.SeedDefaults {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := service.SeedDefaults(ctx, app.db, app.logger); err != nil {
			return nil, fmt.Errorf("failed to seed defaults: %w", err)
		}
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.gateway.Start()

	app.logger.Info("launcher service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down launcher service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the heartbeat loop and close every live websocket session.
	app.gateway.Stop()

	if err := app.kv.Close(); err != nil {
		app.logger.Error("error closing kv store", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("launcher service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initKV connects to Redis when configured, falling back to the in-process
// store for single-node development.
func (app *Application) initKV() error {
	if app.cfg.RedisURL == "" {
		app.logger.Warn("no redis url configured, using in-memory kv store; " +
			"launch codes and revocations will not survive restarts")
		app.kv = kv.NewMemoryStore()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := kv.NewRedisStore(ctx, app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.kv = store
	app.logger.Info("connected to redis")
	return nil
}

func (app *Application) initServices() error {
	launchCodes, err := service.NewLaunchCodeService(app.kv, app.logger, service.LaunchCodeConfig{
		TTL:       app.cfg.LaunchCodeTTL,
		CodeBytes: app.cfg.LaunchCodeBytes,
		URIScheme: app.cfg.LauncherURIScheme,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize launch code service: %w", err)
	}
	app.launchCodeService = launchCodes

	app.tokenService = service.NewTokenService(
		app.signer,
		app.kv,
		app.logger,
		app.cfg.Issuer,
		app.cfg.Audience,
		app.cfg.AccessTTL,
		app.cfg.RefreshTTL,
	)
	app.userService = service.NewUserService(app.db.Users(), app.logger)
	app.gameService = service.NewGameService(app.db.Games(), app.logger)
	app.blocklistService = service.NewBlocklistService(app.kv, app.logger)
	return nil
}

func (app *Application) initGateway() {
	app.creds = ws.NewCredStore()
	app.gateway = ws.NewGateway(
		ws.NewRegistry(),
		ws.NewAliasIndex(),
		app.creds,
		app.logger,
		ws.WithHeartbeatInterval(app.cfg.HeartbeatInterval),
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer,
		BuildVersion,
		app.db,
		app.kv,
		app.logger,
	)

	router.UserService = app.userService
	router.TokenService = app.tokenService
	router.LaunchCodeService = app.launchCodeService
	router.BlocklistService = app.blocklistService
	router.GameService = app.gameService
	router.Gateway = app.gateway
	router.Creds = app.creds
	router.ExchangeCredTTL = app.cfg.ExchangeCredTTL
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
