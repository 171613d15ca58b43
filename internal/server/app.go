// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/employee-store/internal/api"
	"github.com/JakeFAU/employee-store/internal/config"
	"github.com/JakeFAU/employee-store/internal/employee"
	"github.com/JakeFAU/employee-store/internal/logging"
	"github.com/JakeFAU/employee-store/internal/storage/memory"
	pgstore "github.com/JakeFAU/employee-store/internal/storage/postgres"
	"github.com/JakeFAU/employee-store/internal/storage/sqlite"
	"github.com/JakeFAU/employee-store/internal/telemetry"
)

// Version is reported as the service.version trace attribute. Release builds
// override it with -ldflags.
var Version = "dev"

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	store          employee.Store
	service        *employee.Service
	apiServer      *api.Server
	tracerShutdown telemetry.ShutdownFunc

	closeOnce sync.Once
	closeErr  error
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
	)
	return &App{cfg: cfg, logger: logger}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := NewApp(cfg, logger)

	shutdown, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:      cfg.Telemetry.TracingEnabled,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      Version,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	}, app.logger.Named("telemetry"))
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerShutdown = shutdown

	app.store, err = setupStorage(ctx, app)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	app.service = employee.NewService(app.store, app.logger.Named("employee"))
	app.apiServer = api.NewServer(app.service, *cfg, app.logger.Named("api"))
	app.logger.Info("application dependencies built")
	return app, nil
}

func setupStorage(ctx context.Context, app *App) (employee.Store, error) {
	switch app.cfg.Storage.Backend {
	case config.BackendSQLite:
		app.logger.Info("using sqlite storage backend", zap.String("path", app.cfg.Storage.SQLite.Path))
		store, err := sqlite.Open(ctx, app.cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store init failed: %w", err)
		}
		return store, nil
	case config.BackendPostgres:
		app.logger.Info("using postgres storage backend", zap.String("table", app.cfg.Database.Table))
		store, err := pgstore.NewEmployeeStore(ctx, pgstore.Config{
			DSN:             app.cfg.Database.DSN,
			Table:           app.cfg.Database.Table,
			MaxConns:        app.cfg.Database.MaxConns,
			MinConns:        app.cfg.Database.MinConns,
			MaxConnLifetime: app.cfg.Database.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("postgres schema init failed: %w", err)
		}
		return store, nil
	default:
		app.logger.Info("using in-memory storage backend")
		return memory.NewEmployeeStore(), nil
	}
}

// Service returns the employee service.
func (a *App) Service() *employee.Service {
	return a.service
}

// Config returns the configuration the app was built with.
func (a *App) Config() config.Config {
	return *a.cfg
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Handler returns the HTTP handler tree.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP and blocks until the context is canceled or SIGINT/SIGTERM
// arrives. It does not close the app; callers own Close.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", a.cfg.Server.Port, err)
	}

	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown initiated")
	case err := <-serveErr:
		a.logger.Error("http server error", zap.Error(err))
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	return runErr
}

// Close releases storage and flushes telemetry. It is safe to call more than
// once.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				a.logger.Warn("store close failed", zap.Error(err))
				a.closeErr = fmt.Errorf("close store: %w", err)
			}
		}
		if a.tracerShutdown != nil {
			if err := a.tracerShutdown(ctx); err != nil {
				a.logger.Warn("tracer shutdown failed", zap.Error(err))
			}
		}
		a.logger.Info("shutdown complete")
		_ = a.logger.Sync()
	})
	return a.closeErr
}
