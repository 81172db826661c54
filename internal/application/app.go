// Package application builds the record service and its backing
// dependencies from configuration. The HTTP server and the CLI share it.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/crmsync/internal/config"
	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/events"
	"github.com/JonMunkholm/crmsync/internal/store/memstore"
	"github.com/JonMunkholm/crmsync/internal/store/postgres"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck = func(ctx context.Context) error

// App holds the wired service and everything it owns.
type App struct {
	Config  *config.Config
	Service *core.Service
	Store   core.RecordStore
	Events  events.Publisher
	Pool    *pgxpool.Pool // nil for the memory driver

	health  map[string]HealthCheck
	closers []func()
}

// New connects the configured store and event publisher and builds the
// service. Callers must Close the returned App.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg, health: make(map[string]HealthCheck)}

	if err := app.openStore(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.openEvents(); err != nil {
		app.Close()
		return nil, err
	}

	app.Service = core.NewService(app.Store, ServiceOptions(cfg, app.Events))
	return app, nil
}

// ServiceOptions maps configuration onto core.Options.
func ServiceOptions(cfg *config.Config, pub events.Publisher) core.Options {
	return core.Options{
		DedupeOnImport: cfg.Import.DedupePolicy(),
		MaxImports:     cfg.Import.MaxConcurrent,
		ImportWait:     cfg.Import.MaxWaitTime,
		ImportTimeout:  cfg.Import.Timeout,
		ExportPageSize: cfg.Import.ExportPageSize,
		Events:         pub,
	}
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.Database.Driver {
	case config.DriverMemory:
		a.Store = memstore.New()
		slog.Warn("using in-memory record store, data is lost on exit")
		return nil

	case config.DriverPostgres:
		pool, err := OpenPool(ctx, a.Config.Database)
		if err != nil {
			return err
		}
		a.Pool = pool
		a.closers = append(a.closers, pool.Close)

		if a.Config.Database.AutoMigrate {
			if err := postgres.Migrate(pool); err != nil {
				return err
			}
		}

		store := postgres.New(pool)
		a.Store = store
		a.health["database"] = store.Ping
		return nil

	default:
		return fmt.Errorf("unknown store driver %q", a.Config.Database.Driver)
	}
}

// OpenPool parses the database URL, applies pool limits and verifies the
// connection.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("connected to database", "name", databaseName(cfg.URL))
	return pool, nil
}

func databaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

func (a *App) openEvents() error {
	if a.Config.Events.AMQPURL == "" {
		a.Events = events.Nop{}
		return nil
	}

	pub, err := events.NewAMQPPublisher(a.Config.Events.AMQPURL, a.Config.Events.Exchange)
	if err != nil {
		return err
	}
	a.Events = pub
	a.closers = append(a.closers, func() {
		if err := pub.Close(); err != nil {
			slog.Warn("close event publisher", "error", err)
		}
	})
	a.health["events"] = func(context.Context) error {
		if !pub.Healthy() {
			return fmt.Errorf("amqp connection closed")
		}
		return nil
	}
	slog.Info("publishing events", "exchange", a.Config.Events.Exchange)
	return nil
}

// HealthChecks returns the checks for the configured dependencies, keyed by
// name.
func (a *App) HealthChecks() map[string]HealthCheck {
	out := make(map[string]HealthCheck, len(a.health))
	for k, v := range a.health {
		out[k] = v
	}
	return out
}

// Close releases dependencies in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
