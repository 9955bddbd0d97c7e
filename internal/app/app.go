package app

import (
	"context"
	"log/slog"

	cfg "github.com/webitel/grade-exporter/config"
	cache "github.com/webitel/grade-exporter/internal/cache/redis"
	"github.com/webitel/grade-exporter/internal/errors"
	"github.com/webitel/grade-exporter/internal/eventbus"
	"github.com/webitel/grade-exporter/internal/export"
	"github.com/webitel/grade-exporter/internal/server"
	sinkpg "github.com/webitel/grade-exporter/internal/sink/postgres"
	sourcepg "github.com/webitel/grade-exporter/internal/source/postgres"
	"github.com/webitel/grade-exporter/internal/store"
	"github.com/webitel/grade-exporter/internal/store/postgres"
)

type App struct {
	Config   *cfg.AppConfig
	exitCh   chan error
	shutdown func(ctx context.Context) error

	Store  store.Store
	Source *sourcepg.Source
	Sink   *sinkpg.Sink
	Cache  *cache.RedisCache
	Bus    *eventbus.Bus

	Queries  *QueryService
	Exporter *ExporterService

	engine    *export.Engine
	scheduler *Scheduler
	forwarder *eventbus.Forwarder
	server    *server.Server
}

// New creates a fully initialized App.
func New(config *cfg.AppConfig, shutdown func(ctx context.Context) error) (*App, error) {
	app := &App{
		Config:   config,
		shutdown: shutdown,
		exitCh:   make(chan error),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}
	if err := app.initRedis(); err != nil {
		return nil, err
	}
	if err := app.initBus(); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		return nil, err
	}
	if err := app.initServer(); err != nil {
		return nil, err
	}

	return app, nil
}

// --------- Private init methods ---------

func (app *App) initStore() error {
	if app.Config.Database == nil {
		return errors.New("database config is nil")
	}
	app.Store = postgres.New(app.Config.Database)
	app.Source = sourcepg.New(app.Config.Source)
	app.Sink = sinkpg.New(app.Config.Sink)
	return nil
}

func (app *App) initRedis() error {
	redisCache, err := cache.NewRedisCache(app.Config.Redis.Addr, app.Config.Redis.Password, app.Config.Redis.DB)
	if err != nil {
		return errors.New("unable to initialize Redis", errors.WithCause(err))
	}
	app.Cache = redisCache
	return nil
}

func (app *App) initBus() error {
	app.Bus = eventbus.New()

	if app.Config.Nats != nil && app.Config.Nats.Addr != "" {
		forwarder, err := eventbus.NewForwarder(app.Config.Nats.Addr)
		if err != nil {
			return errors.New("unable to initialize NATS forwarder", errors.WithCause(err))
		}
		forwarder.Attach(app.Bus)
		app.forwarder = forwarder
	}

	return nil
}

func (app *App) initServices() error {
	app.engine = export.NewEngine(app.Source, app.Sink, app.Bus, app.Config.Source.Roles, slog.Default())

	queries, err := NewQueryService(app.Store.Query(), app.Source, app.Bus, slog.Default())
	if err != nil {
		return err
	}
	app.Queries = queries

	exporter, err := NewExporterService(app.engine, app.Store.Query(), app.Store.History(), app.Cache, slog.Default())
	if err != nil {
		return err
	}
	app.Exporter = exporter

	scheduler, err := NewScheduler(app.Config.Export.Schedule, app.Store.Query(), app.Exporter, slog.Default())
	if err != nil {
		return err
	}
	app.scheduler = scheduler

	return nil
}

func (app *App) initServer() error {
	srv, err := server.BuildServer(app.Config.Consul, app.exitCh)
	if err != nil {
		return errors.New("failed to build server", errors.WithCause(err))
	}
	app.server = srv
	return nil
}

// Start runs DB connections, the gRPC server, the scheduler and the
// background workers.
func (app *App) Start(ctx context.Context) error {
	if err := app.Store.Open(); err != nil {
		return errors.New("failed to open store", errors.WithCause(err))
	}
	if err := app.Source.Open(); err != nil {
		return errors.New("failed to open gradebook source", errors.WithCause(err))
	}
	if err := app.Sink.Open(); err != nil {
		return errors.New("failed to open sink", errors.WithCause(err))
	}

	go app.server.Start()
	app.StartExportWorker(ctx)
	app.scheduler.Start()

	return <-app.exitCh
}

// Stop gracefully shuts down all services
func (app *App) Stop() error {
	slog.Info("grade_exporter.main.stop_starting")

	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if app.server != nil {
		app.server.Stop()
		slog.Info("server stopped")
	}

	if app.forwarder != nil {
		app.forwarder.Close()
		slog.Info("nats forwarder closed")
	}

	if app.Sink != nil {
		if err := app.Sink.Close(); err != nil {
			slog.Error("sink close error", "err", err)
		}
	}
	if app.Source != nil {
		if err := app.Source.Close(); err != nil {
			slog.Error("source close error", "err", err)
		}
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			slog.Error("store close error", "err", err)
		}
	}

	if app.shutdown != nil {
		if err := app.shutdown(context.Background()); err != nil {
			slog.Error("shutdown hook error", "err", err)
		} else {
			slog.Info("shutdown hook executed")
		}
	}

	slog.Info("grade_exporter.main.stop_complete")
	return nil
}
