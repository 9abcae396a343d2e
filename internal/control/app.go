// Package control wires configuration into a running App.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/queryplane/internal/core/config"
	"github.com/vietddude/queryplane/internal/core/worker"
	"github.com/vietddude/queryplane/internal/health"
	"github.com/vietddude/queryplane/internal/infra/api"
	redisclient "github.com/vietddude/queryplane/internal/infra/redis"
	"github.com/vietddude/queryplane/internal/infra/storage"
	"github.com/vietddude/queryplane/internal/infra/storage/memory"
	"github.com/vietddude/queryplane/internal/infra/storage/postgres"
	"github.com/vietddude/queryplane/internal/query"
)

// App owns the query client and everything around it. It replaces any
// package-level state: create one with NewApp and pass it where needed.
type App struct {
	cfg *config.AppConfig

	Client      *query.Client
	Service     *api.Service
	Escalations storage.EscalationRepository

	transport    *api.Transport
	sweeper      *query.Sweeper
	pruner       *worker.Pruner
	healthMon    *health.Monitor
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewApp creates an App with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: slog.Default()}

	// 1. Escalation sink
	escalations, err := a.openSink(ctx)
	if err != nil {
		return nil, err
	}
	a.Escalations = escalations

	// 2. Transport
	transport, err := api.NewTransport(cfg.API)
	if err != nil {
		a.closeSinks()
		return nil, fmt.Errorf("failed to init api transport: %w", err)
	}
	a.transport = transport

	// 3. Query client and service
	policy := cfg.Escalation.Policy()
	a.Client = query.NewClient(query.Options{
		Cache:      cfg.Query.CacheOptions(),
		Retry:      cfg.Retry,
		Escalation: &policy,
		Escalator:  escalations,
		Logger:     a.log,
	})
	a.Service = api.NewService(transport, a.Client)

	// 4. Background workers
	a.sweeper = query.NewSweeper(a.Client, cfg.Query.SweepInterval)
	a.pruner = worker.NewPruner(cfg.Escalation.Retention, escalations)

	// 5. Health
	a.healthMon = health.NewMonitor(a.Client, transport.Monitor, escalations, health.Thresholds{})
	if a.redisClient != nil {
		a.healthMon.AddDependency("redis", a.redisClient)
	}
	if a.db != nil {
		a.healthMon.AddDependency("postgres", a.db)
	}
	a.healthServer = health.NewServer(a.healthMon, cfg.Server.Port)

	return a, nil
}

func (a *App) openSink(ctx context.Context) (storage.EscalationRepository, error) {
	switch a.cfg.Escalation.Sink {
	case config.SinkRedis:
		client, err := redisclient.NewClient(a.cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		a.redisClient = client
		a.log.Info("Using Redis escalation sink")
		return redisclient.NewEscalationRepo(client, a.cfg.Redis.TTL), nil

	case config.SinkPostgres:
		db, err := postgres.NewDB(ctx, a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		a.log.Info("Using PostgreSQL escalation sink")
		return postgres.NewEscalationRepo(db), nil

	default:
		a.log.Info("Using memory escalation sink")
		return memory.NewEscalationRepo(a.cfg.Escalation.Capacity), nil
	}
}

// Start runs the health server and background workers until Stop or until
// ctx is done.
func (a *App) Start(ctx context.Context) error {
	if a.group != nil {
		return errors.New("app already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	a.group = g

	g.Go(func() error {
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		a.sweeper.Start(gctx)
		return nil
	})

	g.Go(func() error {
		a.pruner.Start(gctx)
		return nil
	})

	if a.db != nil {
		a.db.StartMetricsCollector(gctx)
	}

	a.log.Info("App started", "port", a.cfg.Server.Port, "api", a.cfg.API.BaseURL)
	return nil
}

// Stop stops background work and releases connections. It is safe to call
// on an App that was never started.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping App...")

	var errs []error
	if a.group != nil {
		a.cancel()
		if err := a.healthServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health server: %w", err))
		}
		if err := a.group.Wait(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := a.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, a.closeSinks()...)
	return errors.Join(errs...)
}

func (a *App) closeSinks() []error {
	var errs []error
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
			errs = append(errs, err)
		}
	}
	return errs
}

// Health returns the current health report.
func (a *App) Health(ctx context.Context) health.Report {
	return a.healthMon.CheckHealth(ctx)
}
