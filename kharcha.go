// Package kharcha wires the expense tracker together: configuration,
// the document store backend, authentication, and the domain services.
// A host application builds one App and drives everything through its
// fields.
package kharcha

import (
	"context"
	"fmt"

	"kharcha/internal/amqp"
	"kharcha/internal/auth"
	"kharcha/internal/backend"
	"kharcha/internal/config"
	"kharcha/internal/core"
	"kharcha/internal/delivery"
	"kharcha/internal/expense"
	"kharcha/internal/log"
	"kharcha/internal/notify"
	"kharcha/internal/report"
	"kharcha/internal/scope"
	"kharcha/internal/store"
	"kharcha/internal/users"
	"kharcha/internal/worker"
)

// App is the composed application. All services share one store and one
// session; sign-out resets the cached per-viewer state.
type App struct {
	Config *config.Config
	Logger *log.Logger
	Store  store.Store

	Session  *auth.Session
	Resolver *scope.Resolver
	Users    *users.Service
	Expenses *expense.Service
	Reports  *report.Service
	Stats    *report.StatsCache
	Notices  *notify.Service
	Tracker  *delivery.Tracker
	Worker   *worker.NotificationWorker

	queue       *amqp.Client
	cleanup     backend.CleanupFunc
	unsubscribe func()
}

// New loads configuration from the environment and composes the
// application. The AMQP broker is optional: when the URL is set but the
// broker is unreachable, the app comes up without fan-out instead of
// failing.
func New(ctx context.Context) (*App, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig composes the application from an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	logger := log.Setup(cfg.LogLevel, cfg.LogFormat)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   result.Store,
		cleanup: result.Cleanup,
	}

	if cfg.AMQPURL != "" {
		queue, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WarnContext(ctx, "AMQP broker unavailable, notifications stay local",
				log.FieldError, err)
		} else {
			app.queue = queue
		}
	}

	app.Resolver = scope.NewResolver(app.Store)
	app.Users = users.NewService(app.Store)
	if app.queue != nil {
		app.Notices = notify.NewService(app.Store, app.queue)
		app.Worker = worker.NewNotificationWorker(app.Store, app.queue)
	} else {
		app.Notices = notify.NewService(app.Store, nil)
	}
	app.Expenses = expense.NewService(app.Store, app.Notices)
	app.Reports = report.NewService(app.Store, app.Resolver, app.Users, loc)
	app.Stats = report.NewStatsCache(app.Reports)
	app.Tracker = delivery.NewTracker(app.Store, app.Resolver)

	verifier := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTDuration)
	app.Session = auth.NewSession(verifier, app.Store, app.Users)
	app.unsubscribe = app.Session.Subscribe(func(user *core.AppUser) {
		if user == nil {
			app.Stats.Reset()
			app.Resolver.Invalidate()
			return
		}
		app.Stats.Refresh(ctx, *user)
	})

	return app, nil
}

// RunWorker drains the notification queue until ctx is cancelled. It is
// a no-op without a connected broker.
func (a *App) RunWorker(ctx context.Context) error {
	if a.Worker == nil {
		return nil
	}
	return a.Worker.Run(ctx)
}

// Close releases the broker connection and the store.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.queue != nil {
		a.queue.Close()
	}
	if a.cleanup != nil {
		return a.cleanup()
	}
	return nil
}
