package server

import (
	"context"
	"os/signal"
	"syscall"

	"CoveredCall/pkg/config"
	xhttp "CoveredCall/pkg/http"
	pkgkafka "CoveredCall/pkg/kafka"
	applogger "CoveredCall/pkg/logger"
	"CoveredCall/pkg/queue"
)

// App runs the HTTP API and, when configured, the job queue workers and the event consumer.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	handler    xhttp.Handler
	queue      *queue.RedisQueue
	consumer   *pkgkafka.Consumer
	httpServer *xhttp.Server
}

// New creates a new App. q and consumer may be nil.
func New(cfg *config.Config, l *applogger.Logger, handler xhttp.Handler, q *queue.RedisQueue, consumer *pkgkafka.Consumer) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, handler: handler, queue: q, consumer: consumer}
}

// Run starts the application and blocks until ctx is cancelled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.l.Error("queue start error", applogger.Error(err))
			return err
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(a.cfg.Server.CORS),
		xhttp.WithCORSOrigins(a.cfg.Server.CORSOrigins),
		xhttp.WithMetrics(a.cfg.Metrics.Enabled, a.cfg.Metrics.Path),
		xhttp.WithLogger(a.l),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		a.stopWorkers()
		return err
	}
	a.l.Info("app started",
		applogger.String("environment", a.cfg.Environment),
		applogger.String("storage", a.cfg.Storage.Backend),
		applogger.Bool("queue", a.queue != nil),
		applogger.Bool("consumer", a.consumer != nil))

	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
		return a.shutdown()
	case err := <-a.httpServer.Err():
		_ = a.shutdown()
		return err
	}
}

// shutdown stops the HTTP server first so no new jobs are enqueued, then drains the workers.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	a.stopWorkersCtx(ctx)
	a.l.Info("shutdown complete")
	return nil
}

func (a *App) stopWorkers() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.stopWorkersCtx(ctx)
}

// stopWorkersCtx drains in-flight jobs and events. Both are safe to stop when never started.
func (a *App) stopWorkersCtx(ctx context.Context) {
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.l.Warn("queue stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
}
