package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mid "UrbanPull/internal/middleware"
	"UrbanPull/internal/usecase"
	"UrbanPull/pkg/config"
	xhttp "UrbanPull/pkg/http"
	pkgkafka "UrbanPull/pkg/kafka"
	applogger "UrbanPull/pkg/logger"
	"UrbanPull/pkg/queue"
)

// App encapsulates the entire application lifecycle. collector, consumer
// and refresh are optional and may be nil.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	pipe       *mid.RealtimePipeline
	proc       *usecase.SnapshotProcessor
	collector  *usecase.IndicatorCollector
	consumer   *pkgkafka.Consumer
	refresh    *queue.RedisQueue
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	pipe *mid.RealtimePipeline,
	proc *usecase.SnapshotProcessor,
	collector *usecase.IndicatorCollector,
	consumer *pkgkafka.Consumer,
	refresh *queue.RedisQueue,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        l,
		httpServer: httpServer,
		pipe:       pipe,
		proc:       proc,
		collector:  collector,
		consumer:   consumer,
		refresh:    refresh,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Start launches every component. Optional components that fail to start
// are logged and skipped; the HTTP server failing to start is fatal.
func (a *App) Start(ctx context.Context) error {
	// The pipeline also serves on-demand queries, so it runs even without a collector.
	a.pipe.Start(ctx)

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.log.Error("collector error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.cfg.Kafka.Topic))
		}
	}

	if a.refresh != nil {
		if err := a.refresh.Start(); err != nil {
			a.log.Error("refresh queue error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	a.log.Info("urbanpull started",
		applogger.String("backend", a.proc.Backend()),
		applogger.String("storage", a.cfg.Storage.Type),
		applogger.String("cache", a.cfg.Cache.Type),
		applogger.Bool("collector", a.collector != nil),
		applogger.Bool("consumer", a.consumer != nil),
		applogger.Bool("refresh_queue", a.refresh != nil),
	)
	return nil
}

// Shutdown stops intake first (HTTP, queue, collector), then drains the
// pipeline and the consumer, then closes the processor's backends.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.refresh != nil {
		if err := a.refresh.Stop(ctx); err != nil {
			a.log.Warn("refresh queue stop error", applogger.Error(err))
		}
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}
	a.pipe.Stop()
	if n := a.pipe.Buffered(); n > 0 {
		a.log.Warn("snapshots left undelivered in pipeline buffer", applogger.Int("count", n))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.proc.Close()

	a.log.Info("shutdown complete")
	return nil
}
