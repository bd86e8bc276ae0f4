package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"SignalPilot/internal/domain/repository"
	mid "SignalPilot/internal/middleware"
	"SignalPilot/internal/services/strategy"
	"SignalPilot/internal/usecase"
	"SignalPilot/pkg/config"
	xhttp "SignalPilot/pkg/http"
	pkgkafka "SignalPilot/pkg/kafka"
	applogger "SignalPilot/pkg/logger"
	"SignalPilot/pkg/queue"
)

// Components are the long running parts of the application. Collector,
// Consumer, Live and Queue may be nil when disabled by configuration.
type Components struct {
	Collector *usecase.SignalCollector
	Pipeline  *mid.IngestPipeline
	Consumer  *pkgkafka.Consumer
	Handlers  []pkgkafka.MessageHandler
	Live      *usecase.LiveTrader
	State     *strategy.State
	Queue     *queue.RedisQueue
	Handler   xhttp.Handler
	Store     repository.SignalStore
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	c          Components
	httpServer *xhttp.Server
	wg         sync.WaitGroup

	// ConfigPath enables hot reload of the strategy thresholds when set.
	ConfigPath string
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, c: c}
}

// Run starts the application and blocks until interrupted or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []xhttp.ServerOption{
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.l),
		xhttp.WithHealthCheck("store", a.c.Store.Health),
	}
	if !a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(""))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(a.cfg.Metrics.Path))
	}
	if a.c.Collector != nil {
		opts = append(opts, xhttp.WithHealthCheck("collector", func(context.Context) error {
			if !a.c.Collector.IsConnected() {
				return errors.New("message source disconnected")
			}
			return nil
		}))
	}
	a.httpServer = xhttp.NewServer(a.c.Handler, opts...)

	a.c.Pipeline.Start(ctx)

	if a.c.Queue != nil {
		if err := a.c.Queue.Start(ctx); err != nil {
			return fmt.Errorf("job queue: %w", err)
		}
		a.l.Info("simulation queue started", applogger.Int("workers", a.cfg.Queue.Workers))
	}

	if a.c.Consumer != nil {
		for _, h := range a.c.Handlers {
			a.c.Consumer.RegisterHandler(h)
		}
		if err := a.c.Consumer.Start(ctx); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
	}

	if a.c.Collector != nil {
		if err := a.c.Collector.Start(ctx); err != nil {
			a.l.Error("collector start failed", applogger.Error(err))
		} else {
			a.l.Info("collector started", applogger.String("mode", a.cfg.Telegram.Mode), applogger.String("group", a.cfg.Telegram.Group))
		}
	}

	if a.c.Live != nil {
		a.wg.Add(1)
		go a.runLive(ctx)
	}

	if a.ConfigPath != "" && a.c.State != nil {
		a.wg.Add(1)
		go a.watchConfig(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case runErr = <-a.httpServer.Errors():
		a.l.Error("http server failed", applogger.Error(runErr))
		stop()
	}
	a.shutdown()
	return runErr
}

// runLive runs one trading session per day until ctx is done.
func (a *App) runLive(ctx context.Context) {
	defer a.wg.Done()
	for ctx.Err() == nil {
		report, err := a.c.Live.Run(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				a.l.Error("live trader stopped", applogger.Error(err))
			}
			return
		}
		if report != nil {
			a.l.Info("session report",
				applogger.String("session", report.ID),
				applogger.Int("signals", report.SignalStats.Total),
				applogger.Float64("win_rate", report.SignalStats.WinRate),
			)
		}
	}
}

func (a *App) watchConfig(ctx context.Context) {
	defer a.wg.Done()
	err := config.Watch(ctx, a.ConfigPath, func(c *config.Config) {
		if v := c.Strategy.ChangeThreshold; v != a.c.State.Threshold() {
			a.c.State.SetThreshold(v)
			a.l.Info("strategy change threshold reloaded", applogger.Float64("threshold", v))
		}
	}, func(err error) {
		a.l.Warn("config reload failed", applogger.Error(err))
	})
	if err != nil {
		a.l.Warn("config watch disabled", applogger.Error(err))
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() {
	a.l.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	if a.c.Collector != nil {
		if err := a.c.Collector.Shutdown(ctx); err != nil {
			a.l.Warn("collector stop error", applogger.Error(err))
		}
	}
	a.c.Pipeline.Stop()
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.c.Queue != nil {
		if err := a.c.Queue.Stop(ctx); err != nil {
			a.l.Warn("queue stop error", applogger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(a.cfg.Server.ShutdownTimeout):
		a.l.Warn("background tasks did not stop in time")
	}
	a.l.Info("shutdown complete")
}
