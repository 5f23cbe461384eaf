package server

import (
	"context"
	"fmt"
	"time"

	mid "VitalSense/internal/middleware"
	"VitalSense/internal/service/ratelimit"
	"VitalSense/internal/usecase"
	"VitalSense/pkg/cache"
	pkgch "VitalSense/pkg/clickhouse"
	"VitalSense/pkg/config"
	xhttp "VitalSense/pkg/http"
	pkgkafka "VitalSense/pkg/kafka"
	applogger "VitalSense/pkg/logger"
	"VitalSense/pkg/metrics"
)

// limiterIdle is how long an unused client bucket is kept.
const limiterIdle = 10 * time.Minute

// Infra groups the optional infrastructure clients the app must close.
// Disabled backends are nil.
type Infra struct {
	ClickHouse *pkgch.Client
	Producer   *pkgkafka.Producer
	Cache      cache.Service
}

// Ingest groups the optional reading sources besides HTTP.
type Ingest struct {
	Consumer  *pkgkafka.Consumer
	Readings  pkgkafka.MessageHandler
	Collector *usecase.ReadingCollector
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	recorder   *metrics.Recorder
	sessions   *usecase.SessionRegistry
	pipe       *mid.RealtimePipeline
	limiter    *ratelimit.Limiter
	httpServer *xhttp.Server
	ingest     Ingest
	infra      Infra
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	recorder *metrics.Recorder,
	sessions *usecase.SessionRegistry,
	pipe *mid.RealtimePipeline,
	limiter *ratelimit.Limiter,
	httpServer *xhttp.Server,
	ingest Ingest,
	infra Infra,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		recorder:   recorder,
		sessions:   sessions,
		pipe:       pipe,
		limiter:    limiter,
		httpServer: httpServer,
		ingest:     ingest,
		infra:      infra,
	}
}

// Run starts every component and blocks until ctx is cancelled or the HTTP
// server fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.pipe.Start(ctx)
	go a.sessions.Run(ctx, a.cfg.Sessions.SweepInterval, a.recorder.ForgetSubject)
	go a.sweepLimiter(ctx)

	if c := a.ingest.Collector; c != nil {
		if err := c.Start(ctx); err != nil {
			a.l.Error("device gateway start error", applogger.Error(err))
		} else {
			a.l.Info("device gateway collector started", applogger.String("url", a.cfg.DeviceGateway.URL))
		}
	}

	if a.ingest.Consumer != nil && a.ingest.Readings != nil {
		a.ingest.Consumer.RegisterHandler(a.ingest.Readings)
		if err := a.ingest.Consumer.Start(ctx); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.ingest.Readings.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case runErr = <-a.httpServer.Errors():
		a.l.Error("http server failed", applogger.Error(runErr))
	}
	cancel()

	a.shutdown()
	return runErr
}

func (a *App) sweepLimiter(ctx context.Context) {
	t := time.NewTicker(limiterIdle)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.limiter.Sweep(limiterIdle)
		}
	}
}

// shutdown stops intake first, then drains and closes the backends.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	if a.ingest.Collector != nil {
		if err := a.ingest.Collector.Stop(); err != nil {
			a.l.Warn("device gateway stop error", applogger.Error(err))
		}
	}
	if a.ingest.Consumer != nil {
		if err := a.ingest.Consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.pipe.Stop()
	if n := a.pipe.Pending(); n > 0 {
		a.l.Warn("assessments left undelivered", applogger.Int("count", n))
	}

	// the log collector flushes through the producer
	a.l.RemoveCollector()
	if a.infra.Producer != nil {
		if err := a.infra.Producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.infra.ClickHouse != nil {
		if err := a.infra.ClickHouse.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.infra.Cache != nil {
		if err := a.infra.Cache.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
		}
	}
	a.l.Info("shutdown complete")
}
