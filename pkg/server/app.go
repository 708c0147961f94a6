package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"LevelCast/internal/handler/api"
	"LevelCast/internal/usecase"
	pkgch "LevelCast/pkg/clickhouse"
	"LevelCast/pkg/config"
	xhttp "LevelCast/pkg/http"
	pkgkafka "LevelCast/pkg/kafka"
	applogger "LevelCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// App encapsulates the entire application lifecycle. It owns the shared
// Kafka producer and closes it exactly once on shutdown.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	orch       *usecase.StreamOrchestrator
	rest       *api.StreamEchoHandler
	ws         *api.StreamWSHandler
	producer   *pkgkafka.Producer
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. producer, consumer,
// kh, and chClient may be nil when the corresponding backends are disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	orch *usecase.StreamOrchestrator,
	rest *api.StreamEchoHandler,
	ws *api.StreamWSHandler,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		l:        l,
		orch:     orch,
		rest:     rest,
		ws:       ws,
		producer: producer,
		consumer: consumer,
		kh:       kh,
		chClient: chClient,
	}
}

// RegisterRoutes wires both handlers onto one Echo instance.
func (a *App) RegisterRoutes(e *echo.Echo) {
	a.rest.RegisterRoutes(e)
	a.ws.RegisterRoutes(e)
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start the stream loop
	go func() {
		if err := a.orch.Run(ctx); err != nil && ctx.Err() == nil {
			a.l.Error("stream orchestrator stopped", applogger.Error(err))
		}
	}()
	a.l.Info("stream orchestrator started", applogger.String("contract", a.cfg.Market.ContractID))

	// Start archive consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.orch.Close()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.RemoveCollector()
	a.l.Info("shutdown complete")
	return nil
}
