// Package server owns the application lifecycle: ops server, batch run and
// graceful shutdown.
package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	drepo "OptForge/internal/domain/repository"
	"OptForge/internal/usecase"
	pkgch "OptForge/pkg/clickhouse"
	"OptForge/pkg/config"
	xhttp "OptForge/pkg/http"
	applogger "OptForge/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	controller  *usecase.Controller
	sink        drepo.Sink
	chClient    *pkgch.Client
	l           *applogger.Logger
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	controller *usecase.Controller,
	sink drepo.Sink,
	chClient *pkgch.Client,
	l *applogger.Logger,
) *App {
	return &App{
		cfg:        cfg,
		controller: controller,
		sink:       sink,
		chClient:   chClient,
		l:          l,
	}
}

// SetHTTPHandler allows DI to inject the ops handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the ops server, executes one batch run and blocks until the run
// finishes or a shutdown signal arrives.
func (a *App) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithAddr("0.0.0.0", a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout),
		xhttp.WithServerLogger(a.l),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.controller.Run(ctx)
	}()
	a.l.Info("batch run started",
		applogger.String("mode", a.cfg.Pipeline.OutputMode),
		applogger.Int("workers", a.cfg.Pipeline.Workers))

	var runErr error
	select {
	case runErr = <-errCh:
		if runErr != nil {
			a.l.Error("batch run failed", applogger.Error(runErr))
		}
	case <-ctx.Done():
		a.l.Info("shutdown signal received, draining")
		runErr = <-errCh
	}

	a.shutdown()
	return runErr
}

func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Warn("http server stop error", applogger.Error(err))
		}
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.l.Warn("sink close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	a.l.Info("stopped")
}
