package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"resume-insight/internal/bootstrap"
	"resume-insight/internal/shared/config"
	"resume-insight/internal/shared/server"
	"resume-insight/internal/shared/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	closeLogs, err := telemetry.Init(telemetry.Options{Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		log.Fatalf("init logging: %v", err)
	}
	defer closeLogs()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		telemetry.Error("api.bootstrap_failed", map[string]any{"error": err.Error()})
		closeLogs()
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: server.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		telemetry.Info("api.listening", map[string]any{"addr": srv.Addr, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if app.Sweeper != nil {
		g.Go(func() error {
			return app.Sweeper.Run(gctx, cfg.Cache.SweepInterval)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		telemetry.Info("api.shutting_down", map[string]any{"timeout": cfg.ShutdownTimeout.String()})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			telemetry.Warn("api.shutdown_error", map[string]any{"error": err.Error()})
		}
		if err := app.Analyses.Drain(shutdownCtx); err != nil {
			telemetry.Warn("api.drain_incomplete", map[string]any{"error": err.Error()})
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		telemetry.Error("api.server_error", map[string]any{"error": err.Error()})
		closeLogs()
		os.Exit(1)
	}
	telemetry.Info("api.stopped", nil)
}
