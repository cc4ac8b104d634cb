// @title           Taskflow API
// @version         1.0
// @description     Tasks, projects and notifications with bearer-token auth.
// @BasePath        /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskflow/internal/app"
	"taskflow/internal/config"
	"taskflow/internal/logctx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log := logctx.New(cfg.App.Env)
	slog.SetDefault(log)
	log.Info("config loaded, connecting to DB and Redis", slog.String("env", cfg.App.Env), slog.String("version", cfg.App.Version))

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("app init", slog.String("err", err.Error()))
		os.Exit(1)
	}
	application.StartWorkers()

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTP.Port,
		Handler:      application.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout.Duration(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Duration(),
		IdleTimeout:  cfg.HTTP.IdleTimeout.Duration(),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		log.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("HTTP server error", slog.String("err", err.Error()))
		exitCode = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP shutdown", slog.String("err", err.Error()))
		exitCode = 1
	}
	if err := application.Close(ctx); err != nil {
		log.Error("app close", slog.String("err", err.Error()))
		exitCode = 1
	}
	os.Exit(exitCode)
}
