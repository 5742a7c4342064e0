package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/csvnome/internal/config"
	"github.com/JonMunkholm/csvnome/internal/core"
	"github.com/JonMunkholm/csvnome/internal/history"
	"github.com/JonMunkholm/csvnome/internal/logging"
	"github.com/JonMunkholm/csvnome/internal/web"
)

func main() {
	// Overload lets .env win over variables already set in the shell.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"column", cfg.Processing.Column,
		"default_save_name", cfg.Processing.DefaultSaveName,
		"history_db", cfg.Database.Enabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	rec, closeHistory, err := history.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open history", "error", err)
		os.Exit(1)
	}
	defer closeHistory()

	service := core.NewService(cfg, rec)
	server := web.NewServer(cfg, service)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if n := service.Active(); n > 0 {
			slog.Info("waiting for loads and saves to complete", "active", n)
			if err := service.WaitForIdle(shutdownCtx); err != nil {
				slog.Warn("operations did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("open the UI in a browser", "url", "http://"+cfg.Server.Addr()+"/")
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		closeHistory()
		os.Exit(1)
	}
	slog.Info("server stopped")
}
