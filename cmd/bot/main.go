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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"matchplayer/internal/config"
	"matchplayer/internal/credentials"
	"matchplayer/internal/matchplay"
	"matchplayer/internal/repository"
	"matchplayer/internal/server"
	"matchplayer/internal/sheets"
	"matchplayer/internal/tgbot"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.ValidateBot(); err != nil {
		logger.Error("config", slog.Any("error", err))
		os.Exit(1)
	}

	keys, closeKeys, err := credentials.Open(cfg)
	if err != nil {
		logger.Error("credentials", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := closeKeys(); err != nil {
			logger.Warn("close credentials", slog.Any("error", err))
		}
	}()

	client := matchplay.New(keys,
		matchplay.WithBaseURL(cfg.BaseURL),
		matchplay.WithTimeout(cfg.HTTPTimeout),
		matchplay.WithLogger(logger),
	)
	repo := repository.New(client, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exporter tgbot.Exporter
	if cfg.SheetsEnabled() {
		sh, err := sheets.New(ctx, cfg.GoogleServiceAccountJSON, cfg.SpreadsheetID)
		if err != nil {
			logger.Error("sheets", slog.Any("error", err))
			os.Exit(1)
		}
		exporter = sh
		logger.Info("spreadsheet export enabled", slog.String("spreadsheet_id", sh.SpreadsheetID()))
	}

	botApp, err := tgbot.New(cfg, repo, keys, exporter, logger)
	if err != nil {
		logger.Error("telegram", slog.Any("error", err))
		os.Exit(1)
	}

	httpSrv := server.New(cfg, repo, keys, logger).HTTPServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP listening", slog.String("address", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return botApp.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("bye")
}
