package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"matchplayer/internal/cli"
	"matchplayer/internal/config"
	"matchplayer/internal/credentials"
	"matchplayer/internal/matchplay"
	"matchplayer/internal/repository"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return cli.ExitFailed
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	keys, closeKeys, err := credentials.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "credentials: %v\n", err)
		return cli.ExitFailed
	}
	defer closeKeys()

	client := matchplay.New(keys,
		matchplay.WithBaseURL(cfg.BaseURL),
		matchplay.WithTimeout(cfg.HTTPTimeout),
		matchplay.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return cli.Run(ctx, cli.Env{
		Repo:   repository.New(client, logger),
		Keys:   keys,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}, os.Args[1:])
}
