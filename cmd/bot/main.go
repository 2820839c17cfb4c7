package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/EddyMaster88/ml-affiliate-poster/internal/app"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/config"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/scheduler"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("Critical error assembling pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	run := func(ctx context.Context) error {
		_, err := a.Processor.Run(ctx)
		return err
	}

	// With no interval the bot is a one-shot job (cron friendly); with one it
	// stays up and polls.
	if cfg.RunInterval <= 0 {
		if err := run(ctx); err != nil {
			slog.Error("Run finished with errors", "error", err)
			os.Exit(1)
		}
		return
	}

	sched := scheduler.New(run, cfg.RunInterval)
	if err := sched.Start(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Scheduler stopped unexpectedly", "error", err)
		os.Exit(1)
	}
}
