package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/EddyMaster88/ml-affiliate-poster/internal/app"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/config"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/scheduler"
)

type server struct {
	sched *scheduler.Scheduler
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	slog.Info("Starting affiliate offers server...")

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

	interval := cfg.RunInterval
	if interval <= 0 {
		interval = time.Hour
	}
	sched := scheduler.New(func(ctx context.Context) error {
		_, err := a.Processor.Run(ctx)
		return err
	}, interval)

	srv := &server{sched: sched}

	mux := http.NewServeMux()
	mux.HandleFunc("/run", srv.runHandler)
	mux.HandleFunc("/health", srv.healthHandler)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := sched.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		slog.Info("Listening on port", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

// runHandler kicks off a cycle in the background. The scheduler rejects the
// trigger when a cycle is already in flight, so hammering the endpoint cannot
// stack runs.
func (s *server) runHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "use POST", http.StatusMethodNotAllowed)
		return
	}
	if s.sched.Status().Running {
		http.Error(w, "a cycle is already running", http.StatusConflict)
		return
	}

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("Panic in triggered run", "panic", rec)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()
		if err := s.sched.Trigger(ctx); err != nil && !errors.Is(err, scheduler.ErrBusy) {
			slog.Error("Triggered run failed", "error", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Run started.")
}

func (s *server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.sched.Status()); err != nil {
		slog.Error("Failed to encode health status", "error", err)
	}
}
