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

	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/example/flashdeck/internal/ai"
	"github.com/example/flashdeck/internal/budget"
	"github.com/example/flashdeck/internal/config"
	"github.com/example/flashdeck/internal/gitsync"
	"github.com/example/flashdeck/internal/storage"
	"github.com/example/flashdeck/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment may be set another way.
	_ = godotenv.Load()

	flags := pflag.NewFlagSet("flashdeck", pflag.ExitOnError)
	configPath := flags.String("config", "flashdeck.yaml", "path to the yaml config file")
	flags.String("addr", ":8080", "address to listen on")
	flags.String("db-path", "flashdeck.db", "path to the sqlite database")
	flags.String("repos-dir", "repos", "directory for git source checkouts")
	flags.String("password", "", "shared password for the web UI (empty disables the gate)")
	flags.String("api-key", "", "Anthropic API key (empty disables generation)")
	flags.Float64("spending-limit", 10.0, "API spending limit in dollars (0 disables)")
	flags.Int("sync-minutes", 60, "minutes between source syncs (0 disables)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, flags.Changed("config"), flags)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	tracker := budget.New(db, cfg.SpendingLimit)

	var generator web.Generator
	if cfg.APIKey != "" {
		client, err := ai.New(cfg.APIKey, tracker)
		if err != nil {
			return err
		}
		generator = client
	} else {
		slog.Warn("no API key configured, generation disabled")
	}

	if cfg.SyncMinutes > 0 {
		scheduler := gocron.NewScheduler(time.UTC)
		if _, err := scheduler.Every(cfg.SyncMinutes).Minutes().Do(func() {
			if err := gitsync.RunSync(db, cfg.ReposDir, time.Now()); err != nil {
				slog.Error("scheduled sync", "error", err)
			}
		}); err != nil {
			return err
		}
		scheduler.StartAsync()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: web.NewServer(db, generator, tracker, cfg.Password, cfg.ReposDir),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
