package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"feedwatch/internal/app"
	"feedwatch/internal/config"
	"feedwatch/internal/fetch"
	"feedwatch/internal/notify"
	"feedwatch/internal/pipeline"
	"feedwatch/internal/runner"
	"feedwatch/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	validate := flag.Bool("validate", false, "validate the config file and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *validate {
		slog.Info("config valid", "path", *configPath, "sources", len(cfg.Sources))
		return
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	sender, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
	if err != nil {
		log.Error("create telegram sender", "error", err)
		os.Exit(1)
	}

	fetcher := fetch.Limit(fetch.New(http.DefaultClient), cfg.FetchConcurrency)
	checker := pipeline.New(fetcher)
	r := runner.New(checker, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting feedwatch", "sources", len(cfg.Sources), "tick", cfg.Tick)

	a := app.New(cfg, store, r, sender, log)
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("run", "error", err)
		os.Exit(1)
	}

	log.Info("feedwatch stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
