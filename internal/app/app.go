// Package app ties the check orchestrator to persistence and delivery and
// drives the periodic run loop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feedwatch/internal/config"
	"feedwatch/internal/model"
	"feedwatch/internal/runner"
	"feedwatch/internal/storage"
)

// Sender delivers a single notification.
type Sender interface {
	Send(n model.Notification) error
}

// App runs check cycles on a timer.
type App struct {
	cfg    *config.Config
	store  storage.Storage
	runner *runner.Runner
	sender Sender
	log    *slog.Logger
}

// New creates an App.
func New(cfg *config.Config, store storage.Storage, r *runner.Runner, sender Sender, log *slog.Logger) *App {
	return &App{cfg: cfg, store: store, runner: r, sender: sender, log: log}
}

// Run starts the periodic loop, blocking until ctx is cancelled. A cycle runs
// immediately on start; refresh rules decide per source whether anything is
// actually fetched.
func (a *App) Run(ctx context.Context) error {
	if err := a.RunOnce(ctx, time.Now().UTC()); err != nil {
		a.log.Error("check cycle", "error", err)
	}

	ticker := time.NewTicker(a.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.RunOnce(ctx, time.Now().UTC()); err != nil {
				a.log.Error("check cycle", "error", err)
			}
		}
	}
}

// RunOnce performs one full cycle at time now: check every source, persist
// the changed states, then deliver the carried-over unsent notifications
// followed by this cycle's new ones. Delivery failures are requeued as
// unsent for the next cycle.
func (a *App) RunOnce(ctx context.Context, now time.Time) error {
	states, err := a.store.LoadStates(ctx)
	if err != nil {
		return fmt.Errorf("load states: %w", err)
	}

	batch := a.runner.Run(ctx, now, a.cfg.Sources, states)

	for _, entry := range batch.Log {
		a.log.Debug("source checked", "url", entry.URL, "label", entry.Label, "result", entry.Message)
	}

	for _, url := range batch.Changed {
		if err := a.store.ReplaceState(ctx, url, batch.States[url]); err != nil {
			return fmt.Errorf("replace state for %s: %w", url, err)
		}
	}

	unsent, err := a.store.LoadUnsent(ctx)
	if err != nil {
		return fmt.Errorf("load unsent: %w", err)
	}

	pending := append(unsent, batch.Notifications...)
	var failed []model.Notification
	for _, n := range pending {
		if ctx.Err() != nil {
			failed = append(failed, n)
			continue
		}
		if err := a.sender.Send(n); err != nil {
			a.log.Error("deliver notification", "sender", n.Sender, "subject", n.Subject, "error", err)
			failed = append(failed, n)
		}
	}

	if err := a.store.ReplaceUnsent(ctx, failed); err != nil {
		return fmt.Errorf("replace unsent: %w", err)
	}

	if len(pending) > 0 {
		a.log.Info("cycle complete",
			"sources", len(a.cfg.Sources),
			"updated", len(batch.Changed),
			"delivered", len(pending)-len(failed),
			"requeued", len(failed),
		)
	}
	return nil
}
