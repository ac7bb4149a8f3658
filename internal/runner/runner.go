// Package runner orchestrates concurrent source checks.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feedwatch/internal/model"
	"feedwatch/internal/pipeline"
	"feedwatch/internal/seen"
	"feedwatch/internal/storage"
)

// LogEntry records the outcome of one source check. Entries appear in
// original source-list order.
type LogEntry struct {
	URL     string
	Label   string
	Message string
}

// Batch is the folded result of one orchestrator run: the per-source states
// for the next run, every composed notification, and the ordered log.
// Changed lists the URLs whose state differs from the prior run, in original
// source-list order.
type Batch struct {
	States        map[string]storage.CheckState
	Changed       []string
	Notifications []model.Notification
	Log           []LogEntry
}

// Runner runs the check pipeline over a list of sources.
type Runner struct {
	checker *pipeline.Checker
	log     *slog.Logger
}

// New creates a Runner.
func New(checker *pipeline.Checker, log *slog.Logger) *Runner {
	return &Runner{checker: checker, log: log}
}

// Run checks every source concurrently and folds the results. All pipelines
// start together; fetch concurrency is bounded by the checker's fetcher. One
// source's failure never affects another's outcome, and the fold processes
// completions in original list order regardless of which fetch finished
// first, so state and log output are deterministic for identical input.
func (r *Runner) Run(ctx context.Context, now time.Time, sources []model.Source, prior map[string]storage.CheckState) Batch {
	results := make([]pipeline.Result, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		i, src := i, src
		last, prev := priorState(prior, src.URL())
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.checker.Check(ctx, now, src, last, prev)
		}()
	}
	wg.Wait()

	batch := Batch{States: make(map[string]storage.CheckState, len(prior))}
	for url, st := range prior {
		batch.States[url] = st
	}

	for i, src := range sources {
		res := results[i]
		url := src.URL()

		var msg string
		switch res.Outcome {
		case pipeline.Uptodate:
			msg = "up to date"
		case pipeline.FetchFailed:
			msg = fmt.Sprintf("fetch error: %v", res.Err)
			r.log.Error("fetch source", "url", url, "error", res.Err)
		case pipeline.ParseFailed:
			msg = fmt.Sprintf("parse error: %v", res.Err)
			r.log.Error("parse source", "url", url, "error", res.Err)
		case pipeline.Updated:
			msg = fmt.Sprintf("%d new notifications", res.Count)
			batch.States[url] = storage.CheckState{LastUpdate: now, Seen: res.Seen}
			batch.Changed = append(batch.Changed, url)
			batch.Notifications = append(batch.Notifications, res.Notifications...)
			r.log.Debug("source updated", "url", url, "count", res.Count)
		}

		batch.Log = append(batch.Log, LogEntry{
			URL:     url,
			Label:   src.Options.Label,
			Message: msg,
		})
	}
	return batch
}

func priorState(prior map[string]storage.CheckState, url string) (*time.Time, seen.Store) {
	st, ok := prior[url]
	if !ok {
		return nil, nil
	}
	last := st.LastUpdate
	return &last, st.Seen
}
