// Package pipeline implements the per-source check algorithm shared by all
// source kinds.
package pipeline

import (
	"context"
	"time"

	"feedwatch/internal/fetch"
	"feedwatch/internal/filter"
	"feedwatch/internal/model"
	"feedwatch/internal/parse"
	"feedwatch/internal/refresh"
	"feedwatch/internal/seen"
)

// Outcome classifies the result of one source check.
type Outcome int

// Check outcomes.
const (
	Uptodate Outcome = iota
	FetchFailed
	ParseFailed
	Updated
)

// Result is the outcome of checking one source. Seen and Notifications are
// only set for Updated; Err carries the failure detail for FetchFailed and
// ParseFailed. On failure the caller must leave the source's prior state
// untouched so the next scheduled run retries naturally.
type Result struct {
	Outcome       Outcome
	Err           error
	Seen          seen.Store
	Notifications []model.Notification
	Count         int
}

// Checker runs source checks against a fetch capability. The parse and
// compose capabilities are selected per source from its descriptor kind.
type Checker struct {
	fetcher fetch.Fetcher
}

// New creates a Checker using the given fetcher.
func New(f fetch.Fetcher) *Checker {
	return &Checker{fetcher: f}
}

// Check runs one check of src at time now. last is the time of the previous
// successful check (nil on the source's first check ever) and prev the
// source's seen-entry store from that check.
func (c *Checker) Check(ctx context.Context, now time.Time, src model.Source, last *time.Time, prev seen.Store) Result {
	opts := src.Options
	url := src.URL()

	if !refresh.Due(now, last, opts.Refresh) {
		return Result{Outcome: Uptodate}
	}

	raw, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return Result{Outcome: FetchFailed, Err: err}
	}

	feed, err := parseContent(src.Descriptor.Leaf(), raw, url)
	if err != nil {
		return Result{Outcome: ParseFailed, Err: err}
	}

	// Entries without a stable identifier cannot be deduplicated and are
	// excluded from both seen-tracking and output.
	var observed []string
	var fresh []model.Entry
	for _, e := range feed.Entries {
		if e.ID == "" {
			continue
		}
		observed = append(observed, e.ID)
		if !prev.Contains(e.ID) && filter.Pass(opts.Filters, e) {
			fresh = append(fresh, e)
		}
	}

	// All observed identifiers go into the store, filtered or not, so a
	// later filter change cannot resurrect entries already recorded.
	store := seen.Record(now, observed, prev)

	sender := model.SenderName(opts, feed.Title, url)
	notifs := compose(src.Descriptor.Kind, sender, opts, fresh)

	if last == nil {
		// First check of a brand-new source: persist the store but do not
		// flood the destination with the whole backlog.
		notifs = nil
	}

	return Result{
		Outcome:       Updated,
		Seen:          store,
		Notifications: notifs,
		Count:         len(notifs),
	}
}

func parseContent(leaf *model.Descriptor, raw []byte, base string) (*model.Feed, error) {
	if leaf.Kind == model.KindScraped {
		return leaf.Scraper.Run(raw, base)
	}
	return parse.Feed(raw, base)
}
