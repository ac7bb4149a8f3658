package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"feedwatch/internal/model"
	"feedwatch/internal/pipeline"
	"feedwatch/internal/storage"
)

var now = time.Date(2025, time.March, 5, 10, 0, 0, 0, time.UTC)

type fetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

func rss(feedTitle string, ids ...string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0"?><rss version="2.0"><channel><title>%s</title>`, feedTitle)
	for _, id := range ids {
		fmt.Fprintf(&b, "<item><guid>%s</guid><title>Post %s</title></item>", id, id)
	}
	b.WriteString("</channel></rss>")
	return []byte(b.String())
}

func source(url string) model.Source {
	return model.Source{
		Descriptor: model.Descriptor{Kind: model.KindPlain, URL: url},
		Options: model.Options{
			Refresh: model.RefreshRule{Kind: model.RuleEvery, Every: time.Hour},
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunIsolatesFailuresAndKeepsOrder(t *testing.T) {
	sources := []model.Source{
		source("https://one.example.com/rss"),
		source("https://two.example.com/rss"),
		source("https://three.example.com/rss"),
	}

	f := fetcherFunc(func(_ context.Context, url string) ([]byte, error) {
		switch {
		case strings.Contains(url, "one"):
			return rss("One", "a1"), nil
		case strings.Contains(url, "two"):
			return nil, errors.New("connection reset")
		default:
			// Delay the last fetch so completion order differs from
			// source-list order.
			time.Sleep(20 * time.Millisecond)
			return rss("Three", "c1"), nil
		}
	})

	last := now.Add(-2 * time.Hour)
	prior := map[string]storage.CheckState{
		"https://one.example.com/rss":   {LastUpdate: last, Seen: map[string]time.Time{}},
		"https://two.example.com/rss":   {LastUpdate: last, Seen: map[string]time.Time{}},
		"https://three.example.com/rss": {LastUpdate: last, Seen: map[string]time.Time{}},
	}

	r := New(pipeline.New(f), testLogger())
	batch := r.Run(context.Background(), now, sources, prior)

	if len(batch.Log) != 3 {
		t.Fatalf("log entries = %d, want 3", len(batch.Log))
	}
	wantURLs := []string{
		"https://one.example.com/rss",
		"https://two.example.com/rss",
		"https://three.example.com/rss",
	}
	for i, want := range wantURLs {
		if batch.Log[i].URL != want {
			t.Errorf("log[%d].URL = %s, want %s", i, batch.Log[i].URL, want)
		}
	}
	if !strings.Contains(batch.Log[1].Message, "fetch error") {
		t.Errorf("log[1] = %q, want a fetch error", batch.Log[1].Message)
	}

	// The failing source keeps its prior state; the others advance.
	if diff := cmp.Diff(prior["https://two.example.com/rss"], batch.States["https://two.example.com/rss"]); diff != "" {
		t.Errorf("failed source state changed (-want +got):\n%s", diff)
	}
	for _, url := range []string{"https://one.example.com/rss", "https://three.example.com/rss"} {
		st := batch.States[url]
		if !st.LastUpdate.Equal(now) {
			t.Errorf("%s last update = %v, want %v", url, st.LastUpdate, now)
		}
	}
	if diff := cmp.Diff([]string{"https://one.example.com/rss", "https://three.example.com/rss"}, batch.Changed); diff != "" {
		t.Errorf("changed urls mismatch (-want +got):\n%s", diff)
	}

	if len(batch.Notifications) != 2 {
		t.Errorf("notifications = %d, want 2", len(batch.Notifications))
	}
}

func TestRunFirstEverCheckPersistsStateWithoutNotifications(t *testing.T) {
	sources := []model.Source{source("https://one.example.com/rss")}
	f := fetcherFunc(func(context.Context, string) ([]byte, error) {
		return rss("One", "a1", "a2", "a3"), nil
	})

	r := New(pipeline.New(f), testLogger())
	batch := r.Run(context.Background(), now, sources, nil)

	if len(batch.Notifications) != 0 {
		t.Errorf("notifications = %d, want 0 on first check", len(batch.Notifications))
	}
	st, ok := batch.States["https://one.example.com/rss"]
	if !ok {
		t.Fatal("expected state for new source")
	}
	if len(st.Seen) != 3 {
		t.Errorf("seen entries = %d, want 3", len(st.Seen))
	}
}

func TestRunIdenticalInputIsDeterministic(t *testing.T) {
	sources := []model.Source{
		source("https://one.example.com/rss"),
		source("https://two.example.com/rss"),
	}
	f := fetcherFunc(func(_ context.Context, url string) ([]byte, error) {
		if strings.Contains(url, "one") {
			return rss("One", "a1"), nil
		}
		return rss("Two", "b1"), nil
	})

	r := New(pipeline.New(f), testLogger())

	first := r.Run(context.Background(), now, sources, nil)
	second := r.Run(context.Background(), now, sources, nil)

	if diff := cmp.Diff(first.Log, second.Log); diff != "" {
		t.Errorf("log not deterministic (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.States, second.States); diff != "" {
		t.Errorf("states not deterministic (-first +second):\n%s", diff)
	}
}
