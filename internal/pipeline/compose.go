package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"feedwatch/internal/model"
)

const maxContentLen = 300

// compose builds the outgoing notifications for the qualifying new entries.
// Plain and scraped sources produce one notification per entry; a bundle
// produces a single digest covering all of them, or nothing when there are
// none. Entry order inside a digest matches parse order.
func compose(kind model.SourceKind, sender string, opts model.Options, entries []model.Entry) []model.Notification {
	if kind == model.KindBundle {
		return composeDigest(sender, opts, entries)
	}
	notifs := make([]model.Notification, 0, len(entries))
	for _, e := range entries {
		notifs = append(notifs, model.Notification{
			Sender:      sender,
			Subject:     subjectFor(opts, entryTitle(e)),
			Body:        entryBody(opts, e),
			Destination: opts.Destination,
		})
	}
	return notifs
}

func composeDigest(sender string, opts model.Options, entries []model.Entry) []model.Notification {
	if len(entries) == 0 {
		return nil
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(entryTitle(e))
		if body := entryBody(opts, e); body != "" {
			b.WriteString("\n")
			b.WriteString(body)
		}
	}
	return []model.Notification{{
		Sender:      sender,
		Subject:     subjectFor(opts, fmt.Sprintf("%d new entries", len(entries))),
		Body:        b.String(),
		Destination: opts.Destination,
	}}
}

func subjectFor(opts model.Options, subject string) string {
	if opts.Label != "" {
		return fmt.Sprintf("[%s] %s", opts.Label, subject)
	}
	return subject
}

func entryTitle(e model.Entry) string {
	if e.Title != "" {
		return e.Title
	}
	if e.Link != "" {
		return e.Link
	}
	return "new entry"
}

func entryBody(opts model.Options, e model.Entry) string {
	var parts []string
	if !opts.StripContent && e.Content != "" {
		parts = append(parts, truncate(e.Content))
	}
	if e.Link != "" {
		parts = append(parts, e.Link)
	}
	return strings.Join(parts, "\n\n")
}

func truncate(s string) string {
	if len(s) <= maxContentLen {
		return s
	}
	cut := maxContentLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
