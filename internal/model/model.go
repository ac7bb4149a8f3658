// Package model defines the domain types used across the application.
package model

import (
	"net/url"
	"regexp"
	"time"
)

// SourceKind selects how a source is fetched and how its notifications
// are composed.
type SourceKind string

// Supported source kinds.
const (
	KindPlain   SourceKind = "plain"
	KindScraped SourceKind = "scraped"
	KindBundle  SourceKind = "bundle"
)

// Scraper evaluates a declarative extraction program over fetched HTML,
// yielding the same normalized feed shape as syndication parsing.
type Scraper interface {
	Run(raw []byte, base string) (*Feed, error)
}

// Descriptor identifies a single content source. A bundle descriptor wraps
// an inner plain or scraped descriptor and digests its new entries into one
// notification per check.
type Descriptor struct {
	Kind    SourceKind
	URL     string
	Scraper Scraper // scraped kind only
	Inner   *Descriptor
}

// Leaf returns the innermost descriptor, the one that carries the URL to
// fetch and the format to parse.
func (d *Descriptor) Leaf() *Descriptor {
	for d.Inner != nil {
		d = d.Inner
	}
	return d
}

// RuleKind selects the refresh schedule shape.
type RuleKind string

// Supported refresh rule kinds.
const (
	RuleEvery  RuleKind = "every"
	RuleDaily  RuleKind = "daily"
	RuleWeekly RuleKind = "weekly"
)

// RefreshRule governs when a source becomes due for a check.
type RefreshRule struct {
	Kind    RuleKind
	Every   time.Duration // RuleEvery
	Weekday time.Weekday  // RuleWeekly
	Hour    int           // RuleDaily, RuleWeekly
	Minute  int           // RuleDaily, RuleWeekly
}

// FilterTarget defines which entry field a filter matches against.
type FilterTarget string

// Supported filter targets.
const (
	TargetTitle   FilterTarget = "title"
	TargetContent FilterTarget = "content"
)

// Filter is a single inclusion rule. It matches an entry when
// (pattern found in target text) equals Expected.
type Filter struct {
	Target   FilterTarget
	Pattern  *regexp.Regexp
	Expected bool
}

// Options are the per-source settings loaded from configuration.
type Options struct {
	Refresh      RefreshRule
	Title        string // overrides the feed-provided title when set
	Label        string
	StripContent bool
	Filters      []Filter
	Destination  int64 // overrides the default delivery target when non-zero
}

// Source pairs a descriptor with its options. Sources are immutable after
// configuration load.
type Source struct {
	Descriptor Descriptor
	Options    Options
}

// URL returns the effective fetch URL of the source.
func (s *Source) URL() string {
	return s.Descriptor.Leaf().URL
}

// Entry is the normalized unit produced by parsing one feed or page.
// An empty ID means the entry has no stable identifier and is excluded from
// deduplication and output. An empty Title or Content means the field is
// absent.
type Entry struct {
	ID      string
	Title   string
	Content string
	Link    string
}

// Feed is the normalized result of parsing a source.
type Feed struct {
	Title   string
	Entries []Entry
}

// Notification is a composed message awaiting delivery.
type Notification struct {
	Sender      string
	Subject     string
	Body        string
	Destination int64 // zero means the default destination
}

// SenderName resolves the notification sender for a source: options title
// override, then the feed-provided title, then the URL host, then the raw
// URL. First non-empty wins.
func SenderName(opts Options, feedTitle, rawURL string) string {
	if opts.Title != "" {
		return opts.Title
	}
	if feedTitle != "" {
		return feedTitle
	}
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return rawURL
}
