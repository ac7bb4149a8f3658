// Package parse turns raw feed bytes into the normalized feed shape.
package parse

import (
	"bytes"
	"crypto/sha256"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"

	"github.com/mmcdole/gofeed"

	"feedwatch/internal/model"
)

// Error is a structural parse failure with a best-effort input position.
type Error struct {
	Line int
	Col  int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("parse error: %s", e.Msg)
}

// Feed parses raw syndication content into a normalized feed. Relative entry
// links are resolved against base.
func Feed(raw []byte, base string) (*model.Feed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, asError(err)
	}

	feed := &model.Feed{Title: parsed.Title}
	for _, item := range parsed.Items {
		content := item.Content
		if content == "" {
			content = item.Description
		}
		feed.Entries = append(feed.Entries, model.Entry{
			ID:      itemID(item),
			Title:   item.Title,
			Content: content,
			Link:    ResolveLink(base, item.Link),
		})
	}
	return feed, nil
}

// itemID returns the stable identifier for a feed item. Items without a GUID
// get a hash of title and link; items with neither have no identifier.
func itemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return FallbackID(item.Title, item.Link)
}

// FallbackID derives a synthetic identifier from an entry's title and link.
// It returns an empty identifier when both are empty.
func FallbackID(title, link string) string {
	if title == "" && link == "" {
		return ""
	}
	h := sha256.Sum256([]byte(title + "|" + link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

// ResolveLink resolves link against base, returning link unchanged when it
// is already absolute or cannot be resolved.
func ResolveLink(base, link string) string {
	if link == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return link
	}
	l, err := url.Parse(link)
	if err != nil {
		return link
	}
	return b.ResolveReference(l).String()
}

func asError(err error) *Error {
	var syntax *xml.SyntaxError
	if errors.As(err, &syntax) {
		return &Error{Line: syntax.Line, Msg: syntax.Msg}
	}
	return &Error{Msg: err.Error()}
}
