// Package scrape evaluates declarative extraction programs over HTML,
// producing the same normalized feed shape as syndication parsing.
//
// A program is a recursive composition of two steps: a list step selects
// every node matching a CSS selector and runs a sub-program on each, and an
// entry step extracts named text fields from the current node. Fields accept
// a plain selector ("h2 a"), a selector with an attribute ("a@href"), or a
// bare attribute of the current node ("@data-id").
package scrape

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"feedwatch/internal/model"
	"feedwatch/internal/parse"
)

// Program is one node of a scrape rule tree. Exactly one of List and Entry
// must be set.
type Program struct {
	Title string     `yaml:"title,omitempty"` // feed title selector, root program only
	List  *ListStep  `yaml:"list,omitempty"`
	Entry *EntryStep `yaml:"entry,omitempty"`
}

// ListStep selects nodes and applies a sub-program to each.
type ListStep struct {
	Selector string   `yaml:"selector"`
	Then     *Program `yaml:"then"`
}

// EntryStep extracts one entry from the current node.
type EntryStep struct {
	ID      string `yaml:"id,omitempty"`
	Title   string `yaml:"title,omitempty"`
	Link    string `yaml:"link,omitempty"`
	Content string `yaml:"content,omitempty"`
}

// Validate checks the program shape recursively.
func (p *Program) Validate() error {
	switch {
	case p.List != nil && p.Entry != nil:
		return fmt.Errorf("scrape program step has both list and entry")
	case p.List != nil:
		if p.List.Selector == "" {
			return fmt.Errorf("scrape list step has no selector")
		}
		if p.List.Then == nil {
			return fmt.Errorf("scrape list step %q has no sub-program", p.List.Selector)
		}
		return p.List.Then.Validate()
	case p.Entry != nil:
		if p.Entry.Title == "" && p.Entry.Link == "" && p.Entry.ID == "" {
			return fmt.Errorf("scrape entry step extracts no identifying field")
		}
		return nil
	default:
		return fmt.Errorf("scrape program step has neither list nor entry")
	}
}

// Run evaluates the program over raw HTML. Relative links are resolved
// against base.
func (p *Program) Run(raw []byte, base string) (*model.Feed, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &parse.Error{Msg: fmt.Sprintf("parse html: %v", err)}
	}

	feed := &model.Feed{}
	if p.Title != "" {
		feed.Title = text(doc.Selection, p.Title)
	}
	p.eval(doc.Selection, base, feed)
	return feed, nil
}

func (p *Program) eval(sel *goquery.Selection, base string, feed *model.Feed) {
	switch {
	case p.List != nil:
		sel.Find(p.List.Selector).Each(func(_ int, node *goquery.Selection) {
			p.List.Then.eval(node, base, feed)
		})
	case p.Entry != nil:
		e := model.Entry{
			ID:      text(sel, p.Entry.ID),
			Title:   text(sel, p.Entry.Title),
			Content: text(sel, p.Entry.Content),
			Link:    parse.ResolveLink(base, text(sel, p.Entry.Link)),
		}
		if e.ID == "" {
			e.ID = parse.FallbackID(e.Title, e.Link)
		}
		feed.Entries = append(feed.Entries, e)
	}
}

// text evaluates one field expression against the current node.
func text(sel *goquery.Selection, field string) string {
	if field == "" {
		return ""
	}
	expr, attr, hasAttr := strings.Cut(field, "@")
	target := sel
	if expr = strings.TrimSpace(expr); expr != "" {
		target = sel.Find(expr).First()
	}
	if hasAttr {
		v, _ := target.Attr(strings.TrimSpace(attr))
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(target.Text())
}
