package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/mapharvest/internal/driver"
)

// Scope is where probes look for fields.
type Scope interface {
	// Text returns the text of the first element matching selector, or
	// driver.ErrNotFound.
	Text(ctx context.Context, selector string) (string, error)

	// Attr returns an attribute of the first element matching selector.
	// ok is false when the element exists but has no such attribute.
	Attr(ctx context.Context, selector, name string) (value string, ok bool, err error)
}

// liveScope queries the page through the driver on every probe.
type liveScope struct {
	session driver.Session
}

func (s liveScope) Text(ctx context.Context, selector string) (string, error) {
	el, err := s.session.Find(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

func (s liveScope) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	el, err := s.session.Find(ctx, selector)
	if err != nil {
		return "", false, err
	}
	return el.Attribute(ctx, name)
}

// snapshotScope queries a parsed copy of the document.
type snapshotScope struct {
	doc  *goquery.Document
	base *url.URL
}

// newSnapshotScope parses document. base resolves relative link targets
// and may be empty.
func newSnapshotScope(document, base string) (*snapshotScope, error) {
	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	s := &snapshotScope{doc: goquery.NewDocumentFromNode(root)}
	if base != "" {
		if u, err := url.Parse(base); err == nil {
			s.base = u
		}
	}
	return s, nil
}

func (s *snapshotScope) first(selector string) (*goquery.Selection, error) {
	sel := s.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, driver.ErrNotFound
	}
	return sel, nil
}

func (s *snapshotScope) Text(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sel, err := s.first(selector)
	if err != nil {
		return "", err
	}
	return sel.Text(), nil
}

func (s *snapshotScope) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	sel, err := s.first(selector)
	if err != nil {
		return "", false, err
	}
	v, ok := sel.Attr(name)
	if !ok {
		return "", false, nil
	}
	if name == "href" && s.base != nil {
		if ref, err := url.Parse(v); err == nil {
			v = s.base.ResolveReference(ref).String()
		}
	}
	return v, true, nil
}
