// Package drivertest provides scriptable in-memory implementations of
// driver.Session and driver.Element for tests.
//
// Elements are looked up by exact selector string. A test registers what a
// selector matches with Session.Set and scripts behavior with the optional
// function fields.
package drivertest

import (
	"context"
	"sync"
	"time"

	"github.com/nao1215/mapharvest/internal/driver"
)

// Element is a fake driver.Element.
type Element struct {
	// Label identifies the element in test failures.
	Label string

	// TextValue is returned by Text unless TextFunc is set.
	TextValue string

	// TextFunc, when set, replaces TextValue. It may panic.
	TextFunc func() (string, error)

	// Attrs holds attribute values returned by Attribute.
	Attrs map[string]string

	// OnClick is called on every Click. A non-nil error fails the click.
	OnClick func() error

	// OnScroll is called on every ScrollToBottom. A non-nil error fails
	// the scroll.
	OnScroll func() error

	// ExtentFunc is returned by ScrollExtent.
	ExtentFunc func() (float64, error)

	mu      sync.Mutex
	clicks  int
	scrolls int
}

var _ driver.Element = (*Element)(nil)

// Text implements driver.Element.
func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.TextFunc != nil {
		return e.TextFunc()
	}
	return e.TextValue, nil
}

// Attribute implements driver.Element.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, ok := e.Attrs[name]
	return v, ok, nil
}

// Click implements driver.Element.
func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.clicks++
	e.mu.Unlock()
	if e.OnClick != nil {
		return e.OnClick()
	}
	return nil
}

// ScrollToBottom implements driver.Element.
func (e *Element) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.scrolls++
	e.mu.Unlock()
	if e.OnScroll != nil {
		return e.OnScroll()
	}
	return nil
}

// ScrollExtent implements driver.Element.
func (e *Element) ScrollExtent(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if e.ExtentFunc != nil {
		return e.ExtentFunc()
	}
	return 0, nil
}

// Clicks returns how many times the element was clicked.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Scrolls returns how many times the element was scrolled.
func (e *Element) Scrolls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scrolls
}

// Session is a fake driver.Session.
type Session struct {
	// NavigateErr fails every Navigate when set.
	NavigateErr error

	// OnNavigate is called after a successful Navigate.
	OnNavigate func(url string)

	// URLErr fails every CurrentURL when set.
	URLErr error

	mu          sync.Mutex
	elements    map[string][]*Element
	url         string
	document    string
	navigations []string
	waits       []time.Duration
	closed      int
}

var _ driver.Session = (*Session)(nil)

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{elements: make(map[string][]*Element)}
}

// Set replaces what selector matches at page level.
// Passing no elements makes the selector match nothing.
func (s *Session) Set(selector string, els ...*Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(els) == 0 {
		delete(s.elements, selector)
		return
	}
	s.elements[selector] = els
}

// Append adds elements to what selector matches at page level.
func (s *Session) Append(selector string, els ...*Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[selector] = append(s.elements[selector], els...)
}

// SetURL sets the value returned by CurrentURL.
func (s *Session) SetURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
}

// SetDocument sets the value returned by HTML.
func (s *Session) SetDocument(html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document = html
}

// Navigate implements driver.Session.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.NavigateErr != nil {
		return s.NavigateErr
	}
	s.mu.Lock()
	s.navigations = append(s.navigations, url)
	s.url = url
	s.mu.Unlock()
	if s.OnNavigate != nil {
		s.OnNavigate(url)
	}
	return nil
}

// Find implements driver.Session.
func (s *Session) Find(ctx context.Context, selector string) (driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	els := s.elements[selector]
	if len(els) == 0 {
		return nil, driver.ErrNotFound
	}
	return els[0], nil
}

// FindAll implements driver.Session.
func (s *Session) FindAll(ctx context.Context, selector string) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	els := s.elements[selector]
	out := make([]driver.Element, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out, nil
}

// Wait implements driver.Session. It never blocks: the element is either
// registered or reported as not found.
func (s *Session) Wait(ctx context.Context, selector string, timeout time.Duration) (driver.Element, error) {
	s.mu.Lock()
	s.waits = append(s.waits, timeout)
	s.mu.Unlock()
	return s.Find(ctx, selector)
}

// CurrentURL implements driver.Session.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.URLErr != nil {
		return "", s.URLErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

// HTML implements driver.Session.
func (s *Session) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document, nil
}

// Close implements driver.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Navigations returns every URL passed to Navigate, in order.
func (s *Session) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// Closed returns how many times Close was called.
func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Waits returns the timeout of every Wait call, in order.
func (s *Session) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}
