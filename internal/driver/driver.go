package driver

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no element matches a selector.
var ErrNotFound = errors.New("element not found")

// ErrSessionLocked is returned when another process already holds the
// browser profile used by a new session.
var ErrSessionLocked = errors.New("browser profile is in use by another session")

// Session is one live browser tab.
//
// A Session is not safe for concurrent use. Callers run tasks and items
// strictly one after another on the same Session.
type Session interface {
	// Navigate loads url and waits for the document to load.
	Navigate(ctx context.Context, url string) error

	// Find returns the first element matching selector without waiting.
	// It returns ErrNotFound when nothing matches.
	Find(ctx context.Context, selector string) (Element, error)

	// FindAll returns every element currently matching selector.
	// An empty slice is not an error.
	FindAll(ctx context.Context, selector string) ([]Element, error)

	// Wait blocks until an element matching selector appears or timeout
	// elapses, in which case it returns ErrNotFound.
	Wait(ctx context.Context, selector string, timeout time.Duration) (Element, error)

	// CurrentURL returns the URL of the page as it is now.
	CurrentURL(ctx context.Context) (string, error)

	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)

	// Close releases the tab and everything the session acquired.
	// It is safe to call more than once.
	Close() error
}

// Element is a handle to one rendered node.
// Handles may go stale when the page re-renders; methods then return an error.
type Element interface {
	// Text returns the rendered text of the element.
	Text(ctx context.Context) (string, error)

	// Attribute returns the value of the named attribute. Link targets
	// ("href") are returned resolved against the document URL.
	// ok is false when the attribute is absent.
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)

	// Click selects the element with a primary mouse click.
	Click(ctx context.Context) error

	// ScrollToBottom scrolls the element's own content to its end.
	ScrollToBottom(ctx context.Context) error

	// ScrollExtent returns the total scrollable height of the element.
	ScrollExtent(ctx context.Context) (float64, error)
}
