package paginate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/mapharvest/internal/driver"
)

// Default selectors for the results panel and its listings.
const (
	DefaultContainerSelector = `[role="main"]`
	DefaultItemSelector      = `[data-result-index]`
)

// Default timings.
const (
	DefaultScrollPause   = 2 * time.Second
	DefaultContainerWait = 10 * time.Second
)

// Result is what Populate found.
type Result struct {
	// Handles are the rendered listings in display order, at most the
	// requested target count.
	Handles []driver.Element

	// Rounds is the number of scrolls performed.
	Rounds int

	// Reason is why pagination stopped.
	Reason StopReason

	// Err is the driver error that ended the loop early, if any.
	// Populate does not return it; the handles found so far are still usable.
	Err error
}

// Controller scrolls the results panel of a session.
type Controller struct {
	containerSelector string
	itemSelector      string
	containerWait     time.Duration
	poller            Poller
	logger            *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithSelectors sets the panel and listing selectors.
func WithSelectors(container, item string) Option {
	return func(c *Controller) {
		c.containerSelector = container
		c.itemSelector = item
	}
}

// WithScrollPause sets the pause between a scroll and the next count.
func WithScrollPause(d time.Duration) Option {
	return func(c *Controller) {
		c.poller.Interval = d
	}
}

// WithContainerWait sets how long to wait for the panel to appear.
func WithContainerWait(d time.Duration) Option {
	return func(c *Controller) {
		c.containerWait = d
	}
}

// WithRoundLimit caps the total number of scrolls per task. Zero means no cap.
func WithRoundLimit(n int) Option {
	return func(c *Controller) {
		c.poller.Limit = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New creates a Controller with default selectors and timings.
func New(opts ...Option) *Controller {
	c := &Controller{
		containerSelector: DefaultContainerSelector,
		itemSelector:      DefaultItemSelector,
		containerWait:     DefaultContainerWait,
		poller:            Poller{Interval: DefaultScrollPause},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Populate scrolls the results panel until targetCount listings are
// rendered or the panel's extent stays unchanged for maxStableRounds
// consecutive scrolls. Values of maxStableRounds below 1 use
// DefaultMaxStableRounds.
//
// A missing panel yields zero handles and no error. A driver failure
// during scrolling ends the loop and the listings rendered so far are
// returned. Only cancellation is reported as an error.
func (c *Controller) Populate(ctx context.Context, session driver.Session, targetCount, maxStableRounds int) (Result, error) {
	if targetCount < 1 {
		return Result{}, fmt.Errorf("target count must be positive, got %d", targetCount)
	}

	container, err := session.Wait(ctx, c.containerSelector, c.containerWait)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Reason: ReasonCancelled}, ctx.Err()
		}
		c.logger.Warn("results panel not found",
			"selector", c.containerSelector,
			"error", err,
		)
		return Result{Reason: ReasonContainerNotFound}, nil
	}

	var handles []driver.Element

	initial, err := container.ScrollExtent(ctx)
	if err != nil {
		return c.finish(ctx, session, Result{Reason: ReasonDriverError, Err: err}, handles, targetCount)
	}

	poller := c.poller
	poller.MaxRounds = maxStableRounds

	outcome, err := poller.Run(ctx, initial,
		container.ScrollToBottom,
		func(ctx context.Context) (Observation, error) {
			found, err := session.FindAll(ctx, c.itemSelector)
			if err != nil {
				return Observation{}, err
			}
			handles = found
			if len(found) >= targetCount {
				return Observation{Satisfied: true}, nil
			}
			extent, err := container.ScrollExtent(ctx)
			if err != nil {
				return Observation{}, err
			}
			c.logger.Debug("scrolled results panel",
				"visible", len(found),
				"target", targetCount,
				"extent", extent,
			)
			return Observation{Extent: extent}, nil
		},
	)

	res := Result{Rounds: outcome.Rounds, Reason: outcome.Reason}
	if err != nil {
		if outcome.Reason == ReasonCancelled {
			return res, err
		}
		res.Err = err
	}
	return c.finish(ctx, session, res, handles, targetCount)
}

// finish collects the listings rendered now, falling back to the last
// observed ones, and truncates them to targetCount.
func (c *Controller) finish(ctx context.Context, session driver.Session, res Result, last []driver.Element, targetCount int) (Result, error) {
	if res.Err != nil {
		c.logger.Warn("pagination ended early",
			"rounds", res.Rounds,
			"error", res.Err,
		)
	}

	handles := last
	if res.Reason != ReasonSatisfied {
		found, err := session.FindAll(ctx, c.itemSelector)
		switch {
		case err == nil:
			handles = found
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			res.Reason = ReasonCancelled
			return res, err
		default:
			c.logger.Warn("failed to collect listings", "error", err)
		}
	}

	if len(handles) > targetCount {
		handles = handles[:targetCount]
	}
	res.Handles = handles

	c.logger.Debug("pagination finished",
		"reason", res.Reason,
		"rounds", res.Rounds,
		"handles", len(res.Handles),
	)
	return res, nil
}
