package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/mapharvest/internal/driver"
	"github.com/nao1215/mapharvest/internal/model"
)

// Default timings.
const (
	DefaultDetailPause = 2 * time.Second
	DefaultNameWait    = 10 * time.Second
)

// Extractor reads business records from listings.
type Extractor struct {
	selectors   Selectors
	probes      []probe
	detailPause time.Duration
	nameWait    time.Duration
	snapshot    bool
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSelectors replaces the field selectors.
func WithSelectors(sel Selectors) Option {
	return func(e *Extractor) {
		e.selectors = sel
	}
}

// WithDetailPause sets the pause after selecting a listing.
func WithDetailPause(d time.Duration) Option {
	return func(e *Extractor) {
		e.detailPause = d
	}
}

// WithNameWait sets how long to wait for the detail heading.
func WithNameWait(d time.Duration) Option {
	return func(e *Extractor) {
		e.nameWait = d
	}
}

// WithSnapshot makes probes read a parsed copy of the document instead of
// querying the live page.
func WithSnapshot(enabled bool) Option {
	return func(e *Extractor) {
		e.snapshot = enabled
	}
}

// WithClock sets the time source for ExtractedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor with the default selectors and timings.
// It logs a warning when the reviews and category selectors are the same.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		selectors:   DefaultSelectors(),
		detailPause: DefaultDetailPause,
		nameWait:    DefaultNameWait,
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.probes = probes(e.selectors)

	if e.selectors.Ambiguous() {
		e.logger.Warn("ambiguous selector family",
			"reviews", e.selectors.Reviews,
			"category", e.selectors.Category,
		)
	}
	return e
}

// Extract selects handle and reads its detail panel into a record with the
// given 1-based index.
//
// Field probes never fail the extraction. An error is returned only when
// the listing cannot be selected, the page URL cannot be read, or ctx is
// done; the caller should skip the listing and continue.
func (e *Extractor) Extract(ctx context.Context, session driver.Session, handle driver.Element, index int) (*model.BusinessRecord, error) {
	if err := handle.Click(ctx); err != nil {
		return nil, fmt.Errorf("failed to select listing %d: %w", index, err)
	}
	if err := e.sleep(ctx, e.detailPause); err != nil {
		return nil, err
	}

	if _, err := session.Wait(ctx, e.selectors.Name, e.nameWait); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Debug("detail heading did not appear", "index", index, "error", err)
	}

	sourceURL, err := session.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read url of listing %d: %w", index, err)
	}

	record := model.NewBusinessRecord(index, sourceURL, e.now())
	scope := e.scope(ctx, session, sourceURL)

	for _, p := range e.probes {
		res := p.run(ctx, scope)
		p.assign(record, res)
		if res.Err != nil {
			e.logProbe(index, res.Err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return record, nil
}

// scope returns the snapshot scope when enabled and readable, otherwise
// the live one.
func (e *Extractor) scope(ctx context.Context, session driver.Session, base string) Scope {
	live := liveScope{session: session}
	if !e.snapshot {
		return live
	}
	document, err := session.HTML(ctx)
	if err != nil {
		e.logger.Warn("failed to read document, probing live page", "error", err)
		return live
	}
	snap, err := newSnapshotScope(document, base)
	if err != nil {
		e.logger.Warn("failed to parse document, probing live page", "error", err)
		return live
	}
	return snap
}

// logProbe logs a failed probe. Missing elements are routine and logged at
// debug level.
func (e *Extractor) logProbe(index int, err error) {
	var pe *ProbeError
	field := ""
	if errors.As(err, &pe) {
		field = pe.Field
	}
	if errors.Is(err, driver.ErrNotFound) || errors.Is(err, errEmpty) {
		e.logger.Debug("field not available", "index", index, "field", field)
		return
	}
	e.logger.Warn("field probe failed", "index", index, "field", field, "error", err)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
