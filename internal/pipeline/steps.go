package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/mapharvest/internal/config"
	"github.com/nao1215/mapharvest/internal/driver"
	"github.com/nao1215/mapharvest/internal/extract"
	"github.com/nao1215/mapharvest/internal/model"
	"github.com/nao1215/mapharvest/internal/paginate"
)

// NavigateStep opens the search page of the task and waits for it to
// settle.
type NavigateStep struct {
	session driver.Session
	baseURL string
	settle  time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

// NavigateStepOption configures a NavigateStep.
type NavigateStepOption func(*NavigateStep)

// WithSettleDelay sets the wait after navigation.
func WithSettleDelay(d time.Duration) NavigateStepOption {
	return func(s *NavigateStep) {
		s.settle = d
	}
}

// WithNavigateLogger sets a custom logger for the navigate step.
func WithNavigateLogger(logger *slog.Logger) NavigateStepOption {
	return func(s *NavigateStep) {
		s.logger = logger
	}
}

// NewNavigateStep creates a step that opens baseURL searches on session.
func NewNavigateStep(session driver.Session, baseURL string, opts ...NavigateStepOption) *NavigateStep {
	s := &NavigateStep{
		session: session,
		baseURL: baseURL,
		settle:  config.DefaultSettleDelay,
		sleep:   sleepContext,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *NavigateStep) Name() string {
	return "navigate"
}

// Do opens the search page.
func (s *NavigateStep) Do(ctx context.Context, run *TaskRun) error {
	run.URL = SearchURL(s.baseURL, run.Task.Query, run.Task.Location)
	s.logger.Info("opening search", "task", run.Task.String(), "url", run.URL)

	if err := s.session.Navigate(ctx, run.URL); err != nil {
		return fmt.Errorf("failed to open search %q: %w", run.Task.String(), err)
	}
	return s.sleep(ctx, s.settle)
}

// PaginateStep scrolls the results panel until the task's target count is
// rendered or the panel stops growing.
type PaginateStep struct {
	session         driver.Session
	controller      *paginate.Controller
	maxStableRounds int
	logger          *slog.Logger
}

// PaginateStepOption configures a PaginateStep.
type PaginateStepOption func(*PaginateStep)

// WithMaxStableRounds sets how many scrolls without growth end pagination.
func WithMaxStableRounds(n int) PaginateStepOption {
	return func(s *PaginateStep) {
		s.maxStableRounds = n
	}
}

// WithPaginateLogger sets a custom logger for the paginate step.
func WithPaginateLogger(logger *slog.Logger) PaginateStepOption {
	return func(s *PaginateStep) {
		s.logger = logger
	}
}

// NewPaginateStep creates a step that populates the results panel with
// controller.
func NewPaginateStep(session driver.Session, controller *paginate.Controller, opts ...PaginateStepOption) *PaginateStep {
	s := &PaginateStep{
		session:         session,
		controller:      controller,
		maxStableRounds: paginate.DefaultMaxStableRounds,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *PaginateStep) Name() string {
	return "paginate"
}

// Do populates run.Handles. A panel that never appears leaves the task
// with no listings and is not an error.
func (s *PaginateStep) Do(ctx context.Context, run *TaskRun) error {
	res, err := s.controller.Populate(ctx, s.session, run.Task.TargetCount, s.maxStableRounds)
	run.Pagination = res
	run.Handles = res.Handles
	if err != nil {
		return err
	}

	s.logger.Info("results loaded",
		"task", run.Task.String(),
		"found", len(res.Handles),
		"target", run.Task.TargetCount,
		"rounds", res.Rounds,
		"reason", res.Reason,
	)
	return nil
}

// RecordFunc receives every record as soon as it is extracted.
type RecordFunc func(record model.BusinessRecord)

// ExtractStep reads a record from every listing found by pagination.
type ExtractStep struct {
	session   driver.Session
	extractor *extract.Extractor
	onRecord  RecordFunc
	logger    *slog.Logger
}

// ExtractStepOption configures an ExtractStep.
type ExtractStepOption func(*ExtractStep)

// WithRecordFunc sets a function called for every extracted record.
func WithRecordFunc(fn RecordFunc) ExtractStepOption {
	return func(s *ExtractStep) {
		s.onRecord = fn
	}
}

// WithExtractLogger sets a custom logger for the extract step.
func WithExtractLogger(logger *slog.Logger) ExtractStepOption {
	return func(s *ExtractStep) {
		s.logger = logger
	}
}

// NewExtractStep creates a step that reads listings with extractor.
func NewExtractStep(session driver.Session, extractor *extract.Extractor, opts ...ExtractStepOption) *ExtractStep {
	s := &ExtractStep{
		session:   session,
		extractor: extractor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do extracts every listing in order. A listing that cannot be read is
// logged, counted in run.Skipped and skipped. Records already appended
// stay in run when ctx is cancelled.
func (s *ExtractStep) Do(ctx context.Context, run *TaskRun) error {
	defer func() { run.Handles = nil }()

	for i, handle := range run.Handles {
		index := i + 1
		record, err := s.extractor.Extract(ctx, s.session, handle, index)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return err
			}
			run.Skipped++
			s.logger.Warn("skipping listing",
				"task", run.Task.String(),
				"index", index,
				"error", err,
			)
			continue
		}

		record.Tag(run.Task)
		run.Records = append(run.Records, *record)
		if s.onRecord != nil {
			s.onRecord(*record)
		}
	}
	return nil
}

// DefaultPipeline creates the navigate, paginate and extract pipeline for
// session, configured from cfg.
func DefaultPipeline(session driver.Session, cfg *config.Config, onRecord RecordFunc, opts ...Option) *Pipeline {
	p := New(opts...)

	controller := paginate.New(
		paginate.WithSelectors(cfg.PanelSelector, cfg.ItemSelector),
		paginate.WithScrollPause(cfg.ScrollPause),
		paginate.WithContainerWait(cfg.PanelWait),
		paginate.WithRoundLimit(cfg.MaxScrollRounds),
		paginate.WithLogger(p.logger),
	)
	extractor := extract.New(
		extract.WithSelectors(cfg.Selectors),
		extract.WithDetailPause(cfg.DetailPause),
		extract.WithNameWait(cfg.ElementWait),
		extract.WithSnapshot(cfg.Snapshot),
		extract.WithLogger(p.logger),
	)

	p.AddSteps(
		NewNavigateStep(session, cfg.SearchBaseURL,
			WithSettleDelay(cfg.SettleDelay),
			WithNavigateLogger(p.logger),
		),
		NewPaginateStep(session, controller,
			WithMaxStableRounds(cfg.MaxStableRounds),
			WithPaginateLogger(p.logger),
		),
		NewExtractStep(session, extractor,
			WithRecordFunc(onRecord),
			WithExtractLogger(p.logger),
		),
	)
	return p
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
