package pipeline

import (
	"context"
	"log/slog"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each one reading and extending the
// TaskRun left by the previous steps.
type Step interface {
	// Do executes the step.
	// Non-critical problems (a listing that could not be read) are logged
	// and recorded in run; only failures that leave nothing for the later
	// steps to work on are returned.
	Do(ctx context.Context, run *TaskRun) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
//
// The first failing step ends the task: later steps read what earlier ones
// produced, so there is nothing for them to work on.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in order against run.
//
// Cancellation is checked before each step. A cancelled pipeline returns
// ctx.Err() and leaves run.Interrupted set; the records collected so far
// stay in run.
func (p *Pipeline) Execute(ctx context.Context, run *TaskRun) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"task", run.Task.String(),
				"reason", ctx.Err(),
			)
			run.Interrupted = true
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"task", run.Task.String(),
		)

		if err := step.Do(ctx, run); err != nil {
			if ctx.Err() != nil {
				run.Interrupted = true
				return err
			}
			p.logger.Error("step failed",
				"step", step.Name(),
				"task", run.Task.String(),
				"error", err,
			)
			run.Err = err
			return err
		}

		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}
	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
