package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/mapharvest/internal/config"
	"github.com/nao1215/mapharvest/internal/model"
)

// TaskFunc is called after every task with its final state and its
// 0-based position in the task list.
type TaskFunc func(run *TaskRun, index int)

// TaskStartFunc is called before a task starts with its 0-based position
// and the number of tasks in the run.
type TaskStartFunc func(task model.SearchTask, index, total int)

// Runner executes search tasks one after another through a pipeline.
//
// Tasks share one browser session, so they never run concurrently. After
// each task the runner waits for the task delay before the next one starts.
type Runner struct {
	pipeline  *Pipeline
	taskDelay time.Duration
	onTask    TaskFunc
	onStart   TaskStartFunc
	now       func() time.Time
	logger    *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets a custom logger for the runner.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithTaskDelay sets the pause between two tasks. Zero or less disables it.
func WithTaskDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.taskDelay = d
	}
}

// WithTaskFunc sets a function called after every task, including failed
// and interrupted ones.
func WithTaskFunc(fn TaskFunc) RunnerOption {
	return func(r *Runner) {
		r.onTask = fn
	}
}

// WithTaskStartFunc sets a function called before every task.
func WithTaskStartFunc(fn TaskStartFunc) RunnerOption {
	return func(r *Runner) {
		r.onStart = fn
	}
}

// WithRunnerClock sets the time source for task start and finish times.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a Runner that executes every task with p.
func NewRunner(p *Pipeline, opts ...RunnerOption) *Runner {
	r := &Runner{
		pipeline:  p,
		taskDelay: config.DefaultTaskDelay,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// RunAll executes tasks in order and returns every record collected, in
// arrival order.
//
// A task that fails is logged and the run continues with the next task,
// keeping the records the failed task produced before the failure. The
// returned error is non-nil only when ctx is cancelled; the records
// collected up to that point are returned with it.
func (r *Runner) RunAll(ctx context.Context, tasks []model.SearchTask) ([]model.BusinessRecord, error) {
	r.logger.Info("starting run", "tasks", len(tasks))
	start := r.now()

	// Rebuilt with its single token spent when a task ends, so the next
	// Wait lasts exactly one delay from that moment.
	var pace *rate.Limiter

	records := make([]model.BusinessRecord, 0)
	failed := 0

	for i, task := range tasks {
		if pace != nil {
			// Wait also fails early when ctx's deadline is closer than the delay.
			if err := pace.Wait(ctx); err != nil {
				r.logger.Warn("run interrupted", "completed", i, "records", len(records), "error", err)
				return records, err
			}
		}
		if err := ctx.Err(); err != nil {
			r.logger.Warn("run interrupted", "completed", i, "records", len(records))
			return records, err
		}

		r.logger.Info("running task",
			"task", task.String(),
			"index", i+1,
			"total", len(tasks),
			"target", task.TargetCount,
		)

		if r.onStart != nil {
			r.onStart(task, i, len(tasks))
		}
		run := NewTaskRun(task)
		run.Started = r.now()
		err := r.pipeline.Execute(ctx, run)
		run.Finished = r.now()
		pace = r.newPace()

		records = append(records, run.Records...)
		if r.onTask != nil {
			r.onTask(run, i)
		}

		if run.Interrupted {
			r.logger.Warn("run interrupted",
				"task", task.String(),
				"completed", i,
				"records", len(records),
			)
			return records, ctx.Err()
		}
		if err != nil {
			failed++
			r.logger.Warn("task failed",
				"task", task.String(),
				"records", len(run.Records),
				"error", err,
			)
			continue
		}

		r.logger.Info("task completed",
			"task", task.String(),
			"records", len(run.Records),
			"skipped", run.Skipped,
			"elapsed", run.Duration(),
		)
	}

	r.logger.Info("run complete",
		"tasks", len(tasks),
		"failed", failed,
		"records", len(records),
		"elapsed", r.now().Sub(start),
	)
	return records, nil
}

// newPace returns a limiter whose next token arrives one task delay from now.
func (r *Runner) newPace() *rate.Limiter {
	l := rate.NewLimiter(rate.Every(r.taskDelay), 1)
	l.Allow()
	return l
}
