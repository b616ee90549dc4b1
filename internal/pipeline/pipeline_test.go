package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nao1215/mapharvest/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, run *TaskRun) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, run *TaskRun) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, run)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTask() model.SearchTask {
	return model.SearchTask{Query: "bakery", Location: "Springfield", TargetCount: 3}
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if n := len(p.StepNames()); n != 0 {
			t.Errorf("expected 0 steps, got %d", n)
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithLogger option", func(t *testing.T) {
		t.Parallel()

		logger := discardLogger()
		if p := New(WithLogger(logger)); p.logger != logger {
			t.Error("expected the given logger")
		}
	})
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	names := p.StepNames()
	if len(names) != 3 {
		t.Fatalf("expected 3 steps, got %v", names)
	}
	want := []string{"first", "second", "third"}
	for i, name := range names {
		if name != want[i] {
			t.Errorf("step %d: got %q, expected %q", i, name, want[i])
		}
	}
}

// TestPipelineExecute tests pipeline execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		p := New(WithLogger(discardLogger()))
		for _, name := range []string{"navigate", "paginate", "extract"} {
			p.AddStep(&mockStep{
				name: name,
				doFunc: func(_ context.Context, _ *TaskRun) error {
					order = append(order, name)
					return nil
				},
			})
		}

		run := NewTaskRun(testTask())
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(order) != 3 || order[0] != "navigate" || order[2] != "extract" {
			t.Errorf("unexpected execution order: %v", order)
		}
		if len(run.PerformedSteps) != 3 {
			t.Errorf("expected 3 performed steps, got %v", run.PerformedSteps)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		errStep := errors.New("navigation failed")
		failing := &mockStep{
			name:   "failing",
			doFunc: func(context.Context, *TaskRun) error { return errStep },
		}
		after := &mockStep{name: "after"}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(failing, after)

		run := NewTaskRun(testTask())
		err := p.Execute(context.Background(), run)
		if !errors.Is(err, errStep) {
			t.Fatalf("expected step error, got %v", err)
		}
		if after.callCount != 0 {
			t.Error("expected later step not to run")
		}
		if !errors.Is(run.Err, errStep) {
			t.Errorf("expected run.Err to be recorded, got %v", run.Err)
		}
		if run.Interrupted {
			t.Error("a failed step is not an interruption")
		}
	})

	t.Run("respects cancellation between steps", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		second := &mockStep{name: "second"}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(
			&mockStep{name: "first", doFunc: func(context.Context, *TaskRun) error {
				cancel()
				return nil
			}},
			second,
		)

		run := NewTaskRun(testTask())
		err := p.Execute(ctx, run)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if second.callCount != 0 {
			t.Error("expected second step not to run")
		}
		if !run.Interrupted {
			t.Error("expected run to be marked interrupted")
		}
	})

	t.Run("step failing because of cancellation marks the run interrupted", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		p := New(WithLogger(discardLogger()))
		p.AddStep(&mockStep{name: "slow", doFunc: func(ctx context.Context, _ *TaskRun) error {
			cancel()
			return ctx.Err()
		}})

		run := NewTaskRun(testTask())
		if err := p.Execute(ctx, run); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if !run.Interrupted || run.Err != nil {
			t.Errorf("expected interruption without step error, got interrupted=%v err=%v", run.Interrupted, run.Err)
		}
	})
}
