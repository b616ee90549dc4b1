package pipeline

import (
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/mapharvest/internal/driver"
	"github.com/nao1215/mapharvest/internal/model"
	"github.com/nao1215/mapharvest/internal/paginate"
)

// TaskRun is the state of one search task as it moves through a pipeline.
type TaskRun struct {
	// Task is the search being run.
	Task model.SearchTask

	// URL is the search page that was opened.
	URL string

	// Handles are the listings found by pagination. They are released
	// once extraction has consumed them.
	Handles []driver.Element

	// Pagination describes how the results panel was populated.
	Pagination paginate.Result

	// Records are the extracted records in listing order.
	Records []model.BusinessRecord

	// Skipped counts listings that could not be read.
	Skipped int

	// PerformedSteps lists the steps that completed.
	PerformedSteps []string

	// Err is the first step error, if any.
	Err error

	// Interrupted is set when the run was cancelled part way.
	Interrupted bool

	// Started and Finished bound the task's execution.
	Started  time.Time
	Finished time.Time
}

// NewTaskRun creates the run state for task.
func NewTaskRun(task model.SearchTask) *TaskRun {
	return &TaskRun{
		Task:    task,
		Records: make([]model.BusinessRecord, 0, task.TargetCount),
	}
}

// Duration returns how long the task ran.
func (r *TaskRun) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// SearchURL returns the search page for query in location: base followed
// by the path-escaped text "query location".
func SearchURL(base, query, location string) string {
	text := strings.TrimSpace(strings.TrimSpace(query) + " " + strings.TrimSpace(location))
	return base + url.PathEscape(text)
}
