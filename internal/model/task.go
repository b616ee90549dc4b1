package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultTargetCount is the number of results requested when a task does
// not specify one.
const DefaultTargetCount = 50

// ErrEmptyQuery is returned when a task has no search query.
var ErrEmptyQuery = errors.New("search query must not be empty")

// ErrInvalidTargetCount is returned when a task's target count is not positive.
var ErrInvalidTargetCount = errors.New("target count must be positive")

// SearchTask is a single search to run against the listing surface.
// It is immutable once created and consumed once per run.
type SearchTask struct {
	// Query is what to search for (e.g., "bakery").
	Query string `json:"query" yaml:"query"`

	// Location narrows the search (e.g., "Springfield").
	Location string `json:"location" yaml:"location"`

	// TargetCount is the number of results wanted.
	// Pagination stops as soon as this many items are rendered.
	TargetCount int `json:"targetCount" yaml:"count"`
}

// NewSearchTask creates a validated SearchTask.
func NewSearchTask(query, location string, targetCount int) (SearchTask, error) {
	t := SearchTask{
		Query:       strings.TrimSpace(query),
		Location:    strings.TrimSpace(location),
		TargetCount: targetCount,
	}
	if err := t.Validate(); err != nil {
		return SearchTask{}, err
	}
	return t, nil
}

// Validate checks that the task can be run.
func (t SearchTask) Validate() error {
	if strings.TrimSpace(t.Query) == "" {
		return ErrEmptyQuery
	}
	if t.TargetCount <= 0 {
		return ErrInvalidTargetCount
	}
	return nil
}

// String returns "query in location", used in progress output.
func (t SearchTask) String() string {
	if t.Location == "" {
		return t.Query
	}
	return t.Query + " in " + t.Location
}

// ParseSearchTask parses the "query|location|count" form used on the
// command line. Location and count may be omitted, in which case
// defaultLocation and defaultCount are used. A defaultCount below 1 means
// DefaultTargetCount.
func ParseSearchTask(s, defaultLocation string, defaultCount int) (SearchTask, error) {
	parts := strings.Split(s, "|")
	if len(parts) > 3 {
		return SearchTask{}, fmt.Errorf("invalid task %q: expected query|location|count", s)
	}

	query := parts[0]
	location := defaultLocation
	count := defaultCount
	if count < 1 {
		count = DefaultTargetCount
	}

	if len(parts) >= 2 && strings.TrimSpace(parts[1]) != "" {
		location = parts[1]
	}
	if len(parts) == 3 && strings.TrimSpace(parts[2]) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return SearchTask{}, fmt.Errorf("invalid task %q: count %q is not a number", s, parts[2])
		}
		count = n
	}

	t, err := NewSearchTask(query, location, count)
	if err != nil {
		return SearchTask{}, fmt.Errorf("invalid task %q: %w", s, err)
	}
	return t, nil
}

// DemoTasks returns the fixed list of searches run when no tasks are given.
func DemoTasks() []SearchTask {
	return []SearchTask{
		{Query: "רהיטים", Location: "תל אביב", TargetCount: 50},
		{Query: "עורכי דין", Location: "ירושלים", TargetCount: 30},
		{Query: "מסעדות", Location: "חיפה", TargetCount: 40},
	}
}
