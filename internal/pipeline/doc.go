// Package pipeline runs search tasks against a browser session.
//
// Each task goes through a Pipeline of steps: navigate to the search,
// populate the results panel, and extract a record from every listing.
// The steps share one TaskRun that carries the task, the listings found
// and the records produced.
//
// A Runner executes a list of tasks strictly one after another on a single
// session, pacing them with an inter-task delay. A failing task is logged
// and the run moves on to the next one, so the aggregate of records is
// always returned, even when empty.
package pipeline
