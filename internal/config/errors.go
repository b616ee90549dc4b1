package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and can be checked with
// errors.Is().
var (
	// ErrNoTask is returned when there is nothing to search for.
	ErrNoTask = errors.New("no search task specified: use --task, --interactive or a config file")

	// ErrInvalidBaseURL is returned when the search base URL is not an
	// absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid search base URL: must be an absolute http(s) URL")

	// ErrInvalidTiming is returned when a pause, wait or delay is negative.
	ErrInvalidTiming = errors.New("invalid timing: durations must be non-negative")

	// ErrInvalidStableRounds is returned when max stable rounds is not positive.
	// Zero would stop pagination before the first scroll.
	ErrInvalidStableRounds = errors.New("invalid max stable rounds: must be positive")

	// ErrInvalidScrollLimit is returned when the scroll round limit is negative.
	ErrInvalidScrollLimit = errors.New("invalid max scroll rounds: must be non-negative")

	// ErrInvalidWindowSize is returned when the browser window has no area.
	ErrInvalidWindowSize = errors.New("invalid window size: width and height must be positive")

	// ErrInvalidDefaultCount is returned when the default result count is not positive.
	ErrInvalidDefaultCount = errors.New("invalid default count: must be positive")

	// ErrUnknownFormat is returned for an export format other than csv, json or markdown.
	ErrUnknownFormat = errors.New("unknown export format")

	// ErrNoFormat is returned when no export format is selected.
	ErrNoFormat = errors.New("no export format selected")

	// ErrUnknownLogFormat is returned for a log format other than text or json.
	ErrUnknownLogFormat = errors.New("unknown log format: must be text or json")

	// ErrInvalidSelector is returned when a field selector does not compile.
	ErrInvalidSelector = errors.New("invalid selector")

	// ErrEmptyPrefix is returned when the export file prefix is empty.
	ErrEmptyPrefix = errors.New("export file prefix must not be empty")
)
