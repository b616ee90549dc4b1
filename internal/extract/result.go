package extract

import "fmt"

// Result is the outcome of one field probe.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the probe produced a value.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// OrDefault returns the probed value, or def when the probe failed.
func (r Result[T]) OrDefault(def T) T {
	if r.Err != nil {
		return def
	}
	return r.Value
}

// ProbeError reports a failed field probe.
type ProbeError struct {
	Field string
	Err   error
}

// Error implements error.
func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Err
}
