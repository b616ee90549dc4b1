package paginate

import (
	"context"
	"time"
)

// DefaultMaxStableRounds is how many consecutive rounds without growth end
// the loop when no other value is configured.
const DefaultMaxStableRounds = 20

// StopReason describes why a pagination loop ended.
type StopReason string

const (
	// ReasonSatisfied means the observation reported enough results.
	ReasonSatisfied StopReason = "target-reached"
	// ReasonConverged means the extent stopped changing for MaxRounds rounds.
	ReasonConverged StopReason = "converged"
	// ReasonLimit means the hard round limit was hit.
	ReasonLimit StopReason = "round-limit"
	// ReasonContainerNotFound means there was nothing to scroll.
	ReasonContainerNotFound StopReason = "container-not-found"
	// ReasonDriverError means the action or observation failed.
	ReasonDriverError StopReason = "driver-error"
	// ReasonCancelled means the context was cancelled.
	ReasonCancelled StopReason = "cancelled"
)

// Observation is what the poller sees after each action.
type Observation struct {
	// Satisfied ends the loop immediately.
	Satisfied bool
	// Extent is compared with the previous round's extent.
	Extent float64
}

// Outcome summarizes a finished loop.
type Outcome struct {
	// Rounds is the number of actions performed.
	Rounds int
	// StableRounds is the stability counter when the loop ended.
	StableRounds int
	// Reason is why the loop ended.
	Reason StopReason
}

// Poller repeats an action until an observation is satisfied or stops
// changing.
type Poller struct {
	// Interval is waited between the action and the observation.
	Interval time.Duration

	// MaxRounds is how many consecutive unchanged observations end the loop.
	// Values below 1 mean DefaultMaxStableRounds.
	MaxRounds int

	// Limit caps the total number of rounds. Zero means no cap.
	Limit int

	// sleep waits for d or until ctx is done. Nil means sleepContext.
	sleep func(ctx context.Context, d time.Duration) error
}

// Run performs the loop. initial is the extent before the first action, so
// an extent that never changes ends the loop after exactly MaxRounds
// actions.
//
// An error from act or observe ends the loop with ReasonDriverError and is
// returned. Cancellation ends it with ReasonCancelled and ctx.Err().
func (p Poller) Run(
	ctx context.Context,
	initial float64,
	act func(ctx context.Context) error,
	observe func(ctx context.Context) (Observation, error),
) (Outcome, error) {
	maxRounds := p.MaxRounds
	if maxRounds < 1 {
		maxRounds = DefaultMaxStableRounds
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	out := Outcome{}
	last := initial

	for {
		if err := ctx.Err(); err != nil {
			out.Reason = ReasonCancelled
			return out, err
		}
		if p.Limit > 0 && out.Rounds >= p.Limit {
			out.Reason = ReasonLimit
			return out, nil
		}

		out.Rounds++
		if err := act(ctx); err != nil {
			return failed(ctx, out, err)
		}

		if err := sleep(ctx, p.Interval); err != nil {
			out.Reason = ReasonCancelled
			return out, err
		}

		obs, err := observe(ctx)
		if err != nil {
			return failed(ctx, out, err)
		}
		if obs.Satisfied {
			out.Reason = ReasonSatisfied
			return out, nil
		}

		if obs.Extent == last {
			out.StableRounds++
			if out.StableRounds >= maxRounds {
				out.Reason = ReasonConverged
				return out, nil
			}
		} else {
			out.StableRounds = 0
			last = obs.Extent
		}
	}
}

// failed classifies err as a cancellation when ctx is done, otherwise as a
// driver error.
func failed(ctx context.Context, out Outcome, err error) (Outcome, error) {
	if ctx.Err() != nil {
		out.Reason = ReasonCancelled
		return out, ctx.Err()
	}
	out.Reason = ReasonDriverError
	return out, err
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
