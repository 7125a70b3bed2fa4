package retry

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	jujuretry "github.com/juju/retry"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second
)

// Outcome classifies the result of one attempt.
type Outcome int

const (
	Success Outcome = iota
	Retryable
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Policy describes how a failing call is retried.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// InitialDelay is the pause after the first failure.
	InitialDelay time.Duration
	// Backoff computes the next pause from the previous one. Defaults to
	// doubling after every failed attempt.
	Backoff func(delay time.Duration, attempt int) time.Duration
	// Classifier decides whether a non-nil error is worth another attempt.
	// Without one every error is retryable.
	Classifier func(err error) Outcome
	// Notify is called after every retryable failure.
	Notify func(err error, attempt int)
	// Clock paces the backoff sleeps. Nil means the wall clock.
	Clock clock.Clock
}

// DefaultPolicy is three attempts with 1s then 2s between them. It leaves
// Clock unset so the owner of the policy can supply one.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		Backoff:      jujuretry.DoubleDelay,
	}
}

// Classify reports the outcome of err under p.
func (p Policy) Classify(err error) Outcome {
	if err == nil {
		return Success
	}
	if p.Classifier == nil {
		return Retryable
	}
	return p.Classifier(err)
}

// Do calls fn until it succeeds, returns a fatal error, or runs out of
// attempts. fn receives the 1-based attempt number. On failure Do returns
// the error from the last attempt, unwrapped from the retry bookkeeping, so
// callers can inspect it directly. Cancelling ctx ends the loop after the
// current attempt, or during the backoff sleep, with an error wrapping
// ctx.Err().
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	p = p.withDefaults()

	var (
		attempt int
		lastErr error
	)
	err := jujuretry.Call(jujuretry.CallArgs{
		Func: func() error {
			attempt++
			lastErr = fn(ctx, attempt)
			return lastErr
		},
		IsFatalError: func(err error) bool {
			return ctx.Err() != nil || p.Classify(err) == Fatal
		},
		NotifyFunc: func(err error, n int) {
			if p.Notify != nil {
				p.Notify(err, n)
			}
		},
		Attempts:    p.MaxAttempts,
		Delay:       p.InitialDelay,
		BackoffFunc: p.Backoff,
		Clock:       p.Clock,
		Stop:        ctx.Done(),
	})

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return errors.Annotatef(ctx.Err(), "stopped after %d attempts, last error: %v", attempt, lastErr)
	case jujuretry.IsRetryStopped(err):
		return errors.Trace(err)
	case lastErr != nil:
		return lastErr
	default:
		return errors.Trace(err)
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.Backoff == nil {
		p.Backoff = def.Backoff
	}
	if p.Clock == nil {
		p.Clock = clock.WallClock
	}
	return p
}
