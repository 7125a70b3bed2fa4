package refresher

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/angeloszaimis/authguard/internal/credentials"
	"github.com/angeloszaimis/authguard/internal/fetcher"
)

// ErrInvalidInterval is returned by Run for a zero or negative interval.
const ErrInvalidInterval = errors.ConstError("refresh interval must be positive")

// Fetcher is the part of fetcher.Fetcher the loop needs.
type Fetcher interface {
	Fetch(ctx context.Context) (credentials.Set, fetcher.Source, error)
}

type options struct {
	clock clock.Clock
}

type Option func(*options)

// WithClock replaces the wall clock that paces the loop.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// Run fetches once immediately and then every interval until ctx is done.
// Fetch serves from the cache until the refresh margin, so most ticks never
// reach the network. Failures are logged and the loop carries on.
func Run(ctx context.Context, f Fetcher, interval time.Duration, logger *slog.Logger, opts ...Option) error {
	if interval <= 0 {
		return errors.Annotatef(ErrInvalidInterval, "got %s", interval)
	}

	o := options{clock: clock.WallClock}
	for _, opt := range opts {
		opt(&o)
	}

	healthy := true
	refresh := func() {
		set, source, err := f.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if healthy {
				logger.Warn("Credential refresh failing", slog.String("error", err.Error()),
					slog.Bool("breaker_open", fetcher.IsBreakerOpen(err)))
			} else {
				logger.Debug("Credential refresh still failing", slog.String("error", err.Error()))
			}
			healthy = false
			return
		}

		if !healthy {
			logger.Info("Credential refresh recovered", slog.String("expiration", set.Expiration))
		}
		healthy = true

		if source == fetcher.SourceNetwork {
			logger.Info("Credentials refreshed", slog.String("expiration", set.Expiration))
		}
	}

	logger.Info("Credential refresher started", slog.Duration("interval", interval))
	refresh()

	timer := o.clock.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Credential refresher stopped")
			return nil
		case <-timer.Chan():
			refresh()
			timer.Reset(interval)
		}
	}
}
