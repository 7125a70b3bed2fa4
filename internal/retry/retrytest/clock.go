// Package retrytest provides a clock for driving retry delays in tests.
package retrytest

import (
	"sync"
	"time"

	"github.com/juju/clock/testclock"
)

// RecordingClock is a test clock whose After fires immediately, advancing
// the clock by the requested duration and remembering it.
type RecordingClock struct {
	*testclock.Clock

	mu     sync.Mutex
	delays []time.Duration
}

func NewRecordingClock(now time.Time) *RecordingClock {
	return &RecordingClock{Clock: testclock.NewClock(now)}
}

func (c *RecordingClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()

	c.Clock.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Clock.Now()
	return ch
}

// Delays returns every duration passed to After, in order.
func (c *RecordingClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}
