package circuitbreaker

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/angeloszaimis/authguard/internal/filelock"
)

// StateFile is the breaker's file name inside the cache directory.
const StateFile = "cb_state.json"

// DefaultProbeInterval is the minimum gap between half-open probes.
const DefaultProbeInterval = 5 * time.Second

// CircuitBreaker is a breaker whose state lives in a file, so every process
// on the host sees the same view. Each call reloads state from disk; nothing
// is cached in memory between calls.
type CircuitBreaker struct {
	path             string
	locker           *filelock.Locker
	failureThreshold int
	resetTimeout     time.Duration
	probeInterval    time.Duration
	clock            clock.Clock
	logger           *slog.Logger
	onStateChange    func(from, to State)
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(cb *CircuitBreaker) { cb.logger = l }
}

func WithLockTimeout(d time.Duration) Option {
	return func(cb *CircuitBreaker) { cb.locker = filelock.New(cb.path, d) }
}

func WithProbeInterval(d time.Duration) Option {
	return func(cb *CircuitBreaker) { cb.probeInterval = d }
}

// OnStateChange registers a hook called after a transition has been
// persisted.
func OnStateChange(fn func(from, to State)) Option {
	return func(cb *CircuitBreaker) { cb.onStateChange = fn }
}

// NewCircuitBreaker returns a breaker persisted at path. It opens after
// threshold consecutive failures and rejects requests for resetTimeout.
func NewCircuitBreaker(path string, threshold int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		path:             path,
		locker:           filelock.New(path, filelock.DefaultTimeout),
		failureThreshold: threshold,
		resetTimeout:     resetTimeout,
		probeInterval:    DefaultProbeInterval,
		clock:            clock.WallClock,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(cb)
	}
	if cb.failureThreshold < 1 {
		cb.failureThreshold = 1
	}
	return cb
}

// StatePath returns the state file location for cacheDir.
func StatePath(cacheDir string) string {
	return filepath.Join(cacheDir, StateFile)
}

func (cb *CircuitBreaker) Path() string {
	return cb.path
}

// Allow reports whether a request may be attempted now. It never modifies
// the state file. When the state cannot be read the breaker fails open: it
// is a safety valve, not an authority.
func (cb *CircuitBreaker) Allow(ctx context.Context) bool {
	snap, err := cb.Snapshot(ctx)
	if err != nil {
		cb.logger.Warn("circuit breaker state unreadable, allowing request",
			"path", cb.path, "error", err)
		return true
	}
	return snap.allows(cb.clock.Now(), cb.resetTimeout, cb.probeInterval)
}

// Snapshot loads the persisted state. A missing file is a fresh Closed
// breaker.
func (cb *CircuitBreaker) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := cb.locker.WithShared(ctx, func() error {
		var err error
		snap, err = cb.load()
		return err
	})
	if err != nil {
		return Snapshot{}, wrapLockErr(cb.path, err)
	}
	return snap, nil
}

// RecordFailure counts a failed request and persists the result.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context) error {
	return cb.update(ctx, func(s *Snapshot, now time.Time) {
		s.recordFailure(now, cb.failureThreshold, cb.resetTimeout)
	})
}

// RecordSuccess counts a successful request and persists the result.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context) error {
	return cb.update(ctx, func(s *Snapshot, now time.Time) {
		s.recordSuccess(now)
	})
}

// Reset writes a fresh Closed state.
func (cb *CircuitBreaker) Reset(ctx context.Context) error {
	return cb.update(ctx, func(s *Snapshot, _ time.Time) {
		*s = Snapshot{}
	})
}

// update runs a load-modify-persist cycle under the exclusive lock. An
// unreadable state file is replaced rather than blocking all recording.
func (cb *CircuitBreaker) update(ctx context.Context, mutate func(*Snapshot, time.Time)) error {
	var from, to State
	err := cb.locker.WithExclusive(ctx, func() error {
		snap, err := cb.load()
		if err != nil {
			if !IsCorrupt(err) {
				return err
			}
			cb.logger.Warn("circuit breaker state corrupt, starting from closed",
				"path", cb.path, "error", err)
			snap = Snapshot{}
		}

		from = snap.State
		mutate(&snap, cb.clock.Now())
		to = snap.State

		return cb.persist(snap)
	})
	if err != nil {
		return wrapLockErr(cb.path, err)
	}

	if from != to {
		cb.logger.Info("circuit breaker state changed",
			"from", from.String(), "to", to.String(), "path", cb.path)
		if cb.onStateChange != nil {
			cb.onStateChange(from, to)
		}
	}
	return nil
}

func (cb *CircuitBreaker) load() (Snapshot, error) {
	data, err := os.ReadFile(cb.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, &Error{Kind: KindIO, Path: cb.path, Err: err}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, &Error{Kind: KindCorrupt, Path: cb.path, Err: err}
	}
	return snap, nil
}

func (cb *CircuitBreaker) persist(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return &Error{Kind: KindIO, Path: cb.path, Err: err}
	}
	if err := filelock.WriteFileAtomic(cb.path, data, 0o600); err != nil {
		return &Error{Kind: KindIO, Path: cb.path, Err: err}
	}
	return nil
}
