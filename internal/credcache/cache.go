package credcache

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/angeloszaimis/authguard/internal/credentials"
	"github.com/angeloszaimis/authguard/internal/filelock"
)

// CacheFile is the cache's file name inside the cache directory.
const CacheFile = "creds_cache.json"

// Cache stores the most recently issued credential set in a single file.
// Writes replace the whole record; there is no history.
type Cache struct {
	path   string
	locker *filelock.Locker
	clock  clock.Clock
	logger *slog.Logger
}

type Option func(*Cache)

func WithClock(clk clock.Clock) Option {
	return func(c *Cache) { c.clock = clk }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func WithLockTimeout(d time.Duration) Option {
	return func(c *Cache) { c.locker = filelock.New(c.path, d) }
}

// New returns a cache backed by path.
func New(path string, opts ...Option) *Cache {
	c := &Cache{
		path:   path,
		locker: filelock.New(path, filelock.DefaultTimeout),
		clock:  clock.WallClock,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the cache file location for cacheDir.
func Path(cacheDir string) string {
	return filepath.Join(cacheDir, CacheFile)
}

func (c *Cache) Path() string {
	return c.path
}

// Record is the cached credential set together with the file it was read
// from.
type Record struct {
	credentials.Set
	Path string
}

// Read returns the cached record, or nil when nothing has been cached yet.
// A file that exists but does not hold a complete set is a KindCorrupt
// error.
func (c *Cache) Read(ctx context.Context) (*Record, error) {
	var rec *Record
	err := c.locker.WithShared(ctx, func() error {
		data, err := os.ReadFile(c.path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return &Error{Kind: KindIO, Path: c.path, Err: err}
		}

		set, err := credentials.Parse(data)
		if err != nil {
			return &Error{Kind: KindCorrupt, Path: c.path, Err: err}
		}
		rec = &Record{Set: set, Path: c.path}
		return nil
	})
	if err != nil {
		return nil, wrapLockErr(c.path, err)
	}
	return rec, nil
}

// Write replaces the cached record with set. The record is encoded before
// the lock is taken, so an encoding failure never touches the file.
func (c *Cache) Write(ctx context.Context, set credentials.Set) error {
	data, err := credentials.Marshal(set)
	if err != nil {
		return &Error{Kind: KindIO, Path: c.path, Err: err}
	}

	err = c.locker.WithExclusive(ctx, func() error {
		if err := filelock.WriteFileAtomic(c.path, data, 0o600); err != nil {
			return &Error{Kind: KindIO, Path: c.path, Err: err}
		}
		return nil
	})
	if err != nil {
		return wrapLockErr(c.path, err)
	}

	c.logger.Debug("credentials cached", "path", c.path, "expiration", set.Expiration)
	return nil
}

// Clear removes the cached record. Clearing an empty cache is not an error.
func (c *Cache) Clear(ctx context.Context) error {
	err := c.locker.WithExclusive(ctx, func() error {
		if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &Error{Kind: KindIO, Path: c.path, Err: err}
		}
		return nil
	})
	return wrapLockErr(c.path, err)
}

// NeedsRefresh reports whether set expires within margin of the cache's
// clock.
func (c *Cache) NeedsRefresh(set credentials.Set, margin time.Duration) bool {
	return NeedsRefresh(set, c.clock.Now(), margin)
}

// NeedsRefresh reports whether set should be replaced at now: either it
// expires within margin, or its expiration cannot be parsed.
func NeedsRefresh(set credentials.Set, now time.Time, margin time.Duration) bool {
	exp, err := set.ExpiresAt()
	if err != nil {
		return true
	}
	return !now.Before(exp.Add(-margin))
}
