package fetcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/juju/clock"

	"github.com/angeloszaimis/authguard/internal/circuitbreaker"
	"github.com/angeloszaimis/authguard/internal/credcache"
	"github.com/angeloszaimis/authguard/internal/credentials"
	"github.com/angeloszaimis/authguard/internal/retry"
	"github.com/angeloszaimis/authguard/internal/transport"
)

// ProviderSource is reported as aws.Credentials.Source.
const ProviderSource = "authguard"

const (
	DefaultMargin         = 5 * time.Minute
	DefaultAttemptTimeout = transport.DefaultTimeout
)

// Source tells where a returned credential set came from.
type Source string

const (
	SourceCache   Source = "cache"
	SourceNetwork Source = "network"
)

// Recorder receives fetch events. metrics.Recorder satisfies it.
type Recorder interface {
	FetchServed(source string)
	FetchFailed(kind string)
	AttemptFinished(outcome string, duration time.Duration)
	BreakerRejected()
	CacheWriteFailed()
}

type Options struct {
	// URL is the credentials endpoint, see transport.EndpointURL.
	URL string
	// Margin is how long before expiry a cached set is replaced.
	Margin time.Duration
	// AttemptTimeout bounds each network attempt on its own.
	AttemptTimeout time.Duration
	Policy         retry.Policy
	Clock          clock.Clock
	Logger         *slog.Logger
	Recorder       Recorder
}

// Fetcher returns a usable credential set, from the cache when possible and
// from the endpoint otherwise.
type Fetcher struct {
	cache   *credcache.Cache
	breaker *circuitbreaker.CircuitBreaker
	client  transport.Client
	opts    Options
}

func New(cache *credcache.Cache, breaker *circuitbreaker.CircuitBreaker, client transport.Client, opts Options) *Fetcher {
	if opts.Margin <= 0 {
		opts.Margin = DefaultMargin
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	switch {
	case opts.Clock != nil:
	case opts.Policy.Clock != nil:
		opts.Clock = opts.Policy.Clock
	default:
		opts.Clock = clock.WallClock
	}
	// Backoff sleeps follow the same clock as the attempt timings.
	opts.Policy.Clock = opts.Clock
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	opts.Policy.Classifier = classify

	return &Fetcher{
		cache:   cache,
		breaker: breaker,
		client:  client,
		opts:    opts,
	}
}

// Fetch returns credentials that are valid for at least the margin.
//
// A fresh cached set is returned without touching the breaker or the
// network. Otherwise the breaker is consulted and, if it allows, the
// endpoint is called under the retry policy with every attempt reported to
// the breaker. A new set is cached before it is returned; a failure to
// cache it is logged and does not fail the fetch. When every attempt fails
// the cache is left as it was.
func (f *Fetcher) Fetch(ctx context.Context) (credentials.Set, Source, error) {
	logger := f.opts.Logger

	cached, err := f.cache.Read(ctx)
	switch {
	case err != nil && credcache.IsCorrupt(err):
		logger.Warn("cached credentials are corrupt, fetching new ones", "error", err)
	case err != nil:
		logger.Warn("cached credentials unreadable, fetching new ones", "error", err)
	case cached != nil && !f.cache.NeedsRefresh(cached.Set, f.opts.Margin):
		logger.Debug("serving cached credentials", "expiration", cached.Expiration)
		f.opts.Recorder.FetchServed(string(SourceCache))
		return cached.Set, SourceCache, nil
	case cached != nil:
		logger.Info("cached credentials near expiry, refreshing", "expiration", cached.Expiration)
	}

	if !f.breaker.Allow(ctx) {
		f.opts.Recorder.BreakerRejected()
		f.opts.Recorder.FetchFailed(KindBreakerOpen.String())
		return credentials.Set{}, "", &Error{Kind: KindBreakerOpen}
	}

	set, err := f.fetchRemote(ctx)
	if err != nil {
		kind := "unknown"
		if k, ok := KindOf(err); ok {
			kind = k.String()
		}
		f.opts.Recorder.FetchFailed(kind)
		return credentials.Set{}, "", err
	}

	if err := f.cache.Write(ctx, set); err != nil {
		logger.Warn("could not cache credentials", "error", err)
		f.opts.Recorder.CacheWriteFailed()
	}

	f.opts.Recorder.FetchServed(string(SourceNetwork))
	logger.Info("fetched new credentials", "expiration", set.Expiration)
	return set, SourceNetwork, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context) (credentials.Set, error) {
	var set credentials.Set

	policy := f.opts.Policy
	policy.Notify = func(err error, attempt int) {
		f.opts.Logger.Warn("credentials request failed", "attempt", attempt, "error", err)
	}

	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		started := f.opts.Clock.Now()
		result, err := f.attempt(ctx, attempt)
		f.opts.Recorder.AttemptFinished(policy.Classify(err).String(), f.opts.Clock.Now().Sub(started))

		if err != nil {
			// Cancellation says nothing about the endpoint.
			if ctx.Err() != nil {
				return err
			}
			if bErr := f.breaker.RecordFailure(ctx); bErr != nil {
				f.opts.Logger.Warn("could not record circuit breaker failure", "error", bErr)
			}
			return err
		}
		if bErr := f.breaker.RecordSuccess(ctx); bErr != nil {
			f.opts.Logger.Warn("could not record circuit breaker success", "error", bErr)
		}
		set = result
		return nil
	})
	return set, err
}

func (f *Fetcher) attempt(ctx context.Context, attempt int) (credentials.Set, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.AttemptTimeout)
	defer cancel()

	resp, err := f.client.Get(ctx, f.opts.URL)
	if err != nil {
		return credentials.Set{}, &Error{Kind: KindTransport, Attempt: attempt, Err: err}
	}
	if !resp.OK() {
		return credentials.Set{}, &Error{Kind: KindProtocol, StatusCode: resp.StatusCode, Attempt: attempt}
	}

	set, err := credentials.Parse(resp.Body)
	if err != nil {
		return credentials.Set{}, &Error{Kind: KindParse, StatusCode: resp.StatusCode, Attempt: attempt, Err: err}
	}
	return set, nil
}

// Retrieve implements aws.CredentialsProvider.
func (f *Fetcher) Retrieve(ctx context.Context) (aws.Credentials, error) {
	set, _, err := f.Fetch(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}
	return set.AWS(ProviderSource), nil
}

// Parse errors end the retry loop; transport and protocol errors do not.
func classify(err error) retry.Outcome {
	kind, ok := KindOf(err)
	if ok && kind == KindParse {
		return retry.Fatal
	}
	return retry.Retryable
}

type nopRecorder struct{}

func (nopRecorder) FetchServed(string) {}
func (nopRecorder) FetchFailed(string) {}
func (nopRecorder) AttemptFinished(string, time.Duration) {}
func (nopRecorder) BreakerRejected() {}
func (nopRecorder) CacheWriteFailed() {}

var _ aws.CredentialsProvider = (*Fetcher)(nil)
