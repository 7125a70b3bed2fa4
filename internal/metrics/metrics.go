package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "authguard"

// Recorder holds the authguard collectors on a private registry, so one-shot
// runs can dump exactly these series to a textfile.
type Recorder struct {
	registry *prometheus.Registry
	started  time.Time

	fetches           *prometheus.CounterVec
	fetchErrors       *prometheus.CounterVec
	attempts          *prometheus.CounterVec
	attemptDuration   prometheus.Histogram
	breakerRejections prometheus.Counter
	breakerChanges    *prometheus.CounterVec
	cacheWriteErrors  prometheus.Counter
}

// NewRecorder registers every collector. Process and Go runtime collectors
// are added only when withRuntime is set, which the daemon does.
func NewRecorder(withRuntime bool) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Credential sets returned, by source.",
		}, []string{"source"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed fetches, by error kind.",
		}, []string{"kind"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Network attempts against the credentials endpoint, by outcome.",
		}, []string{"outcome"}),
		attemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Duration of network attempts.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		breakerRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_rejections_total",
			Help:      "Fetches refused because the circuit breaker was open.",
		}),
		breakerChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state changes, by new state.",
		}, []string{"to"}),
		cacheWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_write_errors_total",
			Help:      "Credential sets that could not be written to the cache.",
		}),
	}

	r.registry.MustRegister(
		r.fetches,
		r.fetchErrors,
		r.attempts,
		r.attemptDuration,
		r.breakerRejections,
		r.breakerChanges,
		r.cacheWriteErrors,
	)
	if withRuntime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) FetchServed(source string) {
	r.fetches.WithLabelValues(source).Inc()
}

func (r *Recorder) FetchFailed(kind string) {
	r.fetchErrors.WithLabelValues(kind).Inc()
}

func (r *Recorder) AttemptFinished(outcome string, duration time.Duration) {
	r.attempts.WithLabelValues(outcome).Inc()
	r.attemptDuration.Observe(duration.Seconds())
}

func (r *Recorder) BreakerRejected() {
	r.breakerRejections.Inc()
}

func (r *Recorder) BreakerChanged(to string) {
	r.breakerChanges.WithLabelValues(to).Inc()
}

func (r *Recorder) CacheWriteFailed() {
	r.cacheWriteErrors.Inc()
}

// WriteTextfile writes the registry in the text exposition format for the
// node_exporter textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
