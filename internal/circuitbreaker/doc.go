// Package circuitbreaker implements a circuit breaker whose state is shared
// between processes through a file.
//
// The breaker has three states:
//
//   - CLOSED: requests pass through, failures are counted
//   - OPEN: requests are rejected until the reset timeout elapses
//   - HALF-OPEN: probes are allowed at most once per probe interval, and two
//     consecutive successes close the breaker again
//
// Every operation reloads state from disk. Allow takes a shared lock and
// never writes; RecordFailure, RecordSuccess and Reset hold the exclusive
// lock across the whole load-modify-persist cycle.
//
// Usage:
//
//	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.StatePath(dir), 3, time.Minute)
//	if cb.Allow(ctx) {
//	    if err := call(); err != nil {
//	        _ = cb.RecordFailure(ctx)
//	    } else {
//	        _ = cb.RecordSuccess(ctx)
//	    }
//	}
package circuitbreaker
