// Package fetcher combines the credential cache, the circuit breaker and
// the retry policy around a single transport call.
//
// The breaker lock and the cache lock are never held together: each
// breaker update and each cache access takes and releases its own lock.
package fetcher
