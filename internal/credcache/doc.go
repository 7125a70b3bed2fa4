// Package credcache persists the most recent credential set so that
// processes started within its lifetime can skip the network entirely.
//
// The cache is a single JSON file in the same envelope format the
// credentials endpoint returns. Reads take a shared lock, writes replace the
// file atomically under the exclusive lock, and a file that cannot be parsed
// is reported as corrupt instead of being silently ignored.
package credcache
