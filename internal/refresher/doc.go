// Package refresher keeps the credential cache warm from a long-running
// process, so one-shot invocations find fresh credentials on disk.
package refresher
