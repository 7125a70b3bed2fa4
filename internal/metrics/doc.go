// Package metrics records fetch outcomes as Prometheus series.
//
// A Recorder owns its registry. The daemon exposes it over HTTP with
// Handler; one-shot invocations dump it with WriteTextfile so the
// node_exporter textfile collector can pick it up:
//
//	rec := metrics.NewRecorder(false)
//	rec.FetchServed("cache")
//	_ = rec.WriteTextfile("/var/lib/node_exporter/authguard.prom")
package metrics
