package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot is the JSON body served on /health.
type Snapshot struct {
	Status  string        `json:"status"`
	Uptime  time.Duration `json:"uptime"`
	Fetches int64         `json:"fetches"`
	Errors  int64         `json:"errors"`
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Snapshot sums the fetch counters.
func (r *Recorder) Snapshot() Snapshot {
	snap := Snapshot{
		Status: "ok",
		Uptime: time.Since(r.started),
	}

	families, err := r.registry.Gather()
	if err != nil {
		snap.Status = "degraded"
		return snap
	}
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		switch mf.GetName() {
		case namespace + "_fetch_total":
			snap.Fetches = int64(total)
		case namespace + "_fetch_errors_total":
			snap.Errors = int64(total)
		}
	}
	return snap
}

// HealthHandler serves Snapshot as JSON.
func (r *Recorder) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		snap := r.Snapshot()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
