package main

import (
	"net/http"

	"github.com/angeloszaimis/authguard/internal/metrics"
)

func setupRouter(recorder *metrics.Recorder) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc("/health", recorder.HealthHandler())

	return mux
}
