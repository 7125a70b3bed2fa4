// Package httpserver runs the daemon's metrics and health endpoints.
package httpserver
