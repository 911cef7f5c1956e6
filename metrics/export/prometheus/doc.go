// Package prometheus renders goSession engine metrics in the Prometheus text
// exposition format without a client library or global registry. Counters
// are named gosession_*_total; the one histogram is
// gosession_authenticate_latency_seconds.
package prometheus
