// Package otel binds goSession engine metrics to an OpenTelemetry meter.
//
// [New] creates an Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per latency bucket, all served by a single callback
// that reads the engine snapshot on each collection. The caller owns the
// MeterProvider.
package otel
