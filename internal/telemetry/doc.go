// Package telemetry provides reactor observers for Prometheus metrics and
// OpenTelemetry tracing, plus OTLP exporter setup.
//
// Both observers are installed with reactor.WithObserver; combine them with
// reactor.Observers.
package telemetry
